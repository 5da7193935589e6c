// Package selection drives the interactive choice between generated commit
// message candidates: present a batch, read the operator's answer, and
// resolve it into a commit, a regeneration or a cancellation.
package selection

import (
	"fmt"
	"strconv"
	"strings"
)

// State is a node of the selection state machine.
type State int

const (
	Presenting State = iota
	AwaitingChoice
	Regenerating
	AwaitingConfirmation
	Committed
	Cancelled
)

var stateNames = [...]string{
	Presenting:           "presenting",
	AwaitingChoice:       "awaiting-choice",
	Regenerating:         "regenerating",
	AwaitingConfirmation: "awaiting-confirmation",
	Committed:            "committed",
	Cancelled:            "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool {
	return s == Committed || s == Cancelled
}

type action int

const (
	actionInvalid action = iota
	actionSelect
	actionRegenerate
	actionCancel
)

var (
	regenerateTokens = map[string]struct{}{"r": {}, "regen": {}, "regenerate": {}}
	cancelTokens     = map[string]struct{}{"c": {}, "n": {}, "cancel": {}, "q": {}}
	confirmTokens    = map[string]struct{}{"y": {}, "yes": {}}
)

func normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// parseChoice classifies an answer to the choice prompt. For actionSelect
// the returned index is 1-based and within 1..n.
func parseChoice(input string, n int) (action, int) {
	s := normalize(input)
	if _, ok := cancelTokens[s]; ok {
		return actionCancel, 0
	}
	if _, ok := regenerateTokens[s]; ok {
		return actionRegenerate, 0
	}
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return actionInvalid, 0
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 1 || idx > n {
		return actionInvalid, 0
	}
	return actionSelect, idx
}

func isConfirm(input string) bool {
	_, ok := confirmTokens[normalize(input)]
	return ok
}
