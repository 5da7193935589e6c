// Package commitmsg turns backend output into commit message candidates:
// Clean extracts the message from a fenced block, and Generator composes
// prompt building, the provider call and cleaning into one candidate.
package commitmsg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"aicommit/cli/internal/git"
	"aicommit/cli/internal/prompt"
	"aicommit/cli/internal/provider"
)

// FallbackMessage replaces an empty extraction or a malformed backend answer.
const FallbackMessage = "Auto-generated commit"

// fencedBlock matches the first ``` block: an opening marker with an optional
// info string, then everything up to the first closing marker.
var fencedBlock = regexp.MustCompile("```[^\\n]*\\n([\\s\\S]*?)```")

// Clean returns the trimmed interior of the first fenced block in raw, or raw
// trimmed when there is no block. It may return "" (see Generator for the fallback).
func Clean(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// Candidate is one cleaned message offered to the operator. Index is 1-based.
type Candidate struct {
	Index int
	Text  string
}

// Failure records a candidate slot the backend could not fill.
type Failure struct {
	Slot int // 1-based position in the requested batch
	Err  error
}

// Batch is one round of candidates. Candidates are renumbered 1..len so
// failed slots leave no gaps.
type Batch struct {
	Candidates []Candidate
	Failures   []Failure
	Requested  int
}

// Len returns the number of candidates available for selection.
func (b Batch) Len() int { return len(b.Candidates) }

// ErrEmptyBatch is returned when every request in a batch failed.
var ErrEmptyBatch = errors.New("no commit messages could be generated")

// Generator produces candidates for one repository snapshot.
type Generator struct {
	provider provider.Generator
	model    string
	prompt   prompt.Prompt
}

// NewGenerator builds the prompt for rc once; every call reuses it.
func NewGenerator(p provider.Generator, model string, rc git.RepositoryContext, opts prompt.Options) *Generator {
	return &Generator{provider: p, model: model, prompt: prompt.Build(rc, opts)}
}

// Prompt returns the prompt sent on every request.
func (g *Generator) Prompt() prompt.Prompt { return g.prompt }

// Generate returns one cleaned, non-empty message. A malformed backend
// response yields FallbackMessage; transport failures are returned.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	if g == nil || g.provider == nil {
		return "", errors.New("commitmsg: nil provider")
	}
	raw, err := g.provider.Generate(ctx, provider.Request{
		System: g.prompt.System,
		User:   g.prompt.User,
		Model:  g.model,
	})
	if err != nil {
		if errors.Is(err, provider.ErrMalformedResponse) {
			log.Warn().Err(err).Msg("backend response unusable; using fallback message")
			return FallbackMessage, nil
		}
		return "", err
	}
	msg := Clean(raw)
	if msg == "" {
		return FallbackMessage, nil
	}
	return msg, nil
}

// Batch requests n candidates one at a time, in order. Failed requests are
// recorded in Failures and skipped; the batch is an error only when nothing
// succeeded or ctx was cancelled.
func (g *Generator) Batch(ctx context.Context, n int) (Batch, error) {
	b := Batch{Requested: n}
	for slot := 1; slot <= n; slot++ {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		msg, err := g.Generate(ctx)
		if err != nil {
			log.Warn().Err(err).Int("slot", slot).Msg("candidate generation failed")
			b.Failures = append(b.Failures, Failure{Slot: slot, Err: err})
			continue
		}
		b.Candidates = append(b.Candidates, Candidate{Index: len(b.Candidates) + 1, Text: msg})
	}
	if len(b.Candidates) == 0 {
		if len(b.Failures) > 0 {
			return b, fmt.Errorf("%w: %w", ErrEmptyBatch, b.Failures[0].Err)
		}
		return b, ErrEmptyBatch
	}
	return b, nil
}
