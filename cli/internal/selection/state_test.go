package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChoice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		n       int
		wantAct action
		wantIdx int
	}{
		{"1", 3, actionSelect, 1},
		{" 3 \n", 3, actionSelect, 3},
		{"4", 3, actionInvalid, 0},
		{"0", 3, actionInvalid, 0},
		{"+1", 3, actionInvalid, 0},
		{"-1", 3, actionInvalid, 0},
		{"01", 3, actionSelect, 1},
		{"003", 3, actionSelect, 3},
		{"00", 3, actionInvalid, 0},
		{"r", 3, actionRegenerate, 0},
		{"REGENERATE", 3, actionRegenerate, 0},
		{"regen", 3, actionRegenerate, 0},
		{"c", 3, actionCancel, 0},
		{"n", 3, actionCancel, 0},
		{"x", 3, actionInvalid, 0},
		{"1", 0, actionInvalid, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			act, idx := parseChoice(tt.in, tt.n)
			assert.Equal(t, tt.wantAct, act)
			assert.Equal(t, tt.wantIdx, idx)
		})
	}
}

func TestIsConfirm(t *testing.T) {
	t.Parallel()
	assert.True(t, isConfirm("y"))
	assert.True(t, isConfirm(" YES\n"))
	assert.False(t, isConfirm("n"))
	assert.False(t, isConfirm(""))
	assert.False(t, isConfirm("yep"))
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "awaiting-choice", AwaitingChoice.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, Cancelled.Terminal())
	assert.False(t, AwaitingConfirmation.Terminal())
}
