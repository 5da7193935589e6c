package selection

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"aicommit/cli/internal/commitmsg"
)

// BatchSource produces a batch of n candidates.
type BatchSource interface {
	Batch(ctx context.Context, n int) (commitmsg.Batch, error)
}

// Committer records the selected message.
type Committer interface {
	Commit(ctx context.Context, message string) error
}

// ErrFinished is returned by Handle once the controller reached a terminal state.
var ErrFinished = errors.New("selection already finished")

// ErrNotStarted is returned by Handle before Start produced a batch.
var ErrNotStarted = errors.New("selection not started")

// Outcome is the terminal result of a selection session.
type Outcome struct {
	State   State  // Committed or Cancelled
	Message string // the committed message; empty when cancelled
	Rounds  int    // number of batches generated, including the first
}

// Controller is the selection state machine. It is not safe for concurrent use.
type Controller struct {
	source    BatchSource
	committer Committer
	count     int
	view      *Presenter

	state    State
	started  bool
	batch    commitmsg.Batch
	selected commitmsg.Candidate
	rounds   int
}

// NewController returns a controller that asks source for count candidates
// per round and renders through view.
func NewController(source BatchSource, committer Committer, count int, view *Presenter) *Controller {
	return &Controller{source: source, committer: committer, count: count, view: view, state: Presenting}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Batch returns the batch currently on offer.
func (c *Controller) Batch() commitmsg.Batch { return c.batch }

// Selected returns the candidate awaiting confirmation (or committed).
func (c *Controller) Selected() commitmsg.Candidate { return c.selected }

// Start generates and presents the first batch, leaving the controller in AwaitingChoice.
func (c *Controller) Start(ctx context.Context) error {
	if c.started {
		return nil
	}
	c.view.Generating()
	if err := c.present(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

// present fetches a fresh batch, shows it, and moves to AwaitingChoice. The
// previous batch is replaced only when the new one was produced.
func (c *Controller) present(ctx context.Context) error {
	b, err := c.source.Batch(ctx, c.count)
	if err != nil {
		return err
	}
	c.batch = b
	c.rounds++
	c.state = Presenting
	c.view.Batch(b)
	c.state = AwaitingChoice
	return nil
}

// Handle applies one line of operator input and returns the resulting state.
// Invalid input never changes the state or the batch.
func (c *Controller) Handle(ctx context.Context, input string) (State, error) {
	if !c.started {
		return c.state, ErrNotStarted
	}
	switch c.state {
	case AwaitingChoice:
		return c.handleChoice(ctx, input)
	case AwaitingConfirmation:
		return c.handleConfirmation(ctx, input)
	default:
		return c.state, ErrFinished
	}
}

func (c *Controller) handleChoice(ctx context.Context, input string) (State, error) {
	act, idx := parseChoice(input, c.batch.Len())
	switch act {
	case actionSelect:
		c.selected = c.batch.Candidates[idx-1]
		c.state = AwaitingConfirmation
		c.view.Selected(c.selected)
	case actionRegenerate:
		c.state = Regenerating
		c.view.Regenerating()
		log.Debug().Int("round", c.rounds+1).Msg("regenerating candidates")
		if err := c.present(ctx); err != nil {
			c.state = AwaitingChoice
			if ctx.Err() != nil {
				return c.state, err
			}
			// Keep offering the previous batch.
			c.view.RegenerateFailed(err)
		}
	case actionCancel:
		c.state = Cancelled
		c.view.Cancelled()
	default:
		c.view.Invalid(c.batch.Len())
	}
	return c.state, nil
}

func (c *Controller) handleConfirmation(ctx context.Context, input string) (State, error) {
	if !isConfirm(input) {
		c.state = AwaitingChoice
		c.view.Declined()
		return c.state, nil
	}
	if err := c.committer.Commit(ctx, c.selected.Text); err != nil {
		return c.state, err
	}
	c.state = Committed
	c.view.Committed()
	return c.state, nil
}

// Run drives the whole session reading answers from in: it starts, then
// prompts and handles input until Committed or Cancelled. End of input
// cancels.
func (c *Controller) Run(ctx context.Context, in io.Reader) (Outcome, error) {
	if err := c.Start(ctx); err != nil {
		return Outcome{}, err
	}
	r := bufio.NewReader(in)
	for !c.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return c.outcome(), err
		}
		if c.state == AwaitingConfirmation {
			c.view.ConfirmPrompt()
		} else {
			c.view.ChoicePrompt(c.batch.Len())
		}
		line, readErr := r.ReadString('\n')
		if readErr != nil && (!errors.Is(readErr, io.EOF) || strings.TrimSpace(line) == "") {
			if !errors.Is(readErr, io.EOF) {
				return c.outcome(), readErr
			}
			c.state = Cancelled
			c.view.Cancelled()
			break
		}
		if _, err := c.Handle(ctx, line); err != nil {
			return c.outcome(), err
		}
	}
	return c.outcome(), nil
}

func (c *Controller) outcome() Outcome {
	o := Outcome{State: c.state, Rounds: c.rounds}
	if c.state == Committed {
		o.Message = c.selected.Text
	}
	return o
}
