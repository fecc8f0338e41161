// Package refinement runs the human review loop around the sample
// extraction and the bulk extraction it unlocks.
package refinement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

// State is a refinement loop state.
type State string

const (
	StateSampling State = "sampling"
	StateReview   State = "review"
	StateAccepted State = "accepted"
	StateRefining State = "refining"
	StateRetrying State = "retrying"
)

// Action is an operator decision at review, or the sampling step that
// produced the first iteration.
type Action string

const (
	ActionSample   Action = "sample"
	ActionDone     Action = "done"
	ActionRetry    Action = "retry"
	ActionRefine   Action = "refine"
	ActionFeedback Action = "feedback"
)

var (
	// ErrUnknownAction is returned by ParseAction for unrecognized input.
	ErrUnknownAction = errors.New("unknown review action")
	// ErrInvalidTransition is returned for an action the current state
	// does not accept.
	ErrInvalidTransition = errors.New("invalid refinement transition")
	// ErrNothingToAccept is returned when done is chosen for an iteration
	// that produced no record.
	ErrNothingToAccept = errors.New("iteration has no record to accept")
)

// transitions holds the operator-driven edges. Extraction always moves
// sampling, refining and retrying back to review.
var transitions = map[State]map[Action]State{
	StateReview: {
		ActionDone:     StateAccepted,
		ActionRetry:    StateRetrying,
		ActionRefine:   StateRefining,
		ActionFeedback: StateRefining,
	},
}

// Next returns the state reached from s by a.
func Next(s State, a Action) (State, error) {
	next, ok := transitions[s][a]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
	}
	return next, nil
}

// ParseAction reads an operator answer. Empty input means done.
func ParseAction(input string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(input))); a {
	case "":
		return ActionDone, nil
	case ActionDone, ActionRetry, ActionRefine, ActionFeedback:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, input)
	}
}

// AppendFeedback adds operator feedback for iteration n to the instructions.
func AppendFeedback(instructions string, n int, feedback string) string {
	entry := fmt.Sprintf("User Feedback (Iteration %d): %s", n, strings.TrimSpace(feedback))
	if strings.TrimSpace(instructions) == "" {
		return entry
	}
	return instructions + "\n\n" + entry
}

// Iteration is one extraction of the sample page.
type Iteration struct {
	Number       int                      `json:"iteration"`
	Action       Action                   `json:"action"`
	Instructions string                   `json:"instructions"`
	Record       *domain.ExtractionRecord `json:"record,omitempty"`
	Error        string                   `json:"error,omitempty"`
	Reason       string                   `json:"reason,omitempty"`
	Timestamp    time.Time                `json:"timestamp"`
}

// Failed reports whether the iteration produced no record.
func (it *Iteration) Failed() bool {
	return it.Record == nil
}

// Sample is the extraction_sample checkpoint: the sampled page, the loop
// state and every iteration in order.
type Sample struct {
	URL     string      `json:"url"`
	State   State       `json:"state"`
	History []Iteration `json:"history"`
}

// Last returns the latest iteration, or nil before sampling.
func (s *Sample) Last() *Iteration {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// CustomPrompt is the custom_prompt checkpoint.
type CustomPrompt struct {
	Instructions string    `json:"instructions"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Approval unlocks bulk extraction. Only an accepted review produces a
// usable value; the zero value is rejected by Bulk.
type Approval struct {
	instructions string
	iteration    int
	record       *domain.ExtractionRecord
	ok           bool
}

// Instructions returns the custom instructions the sample was accepted with.
func (a Approval) Instructions() string {
	return a.instructions
}

// Iteration returns the accepted iteration number.
func (a Approval) Iteration() int {
	return a.iteration
}

// Record returns the accepted sample record.
func (a Approval) Record() *domain.ExtractionRecord {
	return a.record
}

// Valid reports whether the approval came from an accepted review.
func (a Approval) Valid() bool {
	return a.ok
}

func approve(it *Iteration) (Approval, error) {
	if it == nil || it.Failed() {
		return Approval{}, ErrNothingToAccept
	}
	return Approval{
		instructions: it.Instructions,
		iteration:    it.Number,
		record:       it.Record,
		ok:           true,
	}, nil
}
