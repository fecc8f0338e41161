package refinement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/extraction"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

// Extractor extracts one page with the given custom instructions.
type Extractor interface {
	ExtractURL(ctx context.Context, pageURL, instructions string) (*domain.ExtractionRecord, error)
}

// Operator is the human side of the review loop.
type Operator interface {
	// ReviewSample shows an iteration and returns the operator's action.
	ReviewSample(ctx context.Context, it Iteration) (Action, error)
	// EditInstructions returns replacement instructions. An empty answer
	// keeps the current text.
	EditInstructions(ctx context.Context, current string) (string, error)
	// Feedback returns correction text for the given iteration.
	Feedback(ctx context.Context, iteration int) (string, error)
}

// Machine is the refinement state machine.
type Machine struct {
	extractor Extractor
	operator  Operator
	store     checkpoint.Store
	logger    logger.Logger
	now       func() time.Time

	state  State
	sample Sample
}

// NewMachine creates a Machine in the sampling state.
func NewMachine(ex Extractor, op Operator, store checkpoint.Store, log logger.Logger) *Machine {
	return &Machine{
		extractor: ex,
		operator:  op,
		store:     store,
		logger:    log,
		now:       time.Now,
		state:     StateSampling,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// History returns the iterations so far.
func (m *Machine) History() []Iteration {
	return m.sample.History
}

// LoadInstructions returns the saved custom instructions, or fallback when
// none were saved.
func LoadInstructions(ctx context.Context, store checkpoint.Store, fallback string) (string, error) {
	var prompt CustomPrompt
	found, err := store.Load(ctx, checkpoint.CustomPrompt, &prompt)
	if err != nil {
		return "", fmt.Errorf("load custom prompt: %w", err)
	}
	if !found {
		return fallback, nil
	}
	return prompt.Instructions, nil
}

// Run samples sampleURL and loops on operator review until the sample is
// accepted. A saved session for the same URL is resumed: an accepted one
// returns its approval without prompting, an open one goes back to review.
func (m *Machine) Run(ctx context.Context, sampleURL, instructions string) (Approval, error) {
	if err := m.resume(ctx, sampleURL); err != nil {
		return Approval{}, err
	}

	if m.sample.State == StateAccepted {
		m.state = StateAccepted
		m.logger.Info("Sample already accepted",
			logger.URL(sampleURL),
			logger.Int("iteration", m.sample.Last().Number),
		)
		return approve(m.sample.Last())
	}

	if m.sample.Last() == nil {
		m.state = StateSampling
		if err := m.iterate(ctx, ActionSample, instructions); err != nil {
			return Approval{}, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return Approval{}, err
		}

		m.state = StateReview
		current := *m.sample.Last()

		action, err := m.operator.ReviewSample(ctx, current)
		if err != nil {
			return Approval{}, fmt.Errorf("review iteration %d: %w", current.Number, err)
		}

		next, err := Next(StateReview, action)
		if err != nil {
			m.logger.Warn("Ignoring review action", logger.String("action", string(action)), logger.Error(err))
			continue
		}

		switch action {
		case ActionDone:
			approval, approveErr := approve(&current)
			if approveErr != nil {
				m.logger.Warn("Cannot accept a failed iteration",
					logger.Int("iteration", current.Number),
					logger.String("error", current.Error),
				)
				continue
			}
			m.state = next
			m.sample.State = StateAccepted
			if saveErr := m.saveSample(ctx); saveErr != nil {
				return Approval{}, saveErr
			}
			m.logger.Info("Sample accepted", logger.Int("iteration", current.Number))
			return approval, nil

		case ActionRetry:
			m.state = next
			instructions = current.Instructions

		case ActionRefine:
			m.state = next
			edited, editErr := m.operator.EditInstructions(ctx, current.Instructions)
			if editErr != nil {
				return Approval{}, fmt.Errorf("edit instructions: %w", editErr)
			}
			instructions = current.Instructions
			if strings.TrimSpace(edited) != "" {
				instructions = edited
				if saveErr := m.saveInstructions(ctx, instructions); saveErr != nil {
					return Approval{}, saveErr
				}
			}

		case ActionFeedback:
			text, fbErr := m.operator.Feedback(ctx, current.Number)
			if fbErr != nil {
				return Approval{}, fmt.Errorf("read feedback: %w", fbErr)
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			m.state = next
			instructions = AppendFeedback(current.Instructions, current.Number, text)
			if saveErr := m.saveInstructions(ctx, instructions); saveErr != nil {
				return Approval{}, saveErr
			}
		}

		if err := m.iterate(ctx, action, instructions); err != nil {
			return Approval{}, err
		}
	}
}

// iterate extracts the sample, appends the iteration and checkpoints it.
// Extraction failures are recorded on the iteration, not returned.
func (m *Machine) iterate(ctx context.Context, action Action, instructions string) error {
	it := Iteration{
		Number:       len(m.sample.History) + 1,
		Action:       action,
		Instructions: instructions,
	}

	rec, err := m.extractor.ExtractURL(ctx, m.sample.URL, instructions)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		it.Error = err.Error()
		var failure *extraction.ExtractionFailure
		if errors.As(err, &failure) {
			it.Reason = string(failure.Reason)
		}
	} else {
		it.Record = rec
	}
	it.Timestamp = m.now().UTC()

	m.sample.History = append(m.sample.History, it)
	m.sample.State = StateReview
	m.state = StateReview

	m.logger.Info("Sample iteration finished",
		logger.Int("iteration", it.Number),
		logger.String("action", string(action)),
		logger.Bool("failed", it.Failed()),
	)

	return m.saveSample(ctx)
}

func (m *Machine) resume(ctx context.Context, sampleURL string) error {
	var saved Sample
	found, err := m.store.Load(ctx, checkpoint.ExtractionSample, &saved)
	if err != nil {
		return fmt.Errorf("load sample: %w", err)
	}
	if found && saved.URL == sampleURL && len(saved.History) > 0 {
		m.sample = saved
		m.logger.Info("Resuming sample review",
			logger.URL(sampleURL),
			logger.Int("iterations", len(saved.History)),
		)
		return nil
	}
	m.sample = Sample{URL: sampleURL, State: StateSampling}
	return nil
}

func (m *Machine) saveSample(ctx context.Context) error {
	if err := m.store.Save(ctx, checkpoint.ExtractionSample, m.sample); err != nil {
		return fmt.Errorf("save sample: %w", err)
	}
	return nil
}

func (m *Machine) saveInstructions(ctx context.Context, instructions string) error {
	prompt := CustomPrompt{Instructions: instructions, UpdatedAt: m.now().UTC()}
	if err := m.store.Save(ctx, checkpoint.CustomPrompt, prompt); err != nil {
		return fmt.Errorf("save custom prompt: %w", err)
	}
	return nil
}
