package refinement_test

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/extraction"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/refinement"
)

const sampleURL = "https://shop.test/p/runner"

type extractCall struct {
	url          string
	instructions string
}

type fakeExtractor struct {
	calls     []extractCall
	failFirst int
	failURLs  map[string]bool
	onCall    func(n int)
}

func (f *fakeExtractor) ExtractURL(ctx context.Context, pageURL, instructions string) (*domain.ExtractionRecord, error) {
	f.calls = append(f.calls, extractCall{url: pageURL, instructions: instructions})
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if err := ctx.Err(); err != nil {
		return nil, &extraction.ExtractionFailure{URL: pageURL, Reason: extraction.ReasonCanceled, Err: err}
	}
	if len(f.calls) <= f.failFirst || f.failURLs[pageURL] {
		return nil, &extraction.ExtractionFailure{URL: pageURL, Reason: extraction.ReasonModel, Err: errors.New("model unavailable")}
	}
	return &domain.ExtractionRecord{
		SourceURL: pageURL,
		Product:   domain.Product{Name: "Product " + path.Base(pageURL)},
	}, nil
}

type scriptedOperator struct {
	actions  []refinement.Action
	edits    []string
	feedback []string
	reviewed []refinement.Iteration
}

var errScriptExhausted = errors.New("operator script exhausted")

func (o *scriptedOperator) ReviewSample(_ context.Context, it refinement.Iteration) (refinement.Action, error) {
	o.reviewed = append(o.reviewed, it)
	if len(o.actions) == 0 {
		return "", errScriptExhausted
	}
	a := o.actions[0]
	o.actions = o.actions[1:]
	return a, nil
}

func (o *scriptedOperator) EditInstructions(_ context.Context, _ string) (string, error) {
	if len(o.edits) == 0 {
		return "", errScriptExhausted
	}
	e := o.edits[0]
	o.edits = o.edits[1:]
	return e, nil
}

func (o *scriptedOperator) Feedback(_ context.Context, _ int) (string, error) {
	if len(o.feedback) == 0 {
		return "", errScriptExhausted
	}
	f := o.feedback[0]
	o.feedback = o.feedback[1:]
	return f, nil
}

func newStore(t *testing.T) checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func approvalFor(t *testing.T, store checkpoint.Store, ex refinement.Extractor) refinement.Approval {
	t.Helper()
	op := &scriptedOperator{actions: []refinement.Action{refinement.ActionDone}}
	approval, err := refinement.NewMachine(ex, op, store, logger.NewNop()).Run(context.Background(), sampleURL, "Use the h1.")
	require.NoError(t, err)
	return approval
}

func TestMachine_RefineTwiceThenDone(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ex := &fakeExtractor{}
	op := &scriptedOperator{
		actions: []refinement.Action{refinement.ActionRefine, refinement.ActionRefine, refinement.ActionDone},
		edits:   []string{"Price is in .price.", "Price is in .price-box."},
	}
	m := refinement.NewMachine(ex, op, store, logger.NewNop())

	approval, err := m.Run(context.Background(), sampleURL, "")
	require.NoError(t, err)

	assert.True(t, approval.Valid())
	assert.Equal(t, 3, approval.Iteration())
	assert.Equal(t, "Price is in .price-box.", approval.Instructions())
	assert.Equal(t, refinement.StateAccepted, m.State())
	require.Len(t, ex.calls, 3)
	assert.Equal(t, "", ex.calls[0].instructions)
	assert.Equal(t, "Price is in .price.", ex.calls[1].instructions)

	var saved refinement.Sample
	found, err := store.Load(context.Background(), checkpoint.ExtractionSample, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, refinement.StateAccepted, saved.State)
	require.Len(t, saved.History, 3)
	assert.Equal(t, []refinement.Action{refinement.ActionSample, refinement.ActionRefine, refinement.ActionRefine},
		[]refinement.Action{saved.History[0].Action, saved.History[1].Action, saved.History[2].Action})
	assert.False(t, saved.History[2].Timestamp.IsZero())

	var prompt refinement.CustomPrompt
	found, err = store.Load(context.Background(), checkpoint.CustomPrompt, &prompt)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Price is in .price-box.", prompt.Instructions)
}

func TestMachine_FeedbackIsAppended(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{}
	op := &scriptedOperator{
		actions:  []refinement.Action{refinement.ActionFeedback, refinement.ActionFeedback, refinement.ActionDone},
		feedback: []string{"", "Brand is in .brand-name."},
	}

	approval, err := refinement.NewMachine(ex, op, newStore(t), logger.NewNop()).
		Run(context.Background(), sampleURL, "Use the h1.")
	require.NoError(t, err)

	// Empty feedback goes back to review without re-extracting.
	require.Len(t, ex.calls, 2)
	assert.Equal(t, "Use the h1.\n\nUser Feedback (Iteration 1): Brand is in .brand-name.", ex.calls[1].instructions)
	assert.Equal(t, ex.calls[1].instructions, approval.Instructions())
	assert.Equal(t, 2, approval.Iteration())
}

func TestMachine_FailedIterationCannotBeAccepted(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{failFirst: 1}
	op := &scriptedOperator{
		actions: []refinement.Action{refinement.ActionDone, refinement.ActionRetry, refinement.ActionDone},
	}

	approval, err := refinement.NewMachine(ex, op, newStore(t), logger.NewNop()).
		Run(context.Background(), sampleURL, "Use the h1.")
	require.NoError(t, err)

	require.Len(t, op.reviewed, 3)
	assert.True(t, op.reviewed[0].Failed())
	assert.Equal(t, string(extraction.ReasonModel), op.reviewed[0].Reason)
	assert.Equal(t, 2, approval.Iteration())
	require.Len(t, ex.calls, 2)
	assert.Equal(t, ex.calls[0], ex.calls[1])
}

func TestMachine_OperatorErrorNeverAccepts(t *testing.T) {
	t.Parallel()

	approval, err := refinement.NewMachine(&fakeExtractor{}, &scriptedOperator{}, newStore(t), logger.NewNop()).
		Run(context.Background(), sampleURL, "")
	require.ErrorIs(t, err, errScriptExhausted)
	assert.False(t, approval.Valid())
}

func TestMachine_ResumesAcceptedSample(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	first := approvalFor(t, store, &fakeExtractor{})

	ex := &fakeExtractor{}
	op := &scriptedOperator{}
	again, err := refinement.NewMachine(ex, op, store, logger.NewNop()).Run(context.Background(), sampleURL, "ignored")
	require.NoError(t, err)

	assert.Empty(t, ex.calls)
	assert.Empty(t, op.reviewed)
	assert.Equal(t, first.Iteration(), again.Iteration())
	assert.Equal(t, first.Instructions(), again.Instructions())
}

func TestLoadInstructions(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	got, err := refinement.LoadInstructions(context.Background(), store, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	require.NoError(t, store.Save(context.Background(), checkpoint.CustomPrompt, refinement.CustomPrompt{Instructions: "saved"}))
	got, err = refinement.LoadInstructions(context.Background(), store, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "saved", got)
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	tests := map[string]refinement.Action{
		"":          refinement.ActionDone,
		"  DONE ":   refinement.ActionDone,
		"retry":     refinement.ActionRetry,
		"Refine":    refinement.ActionRefine,
		"feedback":  refinement.ActionFeedback,
		"\n":        refinement.ActionDone,
		"feedback ": refinement.ActionFeedback,
	}
	for in, want := range tests {
		got, err := refinement.ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := refinement.ParseAction("approve")
	require.ErrorIs(t, err, refinement.ErrUnknownAction)
}

func TestNext(t *testing.T) {
	t.Parallel()

	next, err := refinement.Next(refinement.StateReview, refinement.ActionFeedback)
	require.NoError(t, err)
	assert.Equal(t, refinement.StateRefining, next)

	_, err = refinement.Next(refinement.StateAccepted, refinement.ActionRetry)
	require.ErrorIs(t, err, refinement.ErrInvalidTransition)

	_, err = refinement.Next(refinement.StateSampling, refinement.ActionDone)
	require.ErrorIs(t, err, refinement.ErrInvalidTransition)
}

func TestBulk_RequiresApproval(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{}
	_, err := refinement.NewBulk(ex, newStore(t), logger.NewNop(), nil).
		Run(context.Background(), refinement.Approval{}, []string{"https://shop.test/p/a"})
	require.ErrorIs(t, err, refinement.ErrNotApproved)
	assert.Empty(t, ex.calls)
}

func TestBulk_RecordsFailuresAndResumes(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	approval := approvalFor(t, store, &fakeExtractor{})

	urls := []string{sampleURL, "https://shop.test/p/a", "https://shop.test/p/b", "https://shop.test/p/c"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := &fakeExtractor{
		failURLs: map[string]bool{"https://shop.test/p/b": true},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	bulk := refinement.NewBulk(ex, store, logger.NewNop(), nil)

	batch, err := bulk.Run(ctx, approval, urls)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{sampleURL, "https://shop.test/p/a"}, batch.Done)

	ex2 := &fakeExtractor{failURLs: map[string]bool{"https://shop.test/p/b": true}}
	batch, err = refinement.NewBulk(ex2, store, logger.NewNop(), nil).Run(context.Background(), approval, urls)
	require.NoError(t, err)

	require.Len(t, ex2.calls, 2)
	assert.Equal(t, "https://shop.test/p/b", ex2.calls[0].url)
	assert.Equal(t, "Use the h1.", ex2.calls[0].instructions)

	assert.Equal(t, urls, batch.Done)
	require.Len(t, batch.Records, 3)
	assert.Equal(t, sampleURL, batch.Records[0].SourceURL)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "https://shop.test/p/b", batch.Failures[0].URL)
	assert.Equal(t, string(extraction.ReasonModel), batch.Failures[0].Reason)

	var saved domain.ExtractionBatch
	found, err := store.Load(context.Background(), checkpoint.Extraction, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, batch.Done, saved.Done)
}
