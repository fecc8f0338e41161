package operator_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/operator"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/refinement"
)

func console(input string) (*operator.Console, *bytes.Buffer) {
	var out bytes.Buffer
	return operator.NewConsole(strings.NewReader(input), &out), &out
}

func TestConsole_ReviewSample(t *testing.T) {
	t.Parallel()

	c, out := console("maybe\nREFINE\n")
	action, err := c.ReviewSample(context.Background(), refinement.Iteration{
		Number: 2,
		Record: &domain.ExtractionRecord{Product: domain.Product{Name: "Runner"}},
	})
	require.NoError(t, err)
	assert.Equal(t, refinement.ActionRefine, action)
	assert.Contains(t, out.String(), "ITERATION 2")
	assert.Contains(t, out.String(), `"Runner"`)
	assert.Contains(t, out.String(), `Invalid option "maybe"`)
}

func TestConsole_ReviewSampleEnterAccepts(t *testing.T) {
	t.Parallel()

	c, out := console("\n")
	action, err := c.ReviewSample(context.Background(), refinement.Iteration{
		Number: 1,
		Error:  "no product",
		Reason: "llm",
	})
	require.NoError(t, err)
	assert.Equal(t, refinement.ActionDone, action)
	assert.Contains(t, out.String(), "Extraction failed (llm): no product")
}

func TestConsole_EditInstructions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "done terminates", input: "price is in .amount\nsku from select\ndone\nignored\n", want: "price is in .amount\nsku from select"},
		{name: "two blank lines terminate", input: "first\n\nsecond\n\n\nignored\n", want: "first\n\nsecond"},
		{name: "keep", input: "keep\n", want: ""},
		{name: "immediate done", input: "done\n", want: ""},
		{name: "end of input", input: "only line", want: "only line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, out := console(tt.input)
			got, err := c.EditInstructions(context.Background(), "old text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "old text")
		})
	}
}

func TestConsole_Feedback(t *testing.T) {
	t.Parallel()

	c, _ := console("  brand is in the breadcrumb  \n")
	got, err := c.Feedback(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "brand is in the breadcrumb", got)
}

func TestConsole_ReviewPossible(t *testing.T) {
	t.Parallel()

	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "default none", input: "\n", want: nil},
		{name: "all", input: "ALL\n", want: urls},
		{name: "numbers", input: "3, 1,3\n", want: []string{"https://a.test/3", "https://a.test/1"}},
		{name: "invalid then none", input: "7\nnone\n", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := console(tt.input)
			got, err := c.ReviewPossible(context.Background(), urls)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsole_BulkQuantityAndConfirm(t *testing.T) {
	t.Parallel()

	c, out := console(" 25 \nAPPROVED\n")
	n, err := c.BulkQuantity(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, "25", n)

	answer, err := c.Confirm(context.Background(), "/tmp/final_plan.md")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", answer)
	assert.Contains(t, out.String(), "Total product URLs available: 40")
	assert.Contains(t, out.String(), "/tmp/final_plan.md")
}

func TestConsole_InputClosed(t *testing.T) {
	t.Parallel()

	c, _ := console("")
	_, err := c.Feedback(context.Background(), 1)
	assert.ErrorIs(t, err, operator.ErrInputClosed)
}

func TestConsole_HonorsContext(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	c := operator.NewConsole(r, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.BulkQuantity(ctx, 5)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
