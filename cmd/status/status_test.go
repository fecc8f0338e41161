package status_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/cmd/status"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
)

func TestRender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, checkpoint.Discovery, &domain.DiscoveryResult{
		URLs:           make([]domain.DiscoveredURL, 4),
		Selected:       []string{"https://shop.test/p/a", "https://shop.test/p/b"},
		ReviewRequired: true,
	}))
	result := domain.NewExecutionResult("run-1", time.Now())
	result.Completed["id:1"] = true
	require.NoError(t, store.Save(ctx, checkpoint.Execution, result))

	var buf bytes.Buffer
	require.NoError(t, status.Render(ctx, &buf, store))

	out := buf.String()
	assert.Contains(t, out, "4 URLs, 2 selected, 0 for review (review required)")
	assert.Contains(t, out, "in progress, 1 units done, 0 errors")
	assert.Contains(t, out, "not started")
}
