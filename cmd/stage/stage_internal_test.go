package stage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *recordingLogger) Debug(msg string, _ ...logger.Field) { l.record(msg) }
func (l *recordingLogger) Info(msg string, _ ...logger.Field)  { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...logger.Field)  { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ ...logger.Field) { l.record(msg) }
func (l *recordingLogger) With(...logger.Field) logger.Logger  { return l }
func (l *recordingLogger) Sync() error                         { return nil }

func validCatalog() *domain.ReconciledCatalog {
	return &domain.ReconciledCatalog{Tree: domain.CategoryTree{Nodes: []domain.CategoryNode{
		{ID: 0, Name: "Fashion", Level: 1, Parent: domain.NoParent, Department: 0},
		{ID: 1, Name: "Shoes", Level: 2, Parent: 0, Department: 0},
	}}}
}

func TestLoadPlanInputs_OptionalCheckpointsAreLogged(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), checkpoint.ReconciledCatalog, validCatalog()))

	log := &recordingLogger{}
	ctx := logger.WithContext(context.Background(), log)

	in, err := loadPlanInputs(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, in.catalog)
	assert.Nil(t, in.discovery)
	assert.Nil(t, in.extraction)
	assert.Equal(t, []string{
		"No discovery checkpoint; the plan omits URL counts",
		"No extraction checkpoint; the plan omits extraction failures",
	}, log.msgs)
}

func TestLoadPlanInputs_RequiresCatalog(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = loadPlanInputs(context.Background(), store)
	require.Error(t, err)
}
