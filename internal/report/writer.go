package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

// Artifacts are the paths of a written plan.
type Artifacts struct {
	Markdown string
	Workbook string
}

// Writer writes plan artifacts into a directory.
type Writer struct {
	dir    string
	logger logger.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, log logger.Logger) *Writer {
	return &Writer{dir: dir, logger: log}
}

// Write renders p into final_plan.md and final_plan.xlsx, replacing any
// previous plan.
func (w *Writer) Write(p *Plan) (Artifacts, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create report dir: %w", err)
	}

	out := Artifacts{
		Markdown: filepath.Join(w.dir, MarkdownFile),
		Workbook: filepath.Join(w.dir, WorkbookFile),
	}
	if err := writeAtomic(out.Markdown, []byte(p.Markdown())); err != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", MarkdownFile, err)
	}

	f, err := p.Workbook()
	if err != nil {
		return Artifacts{}, fmt.Errorf("build %s: %w", WorkbookFile, err)
	}
	saveErr := f.SaveAs(out.Workbook)
	if closeErr := f.Close(); saveErr == nil && closeErr != nil {
		saveErr = closeErr
	}
	if saveErr != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", WorkbookFile, saveErr)
	}

	w.logger.Info("Migration plan written",
		logger.String("markdown", out.Markdown),
		logger.String("workbook", out.Workbook),
	)
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".plan-*")
	if err != nil {
		return err
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err = errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
