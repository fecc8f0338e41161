package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileExt  = ".json"
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileStore keeps each checkpoint as <dir>/<name>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, name string, v any) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read checkpoint %s: %w", name, err)
	}

	if decodeErr := decode(name, data, v); decodeErr != nil {
		return false, decodeErr
	}
	return true, nil
}

// Save implements Store. The document is written to a temp file in the same
// directory and renamed over the target.
func (s *FileStore) Save(_ context.Context, name string, v any) error {
	if err := validateName(name); err != nil {
		return err
	}

	data, err := encode(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint %s: %w", name, writeErr)
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint %s: %w", name, syncErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		return fmt.Errorf("close checkpoint %s: %w", name, closeErr)
	}
	if chmodErr := os.Chmod(tmpName, filePerm); chmodErr != nil {
		return fmt.Errorf("chmod checkpoint %s: %w", name, chmodErr)
	}

	if renameErr := os.Rename(tmpName, s.path(name)); renameErr != nil {
		return fmt.Errorf("replace checkpoint %s: %w", name, renameErr)
	}
	return nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		fi, infoErr := e.Info()
		if infoErr != nil {
			return nil, fmt.Errorf("stat checkpoint %s: %w", name, infoErr)
		}
		out = append(out, Info{
			Name:      strings.TrimSuffix(name, fileExt),
			UpdatedAt: fi.ModTime(),
			Size:      int(fi.Size()),
		})
	}

	sortInfos(out)
	return out, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
