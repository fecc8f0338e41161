// Package checkpoint persists stage outputs so a migration can stop and
// resume at any stage boundary.
//
// A checkpoint is a JSON document addressed by name. Saves overwrite the
// whole document atomically; loads of a missing checkpoint report false
// rather than an error. Checkpoints may be edited by hand between runs.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Checkpoint names, one per producing stage.
const (
	Discovery         = "discovery"
	CustomPrompt      = "custom_prompt"
	ExtractionSample  = "extraction_sample"
	Extraction        = "extraction"
	ReconciledCatalog = "reconciled_catalog"
	Execution         = "execution"
)

// Names lists every checkpoint in pipeline order.
var Names = []string{Discovery, CustomPrompt, ExtractionSample, Extraction, ReconciledCatalog, Execution}

// ErrInvalidName is returned for names outside [a-z0-9_-].
var ErrInvalidName = errors.New("invalid checkpoint name")

// Store loads and saves checkpoints.
type Store interface {
	// Load decodes the named checkpoint into v. It returns false when the
	// checkpoint does not exist.
	Load(ctx context.Context, name string, v any) (bool, error)
	// Save encodes v and replaces the named checkpoint atomically.
	Save(ctx context.Context, name string, v any) error
	// List returns the stored checkpoints ordered by name.
	List(ctx context.Context) ([]Info, error)
	Close() error
}

// Info describes a stored checkpoint.
type Info struct {
	Name      string
	UpdatedAt time.Time
	Size      int
}

// CorruptError is returned when a stored checkpoint cannot be decoded.
type CorruptError struct {
	Name string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("checkpoint %s is corrupt: %v", e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

func validateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

func decode(name string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &CorruptError{Name: name, Err: err}
	}
	return nil
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}
