package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultModelFile is the artifact name under the model directory.
	DefaultModelFile = "churn_model.json"

	dirMode  = 0700
	fileMode = 0600
)

// artifact is the serialized form of a trained forest. The store treats
// it as an opaque blob; only this package reads it back.
type artifact struct {
	ID          string    `json:"id"`
	CreatedAt   string    `json:"created_at"`
	Features    []string  `json:"features"`
	Config      Config    `json:"config"`
	Importances []float64 `json:"importances"`
	Trees       []*node   `json:"trees"`
}

// Save writes the trained forest to path, creating parent directories
// as needed.
func (f *Forest) Save(path string) error {
	if !f.trained {
		return ErrNotTrained
	}
	if path == "" {
		return errors.New("model path required")
	}

	a := artifact{
		ID:          f.ID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Features:    f.names,
		Config:      f.cfg,
		Importances: f.imps,
		Trees:       f.trees,
	}

	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("creating model dir: %w", err)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("writing model file %s: %w", path, err)
	}

	return nil
}

// Load reads a previously saved forest. Returns ErrNotFound when no
// artifact exists at path.
func Load(path string) (*Forest, error) {
	if path == "" {
		return nil, errors.New("model path required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading model file %s: %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("model file %s contains no trees", path)
	}

	return &Forest{
		ID:      a.ID,
		cfg:     a.Config,
		names:   a.Features,
		trees:   a.Trees,
		imps:    a.Importances,
		trained: true,
	}, nil
}
