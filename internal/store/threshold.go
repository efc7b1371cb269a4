// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store persists the user-calibrated step threshold between runs.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/relabs-tech/walking_synth/internal/step"
)

// ErrNoThreshold is returned by Load when nothing has been saved yet.
var ErrNoThreshold = errors.New("store: no saved threshold")

const schemaVersion = 1

// savedThreshold is the JSON document on disk.
type savedThreshold struct {
	SchemaVersion int     `json:"schema_version"`
	Threshold     float64 `json:"threshold"`
	SavedAt       string  `json:"saved_at"` // RFC3339
}

// ThresholdFile stores the threshold as a small JSON document.
type ThresholdFile struct {
	path string
	mu   sync.Mutex
}

func NewThresholdFile(path string) *ThresholdFile {
	return &ThresholdFile{path: path}
}

func (f *ThresholdFile) Path() string { return f.path }

// Load reads the saved threshold. The value is returned as stored; callers
// clamp it through step.Threshold.Set.
func (f *ThresholdFile) Load() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNoThreshold
	}
	if err != nil {
		return 0, fmt.Errorf("store: read %s: %w", f.path, err)
	}

	var doc savedThreshold
	if err := json.Unmarshal(b, &doc); err != nil {
		return 0, fmt.Errorf("store: decode %s: %w", f.path, err)
	}
	if doc.SchemaVersion != schemaVersion {
		return 0, fmt.Errorf("store: %s: unsupported schema version %d", f.path, doc.SchemaVersion)
	}
	return doc.Threshold, nil
}

// Save writes v atomically (temp file + rename).
func (f *ThresholdFile) Save(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := json.MarshalIndent(savedThreshold{
		SchemaVersion: schemaVersion,
		Threshold:     v,
		SavedAt:       time.Now().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".threshold-*.json")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("store: rename to %s: %w", f.path, err)
	}
	return nil
}

// Restore loads the saved value into th. A missing file leaves th untouched
// and is not an error. It returns the value th holds afterwards.
func Restore(f *ThresholdFile, th *step.Threshold) (float64, error) {
	v, err := f.Load()
	if errors.Is(err, ErrNoThreshold) {
		return th.Get(), nil
	}
	if err != nil {
		return th.Get(), err
	}
	return th.Set(v), nil
}

// Persist saves the current value of th.
func Persist(f *ThresholdFile, th *step.Threshold) (float64, error) {
	v := th.Get()
	return v, f.Save(v)
}
