// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package model defines the model catalog: the set of ML workloads the
// harness knows how to containerize and run.
package model

import (
	"encoding/json"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Model describes one runnable workload: where its source lives, which
// Dockerfile family builds its image, and how its container run is invoked.
type Model struct {
	// Name uniquely identifies the model within the catalog.
	Name string `json:"name"`
	// URL is the git repository holding the model source, if any.
	URL string `json:"url,omitempty"`
	// Dockerfile is the recipe prefix (e.g. "docker/vllm") resolved against
	// host OS and GPU vendor suffixes at build time.
	Dockerfile string `json:"dockerfile"`
	// Scripts is the run script invoked inside the container.
	Scripts string `json:"scripts"`
	// Args is appended to the run script invocation.
	Args string `json:"args,omitempty"`
	// NGPUs is the GPU count the workload expects.
	NGPUs int `json:"n_gpus"`
	// Timeout bounds the container run in seconds. Zero selects the default;
	// a negative value disables the deadline.
	Timeout int `json:"timeout,omitempty"`
	// TrainingPrecision is recorded alongside results (e.g. "float16").
	TrainingPrecision string `json:"training_precision,omitempty"`
	// Owner names the team accountable for the workload.
	Owner string `json:"owner,omitempty"`
	// MultipleResults, when set, names a CSV the run script writes with one
	// row per sub-result (columns: model, performance, metric).
	MultipleResults string `json:"multiple_results,omitempty"`
	// Data names an optional dataset mount key.
	Data string `json:"data,omitempty"`
	// Tags support run selection (--tags) and land in result records.
	Tags []string `json:"tags,omitempty"`
}

// HasTags reports whether the model carries every tag in want.
func (m Model) HasTags(want []string) bool {
	for _, t := range want {
		if !slices.Contains(m.Tags, t) {
			return false
		}
	}
	return true
}

// Catalog is the full model registry, typically loaded from models.json.
type Catalog struct {
	Updated time.Time `json:"updated"`
	Count   int       `json:"count"`
	Models  []Model   `json:"models"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading catalog")
	}
	return Parse(data)
}

// Parse decodes and validates catalog JSON.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks catalog-wide invariants.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if strings.TrimSpace(m.Name) == "" {
			return errors.New("model with empty name")
		}
		if seen[m.Name] {
			return errors.Errorf("duplicate model name %q", m.Name)
		}
		seen[m.Name] = true
		if m.Dockerfile == "" {
			return errors.Errorf("model %q has no dockerfile", m.Name)
		}
		if m.Scripts == "" {
			return errors.Errorf("model %q has no run script", m.Name)
		}
		if m.NGPUs < 1 {
			return errors.Errorf("model %q requests %d GPUs", m.Name, m.NGPUs)
		}
	}
	return nil
}

// Get returns the named model.
func (c *Catalog) Get(name string) (Model, error) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, nil
		}
	}
	return Model{}, errors.Errorf("model %q not in catalog", name)
}

// Filter returns models matching the selection, in catalog order. Empty
// names selects all models; tags, when present, must all be carried by a
// model for it to match. Unknown names are an error so typos do not silently
// shrink a batch.
func (c *Catalog) Filter(names, tags []string) ([]Model, error) {
	var out []Model
	if len(names) > 0 {
		for _, name := range names {
			m, err := c.Get(name)
			if err != nil {
				return nil, err
			}
			if m.HasTags(tags) {
				out = append(out, m)
			}
		}
		return out, nil
	}
	for _, m := range c.Models {
		if m.HasTags(tags) {
			out = append(out, m)
		}
	}
	return out, nil
}
