// Package samples holds the built-in example documents offered on the landing screen.
package samples

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"visadoc-backend/internal/analysis"
)

// DefaultID is the sample used when the client does not name one.
const DefaultID = "opt_email"

var ErrNotFound = errors.New("sample not found")

//go:embed samples.yaml
var catalogYAML []byte

type Sample struct {
	ID        string             `yaml:"id" json:"id"`
	Title     string             `yaml:"title" json:"title"`
	Source    string             `yaml:"source" json:"source"`
	Situation analysis.Situation `yaml:"situation" json:"situation,omitempty"`
	Text      string             `yaml:"text" json:"text"`
}

type catalog struct {
	Samples []Sample `yaml:"samples"`
}

var (
	loadOnce sync.Once
	loaded   []Sample
	loadErr  error
)

// Parse reads a sample catalog. Text is trimmed and situations are checked.
func Parse(r io.Reader) ([]Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse samples: %w", err)
	}
	seen := make(map[string]bool, len(c.Samples))
	out := make([]Sample, 0, len(c.Samples))
	for i, s := range c.Samples {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return nil, fmt.Errorf("sample %d: missing id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("sample %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if s.Situation != "" && !s.Situation.Valid() {
			return nil, fmt.Errorf("sample %q: unknown situation %q", s.ID, s.Situation)
		}
		s.Text = strings.TrimSpace(s.Text)
		if !analysis.DocumentReady(s.Text) {
			return nil, fmt.Errorf("sample %q: text too short", s.ID)
		}
		out = append(out, s)
	}
	return out, nil
}

// List returns the embedded samples in catalog order.
func List() []Sample {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(strings.NewReader(string(catalogYAML)))
	})
	if loadErr != nil {
		panic(loadErr)
	}
	out := make([]Sample, len(loaded))
	copy(out, loaded)
	return out
}

// Get returns the sample with the given id. An empty id selects DefaultID.
func Get(id string) (Sample, error) {
	if strings.TrimSpace(id) == "" {
		id = DefaultID
	}
	for _, s := range List() {
		if s.ID == id {
			return s, nil
		}
	}
	return Sample{}, ErrNotFound
}
