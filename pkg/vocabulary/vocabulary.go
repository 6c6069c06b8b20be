// Package vocabulary holds the closed set of deity labels a myth may be told through.
package vocabulary

import (
	"errors"
	"slices"
	"strings"
)

// Registry is an ordered, immutable set of labels. The zero value is not usable;
// build one with New or take the process-wide Default.
type Registry struct {
	labels   []string
	index    map[string]struct{}
	fallback string
}

var defaultRegistry = mustNew([]string{
	"Aphrodite", "Apollo", "Ares", "Artemis", "Atalanta", "Athena", "Demeter",
	"Hades", "Hecate", "Hephaestus", "Hera", "Hercules", "Hermes", "Odysseus",
	"Orpheus", "Persephone", "Perseus", "Psyche", "The Fates", "Zeus",
}, "Zeus")

// Default returns the registry shared by the whole process.
func Default() *Registry { return defaultRegistry }

// New builds a registry. fallback must be one of labels; an empty fallback selects the first label.
func New(labels []string, fallback string) (*Registry, error) {
	if len(labels) == 0 {
		return nil, errors.New("vocabulary: at least one label is required")
	}
	r := &Registry{
		labels: make([]string, 0, len(labels)),
		index:  make(map[string]struct{}, len(labels)),
	}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, errors.New("vocabulary: blank label")
		}
		if _, dup := r.index[l]; dup {
			continue
		}
		r.index[l] = struct{}{}
		r.labels = append(r.labels, l)
	}
	if fallback == "" {
		fallback = r.labels[0]
	}
	if _, ok := r.index[fallback]; !ok {
		return nil, errors.New("vocabulary: fallback " + fallback + " is not a member")
	}
	r.fallback = fallback
	return r, nil
}

func mustNew(labels []string, fallback string) *Registry {
	r, err := New(labels, fallback)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports exact, case-sensitive membership.
func (r *Registry) Contains(label string) bool {
	_, ok := r.index[label]
	return ok
}

// Fallback is the label substituted whenever generation cannot produce a member.
func (r *Registry) Fallback() string { return r.fallback }

// Labels returns a copy of the labels in registry order.
func (r *Registry) Labels() []string { return slices.Clone(r.labels) }

// Len is the number of labels.
func (r *Registry) Len() int { return len(r.labels) }

// Join renders the labels for prompts, e.g. "Aphrodite, Apollo, ... Zeus".
func (r *Registry) Join(sep string) string { return strings.Join(r.labels, sep) }
