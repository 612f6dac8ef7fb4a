// Package labels holds the closed set of department labels a user may pick
// when correcting a prediction.
package labels

import (
	"fmt"
	"strings"
)

// Default mirrors the classes the ticket model is trained on.
var Default = []string{
	"Access",
	"Administrative rights",
	"HR Support",
	"Hardware",
	"Internal Project",
	"Miscellaneous",
	"Purchase",
	"Storage",
}

// Registry is an ordered, read-only label set. The zero value is empty.
type Registry struct {
	ordered []string
	index   map[string]struct{}
}

// New builds a registry from labels, keeping their order. Blank entries and
// duplicates are rejected.
func New(labels []string) (*Registry, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("label registry must not be empty")
	}
	r := &Registry{
		ordered: make([]string, 0, len(labels)),
		index:   make(map[string]struct{}, len(labels)),
	}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("label registry contains a blank label")
		}
		if _, dup := r.index[label]; dup {
			return nil, fmt.Errorf("duplicate label %q", label)
		}
		r.index[label] = struct{}{}
		r.ordered = append(r.ordered, label)
	}
	return r, nil
}

// MustDefault returns the built-in registry.
func MustDefault() *Registry {
	r, err := New(Default)
	if err != nil {
		panic(err)
	}
	return r
}

// Labels returns the labels in registry order. The slice is a copy.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) Contains(label string) bool {
	_, ok := r.index[label]
	return ok
}

func (r *Registry) Len() int {
	return len(r.ordered)
}
