package stage

import (
	"fmt"
	"slices"
)

// Registry maps stage names to descriptors for worker dispatch. It is built
// from a declared chain and handed to whoever needs the lookup.
type Registry struct {
	stages map[string]*Descriptor
	order  []string
}

func NewRegistry(root *Descriptor) (*Registry, error) {
	stages, err := Walk(root)
	if err != nil {
		return nil, err
	}

	r := &Registry{stages: make(map[string]*Descriptor, len(stages))}
	for _, d := range stages {
		r.stages[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (*Descriptor, error) {
	d, exists := r.stages[name]
	if !exists {
		return nil, fmt.Errorf("stage not found: %s", name)
	}
	return d, nil
}

// List returns the stage names in chain order.
func (r *Registry) List() []string {
	return slices.Clone(r.order)
}
