package stage

import (
	"errors"
	"fmt"
)

// MaxChainLength bounds Walk so a malformed chain can never loop forever.
const MaxChainLength = 1024

var ErrCycle = errors.New("stage chain contains a cycle")

// Walk follows Next links from root and returns the descriptors in chain
// order. A descriptor or stage name seen twice is reported as ErrCycle.
func Walk(root *Descriptor) ([]*Descriptor, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrInvalidDescriptor)
	}

	var (
		stages  []*Descriptor
		visited = make(map[*Descriptor]struct{})
		names   = make(map[string]struct{})
	)
	for d := root; d != nil; d = d.Next {
		if _, seen := visited[d]; seen {
			return nil, fmt.Errorf("%w: stage %s is reached twice", ErrCycle, d.Name)
		}
		if _, seen := names[d.Name]; seen {
			return nil, fmt.Errorf("%w: stage name %s is used twice", ErrCycle, d.Name)
		}
		if len(stages) == MaxChainLength {
			return nil, fmt.Errorf("%w: more than %d stages", ErrCycle, MaxChainLength)
		}
		visited[d] = struct{}{}
		names[d.Name] = struct{}{}
		stages = append(stages, d)
	}
	return stages, nil
}

// Link wires the given descriptors into a chain in argument order and
// returns its root. The arguments are copied; their own Next fields are
// left untouched.
func Link(descs ...*Descriptor) (*Descriptor, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrInvalidDescriptor)
	}

	copies := make([]*Descriptor, len(descs))
	for i, d := range descs {
		if d == nil {
			return nil, fmt.Errorf("%w: nil stage at position %d", ErrInvalidDescriptor, i+1)
		}
		c := *d
		copies[i] = &c
	}
	for i := range copies {
		if i+1 < len(copies) {
			copies[i].Next = copies[i+1]
		} else {
			copies[i].Next = nil
		}
	}

	if _, err := Walk(copies[0]); err != nil {
		return nil, err
	}
	return copies[0], nil
}
