package chain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nemanja-m/mrchain/pkg/core"
	"github.com/nemanja-m/mrchain/pkg/stage"
)

const DefaultIntermediateDir = "/__mrchain"

// Instance is one stage of a built chain with its locations resolved.
type Instance struct {
	// Ordinal is the 1-based position within the chain.
	Ordinal int
	Name    string
	Stage   *stage.Descriptor
	Inputs  []string
	Output  string
}

// Chain is an ordered, wired sequence of stage instances.
type Chain struct {
	Instances []*Instance

	// Namespace is the directory holding all intermediate outputs of the
	// chain, or empty when no output was redirected there.
	Namespace string
}

// Build expands root into a chain reading inputs and writing output. Every
// stage but the last writes into the intermediate namespace under baseDir,
// unless it keeps its declared output.
func Build(root *stage.Descriptor, inputs []string, output, baseDir string) (*Chain, error) {
	if len(inputs) == 0 {
		return nil, errors.New("chain needs at least one input")
	}
	if output == "" {
		return nil, errors.New("chain needs an output")
	}
	if baseDir == "" {
		baseDir = DefaultIntermediateDir
	}

	stages, err := stage.Walk(root)
	if err != nil {
		return nil, err
	}

	c := &Chain{Instances: make([]*Instance, 0, len(stages))}
	for i, d := range stages {
		if err := d.Validate(); err != nil {
			return nil, err
		}

		ordinal := i + 1
		inst := &Instance{Ordinal: ordinal, Name: d.Name, Stage: d}

		if i == 0 {
			inst.Inputs = slices.Clone(inputs)
		} else {
			inst.Inputs = []string{c.Instances[i-1].Output}
		}

		switch {
		case ordinal == len(stages):
			inst.Output = output
		case d.KeepOutput:
			inst.Output = d.Output
		default:
			inst.Output = IntermediatePath(baseDir, output, ordinal, d.Name)
			c.Namespace = NamespaceRoot(baseDir, output)
		}

		c.Instances = append(c.Instances, inst)
	}

	return c, nil
}

func (c *Chain) Len() int {
	return len(c.Instances)
}

// Names returns the stage names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.Instances))
	for i, inst := range c.Instances {
		names[i] = inst.Name
	}
	return names
}

// NamespaceRoot returns <baseDir>/<hash(finalOutput)>.
func NamespaceRoot(baseDir, finalOutput string) string {
	return joinLocation(baseDir, core.Hash(finalOutput))
}

// IntermediatePath returns <baseDir>/<hash(finalOutput)>/<ordinal>/<name>.
func IntermediatePath(baseDir, finalOutput string, ordinal int, name string) string {
	return joinLocation(NamespaceRoot(baseDir, finalOutput), strconv.Itoa(ordinal), name)
}

// joinLocation joins with "/" without cleaning, so locations such as
// hdfs://namenode/tmp keep their scheme intact.
func joinLocation(base string, elems ...string) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/%s", base, strings.Join(elems, "/"))
}
