package stage

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nemanja-m/mrchain/pkg/core"
)

var ErrInvalidDescriptor = errors.New("invalid stage descriptor")

// Flag is an extra static submission flag, rendered as "-<Name> <Value>".
type Flag struct {
	Name  string
	Value string
}

// NativeJob names a prebuilt archive and entry class submitted instead of a
// streaming mapper/reducer pair.
type NativeJob struct {
	Jar   string
	Class string
}

// Capabilities records which optional parts a stage provides. Engines test
// these booleans instead of probing the descriptor.
type Capabilities struct {
	Map        bool
	Reduce     bool
	Combine    bool
	Setup      bool
	PostMap    bool
	PostReduce bool
}

// Descriptor is the static description of one processing stage. Descriptors
// are declared once and never modified after a chain is built from them.
type Descriptor struct {
	Name string

	Map     core.MapFunc
	Reduce  core.ReduceFunc
	Combine core.ReduceFunc

	Setup      core.HookFunc
	PostMap    core.HookFunc
	PostReduce core.HookFunc

	// Next is the following stage, nil for the last one.
	Next *Descriptor

	// KeepOutput makes a non-terminal stage write to Output instead of the
	// chain's intermediate namespace.
	KeepOutput bool
	Output     string

	// Flags are passed verbatim to the engine, in declaration order.
	Flags []Flag

	Native *NativeJob

	// Codec overrides the line encoding used by the streaming phases.
	Codec core.Codec
}

func (d *Descriptor) Capabilities() Capabilities {
	return Capabilities{
		Map:        d.Map != nil,
		Reduce:     d.Reduce != nil,
		Combine:    d.Combine != nil,
		Setup:      d.Setup != nil,
		PostMap:    d.PostMap != nil,
		PostReduce: d.PostReduce != nil,
	}
}

func (d *Descriptor) IsNative() bool {
	return d.Native != nil
}

func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if strings.ContainsFunc(d.Name, unicode.IsSpace) {
		return fmt.Errorf("%w: name %q contains whitespace", ErrInvalidDescriptor, d.Name)
	}
	if d.KeepOutput && d.Output == "" {
		return fmt.Errorf("%w: stage %s keeps its output but declares none", ErrInvalidDescriptor, d.Name)
	}
	for _, flag := range d.Flags {
		if flag.Name == "" {
			return fmt.Errorf("%w: stage %s has a flag without a name", ErrInvalidDescriptor, d.Name)
		}
	}

	if d.Native != nil {
		if d.Native.Jar == "" || d.Native.Class == "" {
			return fmt.Errorf("%w: native stage %s needs both jar and class", ErrInvalidDescriptor, d.Name)
		}
		return nil
	}

	caps := d.Capabilities()
	if !caps.Map {
		return fmt.Errorf("%w: stage %s has no map function", ErrInvalidDescriptor, d.Name)
	}
	return nil
}

