package hadoop

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/streaming"
)

var ErrHomeNotFound = errors.New("hadoop home does not exist")

// Options configure how submission commands are built.
type Options struct {
	// Home is the root of the engine installation. bin/hadoop lives below it.
	Home string
	// StreamingJar overrides the jar discovered under Home.
	StreamingJar string
	// Interpreter runs Program on the workers. Empty means Program is an
	// executable and is started as ./<name>.
	Interpreter string
	// Program is the entry program that is shipped to the workers and
	// re-invoked with MAP or REDUCE and a stage name.
	Program string
	// FrameworkFile is an optional support file shipped next to Program.
	FrameworkFile string
	// ExtraOpts are appended verbatim to every streaming submission.
	ExtraOpts []string
}

// Synthesizer builds engine commands for the stages of a chain.
type Synthesizer struct {
	opts   Options
	binary string
	jar    string
	logger logging.Logger
}

// NewSynthesizer checks that the engine installation exists and resolves the
// streaming jar. A missing jar is not fatal: it is logged and JarNotFound is
// used instead.
func NewSynthesizer(opts Options, logger logging.Logger) (*Synthesizer, error) {
	if opts.Program == "" {
		return nil, errors.New("entry program must be set")
	}
	info, err := os.Stat(opts.Home)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrHomeNotFound, opts.Home)
	}

	s := &Synthesizer{
		opts:   opts,
		binary: filepath.Join(opts.Home, "bin", "hadoop"),
		jar:    opts.StreamingJar,
		logger: logger,
	}

	if s.jar == "" {
		jar, err := FindStreamingJar(opts.Home)
		if err != nil {
			logger.Warn("Streaming jar lookup failed", "home", opts.Home, "error", err)
		}
		if jar == "" {
			logger.Warn("Could not find the streaming jar, submissions will fail", "home", opts.Home)
			jar = JarNotFound
		}
		s.jar = jar
	}

	return s, nil
}

func (s *Synthesizer) StreamingJar() string {
	return s.jar
}

// Command builds the submission for one stage instance.
func (s *Synthesizer) Command(inst *chain.Instance) Command {
	if inst.Stage.IsNative() {
		return s.nativeCommand(inst)
	}

	args := []string{"jar", s.jar}
	args = append(args, s.locationArgs(inst)...)

	if s.opts.FrameworkFile != "" {
		args = append(args, "-file", s.opts.FrameworkFile)
	}
	args = append(args, "-file", s.opts.Program)

	args = append(args, "-mapper", s.WorkerCommand(streaming.PhaseMap, inst.Name))
	if inst.Stage.Capabilities().Reduce {
		args = append(args, "-reducer", s.WorkerCommand(streaming.PhaseReduce, inst.Name))
	} else {
		args = append(args, "-numReduceTasks", "0")
	}

	args = append(args, s.opts.ExtraOpts...)
	args = append(args, "-jobconf", "mapred.job.name="+strings.Join(strings.Fields(inst.Name), ""))

	return Command{Path: s.binary, Args: args}
}

func (s *Synthesizer) nativeCommand(inst *chain.Instance) Command {
	args := []string{"jar", inst.Stage.Native.Jar, inst.Stage.Native.Class}
	args = append(args, s.locationArgs(inst)...)
	return Command{Path: s.binary, Args: args}
}

func (s *Synthesizer) locationArgs(inst *chain.Instance) []string {
	var args []string
	for _, input := range inst.Inputs {
		args = append(args, "-input", input)
	}
	args = append(args, "-output", inst.Output)
	for _, flag := range inst.Stage.Flags {
		args = append(args, "-"+flag.Name, flag.Value)
	}
	return args
}

// WorkerCommand is the command line the engine runs on a worker for one
// phase of a stage. The program is referenced by base name because -file
// places it in the task's working directory.
func (s *Synthesizer) WorkerCommand(phase streaming.Phase, stageName string) string {
	program := filepath.Base(s.opts.Program)
	if s.opts.Interpreter == "" {
		program = "./" + program
	} else {
		program = s.opts.Interpreter + " " + program
	}
	return fmt.Sprintf("%s %s %s", program, phase, stageName)
}

// CleanupCommand recursively deletes a chain's intermediate namespace
// through the engine's filesystem shell.
func (s *Synthesizer) CleanupCommand(namespace string) Command {
	return Command{Path: s.binary, Args: []string{"dfs", "-rmr", namespace}}
}

// LocalPreview renders a shell pipeline that runs the whole chain on one
// machine, with sort standing in for the shuffle.
func (s *Synthesizer) LocalPreview(c *chain.Chain) string {
	var b strings.Builder
	b.WriteString("$ cat")
	if len(c.Instances) > 0 {
		for _, input := range c.Instances[0].Inputs {
			b.WriteString(" " + quote(input))
		}
	}

	local := s.opts.Program
	if s.opts.Interpreter != "" {
		local = s.opts.Interpreter + " " + local
	}
	for _, inst := range c.Instances {
		if inst.Stage.IsNative() {
			fmt.Fprintf(&b, " \\\n\t| # native stage %s cannot run locally", inst.Name)
			continue
		}
		fmt.Fprintf(&b, " \\\n\t| %s %s %s | sort", local, streaming.PhaseMap, inst.Name)
		if inst.Stage.Capabilities().Reduce {
			fmt.Fprintf(&b, " | %s %s %s", local, streaming.PhaseReduce, inst.Name)
		}
	}
	return b.String()
}
