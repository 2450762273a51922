package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/hadoop"
)

const bannerWidth = 80

// StageError reports the first stage whose submission did not succeed.
type StageError struct {
	// RunID matches the run_id attribute of the run's log lines.
	RunID    string
	Stage    string
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s failed to run: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed (exit code %d)", e.Stage, e.ExitCode)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Cleaner removes a chain's intermediate namespace after a successful run.
type Cleaner interface {
	Remove(ctx context.Context, namespace string) error
	Describe(namespace string) string
}

type RunOptions struct {
	// DryRun prints every command instead of running it.
	DryRun bool
	// Cleanup removes the intermediate namespace after all stages succeed.
	Cleanup bool
}

// Orchestrator submits the stages of a chain one at a time, in order.
type Orchestrator struct {
	synth    *hadoop.Synthesizer
	executor Executor
	cleaner  Cleaner
	out      io.Writer
	logger   logging.Logger
}

// New returns an orchestrator printing banners and command output to out.
// A nil cleaner removes namespaces with the engine's filesystem shell.
func New(synth *hadoop.Synthesizer, executor Executor, cleaner Cleaner, out io.Writer, logger logging.Logger) *Orchestrator {
	o := &Orchestrator{
		synth:    synth,
		executor: executor,
		cleaner:  cleaner,
		out:      out,
		logger:   logger,
	}
	if o.cleaner == nil {
		o.cleaner = &engineCleaner{synth: synth, executor: executor, out: out}
	}
	return o
}

// Run executes c. It stops at the first stage that does not exit with
// status 0 and returns a *StageError for it; later stages never start.
// Cancellation is observed between stages and while a stage runs, and is
// returned as ctx's error rather than as a stage failure.
func (o *Orchestrator) Run(ctx context.Context, c *chain.Chain, opts RunOptions) error {
	runID := uuid.New().String()

	if opts.DryRun {
		o.printDryRun(c, opts)
		return nil
	}

	o.logger.Info("Starting chain", "run_id", runID, "stages", c.Len(), "namespace", c.Namespace)

	for _, inst := range c.Instances {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd := o.synth.Command(inst)
		o.banner(inst.Name)
		o.logger.Info("Submitting stage", "run_id", runID, "stage", inst.Name, "ordinal", inst.Ordinal, "output", inst.Output)

		code, err := o.executor.Run(ctx, cmd, o.out, o.out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			o.logger.Warn("Chain cancelled", "run_id", runID, "stage", inst.Name)
			return ctxErr
		}
		if err != nil {
			o.logger.Error("Stage could not be started", "run_id", runID, "stage", inst.Name, "error", err)
			return &StageError{RunID: runID, Stage: inst.Name, ExitCode: code, Err: err}
		}
		if code != 0 {
			o.logger.Error("Stage failed", "run_id", runID, "stage", inst.Name, "exit_code", code)
			return &StageError{RunID: runID, Stage: inst.Name, ExitCode: code}
		}
	}
	o.rule()

	if opts.Cleanup && c.Namespace != "" {
		o.logger.Info("Cleaning up intermediate data", "run_id", runID, "namespace", c.Namespace)
		if err := o.cleaner.Remove(ctx, c.Namespace); err != nil {
			return fmt.Errorf("cleaning up %s: %w", c.Namespace, err)
		}
	}

	o.logger.Info("Chain completed", "run_id", runID)
	return nil
}

func (o *Orchestrator) printDryRun(c *chain.Chain, opts RunOptions) {
	o.banner("Locally in a shell")
	fmt.Fprintln(o.out, o.synth.LocalPreview(c))

	for _, inst := range c.Instances {
		o.banner(inst.Name)
		fmt.Fprintln(o.out, o.synth.Command(inst).String())
	}
	o.rule()

	if opts.Cleanup && c.Namespace != "" {
		fmt.Fprintln(o.out, "\nCleaning up intermediate data:")
		fmt.Fprintln(o.out, o.cleaner.Describe(c.Namespace))
	}
}

func (o *Orchestrator) banner(title string) {
	fill := max(bannerWidth-len(title)-7, 1)
	fmt.Fprintf(o.out, "===== %s %s\n", title, strings.Repeat("=", fill))
}

func (o *Orchestrator) rule() {
	fmt.Fprintln(o.out, strings.Repeat("=", bannerWidth))
}

// engineCleaner deletes through "hadoop dfs -rmr".
type engineCleaner struct {
	synth    *hadoop.Synthesizer
	executor Executor
	out      io.Writer
}

func (c *engineCleaner) Remove(ctx context.Context, namespace string) error {
	code, err := c.executor.Run(ctx, c.synth.CleanupCommand(namespace), c.out, c.out)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("cleanup command exited with code %d", code)
	}
	return nil
}

func (c *engineCleaner) Describe(namespace string) string {
	return c.synth.CleanupCommand(namespace).String()
}
