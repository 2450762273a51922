// Package driver is the entry point of a chain program. The same binary
// submits the chain when run by a user and serves as the map or reduce
// worker when the engine re-invokes it with a phase and a stage name.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nemanja-m/mrchain/internal/shared/config"
	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/internal/storage"
	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/hadoop"
	"github.com/nemanja-m/mrchain/pkg/orchestrator"
	"github.com/nemanja-m/mrchain/pkg/stage"
	"github.com/nemanja-m/mrchain/pkg/streaming"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Main runs the program for root with the process arguments and standard
// streams, and returns the exit code.
//
//	func main() {
//		os.Exit(driver.Main(os.Args, wordcount.Chain()))
//	}
func Main(args []string, root *stage.Descriptor) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, args, root, os.Stdin, os.Stdout, os.Stderr)
}

// Run dispatches on args: "<prog> MAP|REDUCE <stage>" runs one phase of a
// stage over stdin, anything else is parsed as a submission command line.
func Run(ctx context.Context, args []string, root *stage.Descriptor, stdin io.Reader, stdout, stderr io.Writer) int {
	return run(ctx, args, root, stdin, stdout, stderr, orchestrator.NewExecExecutor())
}

func run(ctx context.Context, args []string, root *stage.Descriptor, stdin io.Reader, stdout, stderr io.Writer, executor orchestrator.Executor) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "missing program name")
		return ExitUsage
	}

	if len(args) > 1 {
		if phase, ok := streaming.ParsePhase(args[1]); ok {
			return runWorker(ctx, phase, args[2:], root, stdin, stdout, stderr)
		}
	}

	cmd := newRootCommand(args[0], root, stdout, stderr, executor)
	cmd.SetArgs(args[1:])
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
	return ExitOK
}

func runWorker(ctx context.Context, phase streaming.Phase, args []string, root *stage.Descriptor, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := logging.NewSlogLogger(slog.LevelInfo, "text", stderr)

	if len(args) == 0 {
		logger.Error("Missing stage name", "phase", phase)
		return ExitUsage
	}
	name := args[0]

	registry, err := stage.NewRegistry(root)
	if err != nil {
		logger.Error("Invalid chain", "error", err)
		return ExitFailure
	}
	desc, err := registry.Get(name)
	if err != nil {
		logger.Error("Unknown stage", "stage", name, "available", registry.List())
		return ExitUsage
	}

	engine := streaming.NewEngine(desc, logger)
	if err := engine.Run(ctx, phase, stdin, stdout); err != nil {
		logger.Error("Phase failed", "phase", phase, "stage", name, "error", err)
		return ExitFailure
	}
	return ExitOK
}

type submitFlags struct {
	configPath string
}

func newRootCommand(program string, root *stage.Descriptor, stdout, stderr io.Writer, executor orchestrator.Executor) *cobra.Command {
	var f submitFlags

	cmd := &cobra.Command{
		Use:           filepath.Base(program),
		Short:         "Submit a chain of streaming map/reduce stages",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDriver(f.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return submit(cmd.Context(), cfg, program, root, stdout, stderr, executor)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayP("input", "i", nil, "input location, repeat for more than one")
	flags.StringP("output", "o", "", "final output location")
	flags.StringArrayP("extra-opts", "e", nil, "extra options appended to every streaming submission")
	flags.StringP("intermediate-dir", "d", chain.DefaultIntermediateDir, "base directory for intermediate outputs")
	flags.StringP("home", "H", "", "engine installation directory")
	flags.StringP("streaming", "S", "", "streaming jar, discovered under home when empty")
	flags.StringP("interpreter", "p", "", "interpreter the workers run the program with")
	flags.Bool("dry-run", false, "print the commands instead of running them")
	flags.BoolP("delete-intermediates", "D", false, "remove intermediate outputs after a successful run")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&f.configPath, "config", "", "path to config file")

	return cmd
}

func submit(ctx context.Context, cfg *config.DriverConfig, program string, root *stage.Descriptor, stdout, stderr io.Writer, executor orchestrator.Executor) error {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.NewSlogLogger(level, cfg.Logging.Format, stderr)

	c, err := chain.Build(root, cfg.Chain.Inputs, cfg.Chain.Output, cfg.Chain.IntermediateDir)
	if err != nil {
		return err
	}

	synth, err := hadoop.NewSynthesizer(hadoop.Options{
		Home:          cfg.Engine.Home,
		StreamingJar:  cfg.Engine.StreamingJar,
		Interpreter:   cfg.Engine.Interpreter,
		Program:       program,
		FrameworkFile: cfg.Engine.FrameworkFile,
		ExtraOpts:     splitOpts(cfg.Engine.ExtraOpts),
	}, logger)
	if err != nil {
		return err
	}

	cleaner, closeCleaner, err := newCleaner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCleaner()

	orch := orchestrator.New(synth, executor, cleaner, stdout, logger)
	err = orch.Run(ctx, c, orchestrator.RunOptions{
		DryRun:  cfg.Chain.DryRun,
		Cleanup: cfg.Cleanup.DeleteIntermediates,
	})

	var stageErr *orchestrator.StageError
	if errors.As(err, &stageErr) {
		logger.Error("Chain failed", "run_id", stageErr.RunID, "stage", stageErr.Stage, "exit_code", stageErr.ExitCode)
	}
	return err
}

// newCleaner returns nil for the engine mode, which the orchestrator turns
// into "hadoop dfs -rmr". The HDFS client is only dialed when a real run
// will delete something.
func newCleaner(cfg *config.DriverConfig, logger logging.Logger) (orchestrator.Cleaner, func(), error) {
	noop := func() {}

	switch cfg.Cleanup.Mode {
	case config.CleanupModeLocal:
		return storage.NewLocalCleaner(), noop, nil
	case config.CleanupModeHDFS:
		if cfg.Chain.DryRun || !cfg.Cleanup.DeleteIntermediates {
			return nil, noop, nil
		}
		cleaner, err := storage.NewHDFSCleaner(cfg.Cleanup.HDFS.Namenode, cfg.Cleanup.HDFS.User)
		if err != nil {
			return nil, noop, err
		}
		return cleaner, func() {
			if err := cleaner.Close(); err != nil {
				logger.Warn("Closing HDFS client failed", "error", err)
			}
		}, nil
	default:
		return nil, noop, nil
	}
}

// splitOpts splits every value on whitespace, so "-e '-D a=b -D c=d'" and
// repeated -e flags are equivalent.
func splitOpts(values []string) []string {
	var opts []string
	for _, v := range values {
		opts = append(opts, strings.Fields(v)...)
	}
	return opts
}
