package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/nemanja-m/mrchain/examples/grep"
	"github.com/nemanja-m/mrchain/examples/wordcount"
	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/local"
	"github.com/nemanja-m/mrchain/pkg/stage"
)

type inputsFlag []string

func (f *inputsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *inputsFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	var inputs inputsFlag
	flag.Var(&inputs, "input", "input file, directory or glob pattern (repeatable)")
	var (
		output       = flag.String("output", "", "output directory")
		chainName    = flag.String("chain", "wordcount", "chain to run (wordcount, grep)")
		pattern      = flag.String("pattern", grep.DefaultPattern, "regular expression for the grep chain")
		intermediate = flag.String("intermediate-dir", filepath.Join(os.TempDir(), "mrchain"), "base directory for intermediate outputs")
		mapTasks     = flag.Int("map-tasks", 0, "concurrent map tasks (defaults to the number of CPUs)")
		cleanup      = flag.Bool("delete-intermediates", false, "remove intermediate outputs after a successful run")
		logLevel     = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.NewSlogLogger(level, "text", os.Stderr)

	if len(inputs) == 0 {
		logger.Fatal("Input must be specified using the -input flag")
	}
	if *output == "" {
		logger.Fatal("Output directory must be specified using the -output flag")
	}

	chains := map[string]func() (*stage.Descriptor, error){
		"wordcount": func() (*stage.Descriptor, error) { return wordcount.Chain(), nil },
		"grep":      func() (*stage.Descriptor, error) { return grep.Chain(*pattern) },
	}
	newChain, ok := chains[*chainName]
	if !ok {
		names := make([]string, 0, len(chains))
		for name := range chains {
			names = append(names, name)
		}
		slices.Sort(names)
		logger.Fatal("Unknown chain", "chain", *chainName, "available", names)
	}

	root, err := newChain()
	if err != nil {
		logger.Fatal("Invalid chain", "chain", *chainName, "error", err)
	}

	c, err := chain.Build(root, inputs, *output, *intermediate)
	if err != nil {
		logger.Fatal("Invalid chain", "chain", *chainName, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting chain", "chain", *chainName, "stages", c.Names(), "output", *output)

	runner := local.NewRunner(local.Options{MapTasks: *mapTasks, Cleanup: *cleanup}, logger)
	if err := runner.Run(ctx, c); err != nil {
		logger.Error("Chain failed", "error", err)
		stop()
		os.Exit(1)
	}

	logger.Info("Chain completed")
}
