package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/internal/storage"
	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/core"
	"github.com/nemanja-m/mrchain/pkg/stage"
	"github.com/nemanja-m/mrchain/pkg/streaming"
)

var ErrNativeStage = errors.New("native stages cannot run locally")

type Options struct {
	// MapTasks bounds concurrent map tasks. One task runs per input file.
	MapTasks int
	Cleanup  bool
}

// Runner executes a chain in process, mimicking what the engine does with
// the same streaming program: one map task per input file, a sort on the
// key, then a single reduce task.
type Runner struct {
	opts   Options
	logger logging.Logger
}

func NewRunner(opts Options, logger logging.Logger) *Runner {
	if opts.MapTasks <= 0 {
		opts.MapTasks = runtime.NumCPU()
	}
	return &Runner{opts: opts, logger: logger}
}

func (r *Runner) Run(ctx context.Context, c *chain.Chain) error {
	for _, inst := range c.Instances {
		if inst.Stage.IsNative() {
			return fmt.Errorf("stage %s: %w", inst.Name, ErrNativeStage)
		}
	}

	for _, inst := range c.Instances {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Info("Starting stage", "stage", inst.Name, "ordinal", inst.Ordinal, "output", inst.Output)
		if err := r.runStage(ctx, inst); err != nil {
			return fmt.Errorf("stage %s: %w", inst.Name, err)
		}
		r.logger.Info("Completed stage", "stage", inst.Name)
	}

	if r.opts.Cleanup && c.Namespace != "" {
		cleaner := storage.NewLocalCleaner()
		r.logger.Info("Removing intermediate outputs", "namespace", c.Namespace)
		if err := cleaner.Remove(ctx, c.Namespace); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, inst *chain.Instance) error {
	files, err := FindFiles(inst.Inputs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files matched the inputs: %v", inst.Inputs)
	}

	mapped, err := r.runMap(ctx, inst.Stage, files)
	if err != nil {
		return err
	}

	if !inst.Stage.Capabilities().Reduce {
		return WriteOutput(inst.Output, mapped)
	}

	shuffled, err := shuffle(mapped, streaming.CodecFor(inst.Stage))
	if err != nil {
		return err
	}

	var reduced bytes.Buffer
	engine := streaming.NewEngine(inst.Stage, r.logger)
	if err := engine.RunReduce(ctx, bytes.NewReader(shuffled), &reduced); err != nil {
		return err
	}
	stats := engine.Stats()
	r.logger.Debug("Reduce task finished", "stage", inst.Name, "groups", stats.Groups, "output_records", stats.OutputRecords)

	return WriteOutput(inst.Output, reduced.Bytes())
}

func (r *Runner) runMap(ctx context.Context, desc *stage.Descriptor, files []string) ([]byte, error) {
	outputs := make([]bytes.Buffer, len(files))

	pool := NewPool(ctx, r.opts.MapTasks)
	pool.Start()
	for i, name := range files {
		pool.Submit(func(ctx context.Context) error {
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()

			engine := streaming.NewEngine(desc, r.logger)
			if err := engine.RunMap(ctx, f, &outputs[i]); err != nil {
				return fmt.Errorf("map task %s: %w", name, err)
			}
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	var mapped bytes.Buffer
	for i := range outputs {
		mapped.Write(outputs[i].Bytes())
	}
	return mapped.Bytes(), nil
}

// shuffle orders map output by key then value, the order a single reducer
// observes.
func shuffle(mapped []byte, codec core.Codec) ([]byte, error) {
	var records []core.KeyValue
	reader := streaming.NewRecordReader(bytes.NewReader(mapped), codec)
	for reader.Next() {
		records = append(records, reader.Record())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}

	streaming.SortRecords(records)

	var sorted bytes.Buffer
	for _, kv := range records {
		sorted.WriteString(codec.Encode(kv))
		sorted.WriteByte('\n')
	}
	return sorted.Bytes(), nil
}
