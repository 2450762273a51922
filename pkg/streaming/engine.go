package streaming

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/pkg/core"
	"github.com/nemanja-m/mrchain/pkg/stage"
)

type Phase string

const (
	PhaseMap    Phase = "MAP"
	PhaseReduce Phase = "REDUCE"
)

func ParsePhase(s string) (Phase, bool) {
	switch Phase(s) {
	case PhaseMap:
		return PhaseMap, true
	case PhaseReduce:
		return PhaseReduce, true
	}
	return "", false
}

// Stats counts the records seen by the last phase an engine ran.
type Stats struct {
	InputRecords  int
	OutputRecords int
	Groups        int
}

// Engine runs the map or reduce phase of a single stage over line-oriented
// input, the same way a streaming worker process does.
type Engine struct {
	stage  *stage.Descriptor
	caps   stage.Capabilities
	codec  core.Codec
	logger logging.Logger
	stats  Stats
}

func NewEngine(desc *stage.Descriptor, logger logging.Logger) *Engine {
	return &Engine{
		stage:  desc,
		caps:   desc.Capabilities(),
		codec:  CodecFor(desc),
		logger: logger,
	}
}

// CodecFor returns the stage's codec override, or TabCodec.
func CodecFor(desc *stage.Descriptor) core.Codec {
	if desc.Codec != nil {
		return desc.Codec
	}
	return TabCodec{}
}

func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) Run(ctx context.Context, phase Phase, in io.Reader, out io.Writer) error {
	switch phase {
	case PhaseMap:
		return e.RunMap(ctx, in, out)
	case PhaseReduce:
		return e.RunReduce(ctx, in, out)
	default:
		return fmt.Errorf("unknown phase: %s", phase)
	}
}

// RunMap maps every input line in order. Without a combine function the
// output is written as it is produced. With one, all map output is buffered,
// sorted and combined per key before anything is written.
func (e *Engine) RunMap(ctx context.Context, in io.Reader, out io.Writer) error {
	if !e.caps.Map {
		return fmt.Errorf("stage %s has no map function", e.stage.Name)
	}
	e.stats = Stats{}

	if err := e.runHook("setup", e.stage.Setup); err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	lines := NewLineReader(in)

	if e.caps.Combine {
		var buffered []core.KeyValue
		for lines.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.stats.InputRecords++
			rec := lines.Record()
			for kv := range e.stage.Map(rec.Key, rec.Value) {
				buffered = append(buffered, kv)
			}
		}
		if err := lines.Err(); err != nil {
			return err
		}

		SortRecords(buffered)
		if err := e.reduceGroups(NewSliceReader(buffered), e.stage.Combine, w); err != nil {
			return err
		}
	} else {
		for lines.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.stats.InputRecords++
			rec := lines.Record()
			for kv := range e.stage.Map(rec.Key, rec.Value) {
				if err := e.write(w, kv); err != nil {
					return err
				}
			}
		}
		if err := lines.Err(); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}

	e.logger.Debug("Map phase completed",
		"stage", e.stage.Name,
		"input_records", e.stats.InputRecords,
		"output_records", e.stats.OutputRecords,
		"combined_groups", e.stats.Groups,
	)

	return e.runHook("post-map", e.stage.PostMap)
}

// RunReduce reduces input that is already sorted by key. It never sorts:
// records are grouped by runs of equal consecutive keys.
func (e *Engine) RunReduce(ctx context.Context, in io.Reader, out io.Writer) error {
	if !e.caps.Reduce {
		return fmt.Errorf("stage %s has no reduce function", e.stage.Name)
	}
	e.stats = Stats{}

	if err := e.runHook("setup", e.stage.Setup); err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	records := &countingReader{Reader: NewRecordReader(in, e.codec), ctx: ctx, stats: &e.stats}

	if err := e.reduceGroups(records, e.stage.Reduce, w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	e.logger.Debug("Reduce phase completed",
		"stage", e.stage.Name,
		"input_records", e.stats.InputRecords,
		"output_records", e.stats.OutputRecords,
		"groups", e.stats.Groups,
	)

	return e.runHook("post-reduce", e.stage.PostReduce)
}

func (e *Engine) reduceGroups(r Reader, reduce core.ReduceFunc, w *bufio.Writer) error {
	return GroupKeys(r, func(key string, values iter.Seq[string]) error {
		e.stats.Groups++
		for kv := range reduce(key, values) {
			if err := e.write(w, kv); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) write(w *bufio.Writer, kv core.KeyValue) error {
	if _, err := w.WriteString(e.codec.Encode(kv)); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	e.stats.OutputRecords++
	return nil
}

func (e *Engine) runHook(name string, hook core.HookFunc) error {
	if hook == nil {
		return nil
	}
	if err := hook(); err != nil {
		return fmt.Errorf("%s hook of stage %s: %w", name, e.stage.Name, err)
	}
	return nil
}

// countingReader counts input records and stops at context cancellation.
type countingReader struct {
	Reader
	ctx   context.Context
	stats *Stats
	err   error
}

func (r *countingReader) Next() bool {
	if r.err != nil {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if !r.Reader.Next() {
		return false
	}
	r.stats.InputRecords++
	return true
}

func (r *countingReader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.Reader.Err()
}
