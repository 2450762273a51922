package driver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/core"
	"github.com/nemanja-m/mrchain/pkg/hadoop"
	"github.com/nemanja-m/mrchain/pkg/stage"
)

func wordMap(_, line string) iter.Seq[core.KeyValue] {
	return func(yield func(core.KeyValue) bool) {
		for word := range strings.FieldsSeq(line) {
			if !yield(core.KeyValue{Key: word, Value: "1"}) {
				return
			}
		}
	}
}

func sumReduce(key string, values iter.Seq[string]) iter.Seq[core.KeyValue] {
	total := 0
	for v := range values {
		n, _ := strconv.Atoi(v)
		total += n
	}
	return core.Emit(core.KeyValue{Key: key, Value: strconv.Itoa(total)})
}

func testChain(t *testing.T) *stage.Descriptor {
	t.Helper()
	root, err := stage.Link(
		&stage.Descriptor{Name: "WordCount", Map: wordMap, Reduce: sumReduce},
		&stage.Descriptor{Name: "UniqueCount", Map: func(_, _ string) iter.Seq[core.KeyValue] {
			return core.Emit(core.KeyValue{Key: "unique words", Value: "1"})
		}, Reduce: sumReduce},
	)
	require.NoError(t, err)
	return root
}

func engineHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	jar := filepath.Join(home, "contrib", "streaming", "hadoop-streaming-1.2.1.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(jar), 0o755))
	require.NoError(t, os.WriteFile(jar, nil, 0o644))
	return home
}

type fakeExecutor struct {
	calls []hadoop.Command
	fail  string
}

func (f *fakeExecutor) Run(_ context.Context, cmd hadoop.Command, stdout, _ io.Writer) (int, error) {
	f.calls = append(f.calls, cmd)
	line := cmd.String()
	if f.fail != "" && strings.Contains(line, "mapred.job.name="+f.fail) {
		return 3, nil
	}
	_, _ = io.WriteString(stdout, "submitted\n")
	return 0, nil
}

func runDriver(t *testing.T, root *stage.Descriptor, stdin string, executor *fakeExecutor, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if executor == nil {
		executor = &fakeExecutor{}
	}
	code := run(context.Background(), args, root, strings.NewReader(stdin), &stdout, &stderr, executor)
	return code, stdout.String(), stderr.String()
}

func TestWorker_MapPhase(t *testing.T) {
	code, stdout, _ := runDriver(t, testChain(t), "a b\na\n", nil, "/opt/wc", "MAP", "WordCount")
	require.Equal(t, ExitOK, code)
	require.Equal(t, "a\t1\nb\t1\na\t1\n", stdout)
}

func TestWorker_ReducePhase(t *testing.T) {
	code, stdout, _ := runDriver(t, testChain(t), "a\t1\na\t1\nb\t1\n", nil, "/opt/wc", "REDUCE", "WordCount")
	require.Equal(t, ExitOK, code)
	require.Equal(t, "a\t2\nb\t1\n", stdout)
}

func TestWorker_SecondStageReadsFirstStageOutput(t *testing.T) {
	code, stdout, _ := runDriver(t, testChain(t), "a\t2\nb\t1\n", nil, "/opt/wc", "MAP", "UniqueCount")
	require.Equal(t, ExitOK, code)
	require.Equal(t, "unique words\t1\nunique words\t1\n", stdout)
}

func TestWorker_UnknownStage(t *testing.T) {
	code, stdout, stderr := runDriver(t, testChain(t), "a\n", nil, "/opt/wc", "MAP", "Nope")
	require.Equal(t, ExitUsage, code)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "Unknown stage")
}

func TestWorker_MissingStageName(t *testing.T) {
	code, _, _ := runDriver(t, testChain(t), "", nil, "/opt/wc", "REDUCE")
	require.Equal(t, ExitUsage, code)
}

func TestWorker_PhaseFailure(t *testing.T) {
	root := &stage.Descriptor{
		Name:  "Broken",
		Map:   wordMap,
		Setup: func() error { return errors.New("no dictionary") },
	}
	code, _, stderr := runDriver(t, root, "a\n", nil, "/opt/wc", "MAP", "Broken")
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "no dictionary")
}

func TestSubmit_DryRunPrintsEveryStage(t *testing.T) {
	home := engineHome(t)
	executor := &fakeExecutor{}

	code, stdout, stderr := runDriver(t, testChain(t), "", executor,
		"/opt/bin/wc",
		"-i", "/data/a", "--input", "/data/b",
		"-o", "/results",
		"-H", home,
		"--extra-opts=-D mapred.reduce.tasks=2",
		"-D",
		"--dry-run",
	)
	require.Equal(t, ExitOK, code, stderr)
	require.Empty(t, executor.calls)

	namespace := chain.NamespaceRoot(chain.DefaultIntermediateDir, "/results")
	jar := filepath.Join(home, "contrib", "streaming", "hadoop-streaming-1.2.1.jar")

	require.Contains(t, stdout, "===== Locally in a shell")
	require.Contains(t, stdout, "===== WordCount")
	require.Contains(t, stdout, "===== UniqueCount")
	require.Contains(t, stdout, "jar "+jar+" -input /data/a -input /data/b -output "+namespace+"/1/WordCount")
	require.Contains(t, stdout, "-mapper './wc MAP WordCount' -reducer './wc REDUCE WordCount' -D mapred.reduce.tasks=2")
	require.Contains(t, stdout, "-input "+namespace+"/1/WordCount -output /results")
	require.Contains(t, stdout, "dfs -rmr "+namespace)
}

func TestSubmit_RunsStagesInOrder(t *testing.T) {
	executor := &fakeExecutor{}
	code, stdout, stderr := runDriver(t, testChain(t), "", executor,
		"/opt/bin/wc", "-i", "/data", "-o", "/results", "-H", engineHome(t), "-p", "python3")
	require.Equal(t, ExitOK, code, stderr)

	require.Len(t, executor.calls, 2)
	require.Contains(t, executor.calls[0].String(), "mapred.job.name=WordCount")
	require.Contains(t, executor.calls[0].String(), "-mapper 'python3 wc MAP WordCount'")
	require.Contains(t, executor.calls[1].String(), "mapred.job.name=UniqueCount")
	require.Equal(t, 2, strings.Count(stdout, "submitted"))
}

func TestSubmit_StageFailureStopsChain(t *testing.T) {
	executor := &fakeExecutor{fail: "WordCount"}
	code, _, stderr := runDriver(t, testChain(t), "", executor,
		"/opt/bin/wc", "-i", "/data", "-o", "/results", "-H", engineHome(t), "-D")
	require.Equal(t, ExitFailure, code)
	require.Len(t, executor.calls, 1)
	require.Contains(t, stderr, "WordCount")
}

func TestSubmit_MissingHome(t *testing.T) {
	code, _, stderr := runDriver(t, testChain(t), "", nil,
		"/opt/bin/wc", "-i", "/data", "-o", "/results", "-H", filepath.Join(t.TempDir(), "missing"))
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "hadoop home does not exist")
}

func TestSubmit_MissingOutput(t *testing.T) {
	code, _, stderr := runDriver(t, testChain(t), "", nil, "/opt/bin/wc", "-i", "/data", "-H", engineHome(t))
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "output")
}

func TestSplitOpts(t *testing.T) {
	require.Equal(t,
		[]string{"-D", "a=b", "-D", "c=d", "-cmdenv", "X=1"},
		splitOpts([]string{"-D a=b  -D c=d", "-cmdenv X=1"}),
	)
	require.Nil(t, splitOpts(nil))
}
