package local

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/mrchain/internal/shared/logging"
	"github.com/nemanja-m/mrchain/pkg/chain"
	"github.com/nemanja-m/mrchain/pkg/core"
	"github.com/nemanja-m/mrchain/pkg/stage"
)

func wordMap(_, line string) iter.Seq[core.KeyValue] {
	return func(yield func(core.KeyValue) bool) {
		for word := range strings.FieldsSeq(strings.ToLower(line)) {
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

func uniqueMap(_, _ string) iter.Seq[core.KeyValue] {
	return core.Emit(core.KeyValue{Key: "unique words", Value: "1"})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readPart(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, PartFilename))
	require.NoError(t, err)
	return string(data)
}

func wordCountChain(t *testing.T) *stage.Descriptor {
	t.Helper()
	root, err := stage.Link(
		&stage.Descriptor{Name: "WordCount", Map: wordMap, Combine: sumReduce, Reduce: sumReduce},
		&stage.Descriptor{Name: "UniqueCount", Map: uniqueMap, Reduce: sumReduce},
	)
	require.NoError(t, err)
	return root
}

func TestRunner_WordCountThenUniqueCount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in", "a.txt"), "the cat\nthe dog")
	writeFile(t, filepath.Join(dir, "in", "nested", "b.txt"), "a cat\n")
	writeFile(t, filepath.Join(dir, "in", "_SUCCESS"), "ignored words here\n")

	output := filepath.Join(dir, "out")
	c, err := chain.Build(wordCountChain(t), []string{filepath.Join(dir, "in")}, output, filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	runner := NewRunner(Options{MapTasks: 2}, logging.NewNopLogger())
	require.NoError(t, runner.Run(context.Background(), c))

	require.Equal(t, "unique words\t4\n", readPart(t, output))
	require.Equal(t, "a\t1\ncat\t2\ndog\t1\nthe\t2\n", readPart(t, c.Instances[0].Output))
}

func TestRunner_CleanupRemovesNamespace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "x y x\n")

	c, err := chain.Build(wordCountChain(t), []string{filepath.Join(dir, "in.txt")}, filepath.Join(dir, "out"), filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	require.NotEmpty(t, c.Namespace)

	runner := NewRunner(Options{Cleanup: true}, logging.NewNopLogger())
	require.NoError(t, runner.Run(context.Background(), c))

	require.NoDirExists(t, c.Namespace)
	require.Equal(t, "unique words\t2\n", readPart(t, filepath.Join(dir, "out")))
}

func TestRunner_MapOnlyStageCopiesMapOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "b a\n")

	root := &stage.Descriptor{Name: "Split", Map: wordMap}
	c, err := chain.Build(root, []string{filepath.Join(dir, "*.txt")}, filepath.Join(dir, "out"), filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	require.NoError(t, NewRunner(Options{}, logging.NewNopLogger()).Run(context.Background(), c))
	require.Equal(t, "b\t1\na\t1\n", readPart(t, filepath.Join(dir, "out")))
}

func TestRunner_RejectsNativeStage(t *testing.T) {
	root := &stage.Descriptor{Name: "Native", Native: &stage.NativeJob{Jar: "x.jar", Class: "X"}}
	c, err := chain.Build(root, []string{"in"}, "out", "tmp")
	require.NoError(t, err)

	err = NewRunner(Options{}, logging.NewNopLogger()).Run(context.Background(), c)
	require.ErrorIs(t, err, ErrNativeStage)
}

func TestRunner_NoInputFiles(t *testing.T) {
	dir := t.TempDir()
	root := &stage.Descriptor{Name: "Split", Map: wordMap}
	c, err := chain.Build(root, []string{filepath.Join(dir, "missing", "*")}, filepath.Join(dir, "out"), filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	err = NewRunner(Options{}, logging.NewNopLogger()).Run(context.Background(), c)
	require.ErrorContains(t, err, "no files matched")
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "a\n")
	c, err := chain.Build(wordCountChain(t), []string{filepath.Join(dir, "in.txt")}, filepath.Join(dir, "out"), filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewRunner(Options{}, logging.NewNopLogger()).Run(ctx, c)
	require.ErrorIs(t, err, context.Canceled)
	require.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logs", "2024", "a.log"), "")
	writeFile(t, filepath.Join(dir, "logs", "2025", "b.log"), "")
	writeFile(t, filepath.Join(dir, "logs", "2025", ".hidden"), "")
	writeFile(t, filepath.Join(dir, "other.txt"), "")

	files, err := FindFiles([]string{
		filepath.Join(dir, "logs", "**", "*.log"),
		filepath.Join(dir, "logs"),
		filepath.Join(dir, "other.txt"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "logs", "2024", "a.log"),
		filepath.Join(dir, "logs", "2025", "b.log"),
		filepath.Join(dir, "other.txt"),
	}, files)
}

func TestFindFiles_DirectoryWithGlobMetacharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "in[1]*{a,b}")
	writeFile(t, filepath.Join(dir, "part-00000"), "x\n")
	writeFile(t, filepath.Join(dir, "sub", "part-00001"), "y\n")
	writeFile(t, filepath.Join(dir, "_SUCCESS"), "")

	files, err := FindFiles([]string{dir})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "part-00000"),
		filepath.Join(dir, "sub", "part-00001"),
	}, files)
}

func TestRunner_ReadsDirectoryWithGlobMetacharacters(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "logs[2024]")
	writeFile(t, filepath.Join(input, "a.txt"), "b a b\n")

	root := &stage.Descriptor{Name: "WordCount", Map: wordMap, Reduce: sumReduce}
	c, err := chain.Build(root, []string{input}, filepath.Join(dir, "out"), filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	require.NoError(t, NewRunner(Options{}, logging.NewNopLogger()).Run(context.Background(), c))
	require.Equal(t, "a\t1\nb\t2\n", readPart(t, filepath.Join(dir, "out")))
}
