package bsum

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeNamed(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func wantHex(t *testing.T, data []byte, algo Algorithm) string {
	t.Helper()
	sum, err := sumWhole(bytes.NewReader(data), algo)
	if err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(sum)
}

// sumLines maps path -> hex digest from Sum's output.
func sumLines(t *testing.T, out string) map[string]string {
	t.Helper()
	got := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		sum, path, found := strings.Cut(line, "  ")
		if !found {
			t.Fatalf("malformed output line: %q", line)
		}
		if _, dup := got[path]; dup {
			t.Fatalf("path %s reported more than once", path)
		}
		got[path] = sum
	}
	return got
}

func TestSumMixedBatchReportsEveryFileOnce(t *testing.T) {
	dir := t.TempDir()
	contents := map[string][]byte{
		"empty":      {},
		"hello":      []byte("hello world"),
		"small-a":    make([]byte, 90000),
		"small-b":    patterned(90000),
		"small-c":    make([]byte, 90000),
		"just-large": patterned(smallFileLimit + 1),
		"zeros":      make([]byte, 20*1024*1024),
	}
	var paths []string
	for name, data := range contents {
		paths = append(paths, writeNamed(t, dir, name, data))
	}
	missing := filepath.Join(dir, "no-such-file")
	paths = append(paths, missing)

	var out, errOut bytes.Buffer
	failed := Sum(paths, Config{Jobs: 4, Prog: "bsum", Stdout: &out, Stderr: &errOut})

	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	got := sumLines(t, out.String())
	if len(got) != len(contents) {
		t.Fatalf("reported %d files, want %d", len(got), len(contents))
	}
	for name, data := range contents {
		path := filepath.Join(dir, name)
		if got[path] != wantHex(t, data, Blake3) {
			t.Fatalf("%s: digest %s, want %s", name, got[path], wantHex(t, data, Blake3))
		}
	}
	errLine := errOut.String()
	if strings.Count(errLine, missing) != 1 || !strings.HasPrefix(errLine, "bsum: ") {
		t.Fatalf("unexpected error output: %q", errLine)
	}
	// The os error already names the path; the line must not repeat it.
	if strings.Contains(errLine, "open ") {
		t.Fatalf("error line carries the wrapped os error verbatim: %q", errLine)
	}
}

func TestSumMmapMatchesRead(t *testing.T) {
	dir := t.TempDir()
	path := writeNamed(t, dir, "large", patterned(smallFileLimit*3))

	for _, useMmap := range []bool{false, true} {
		var out bytes.Buffer
		if failed := Sum([]string{path}, Config{UseMmap: useMmap, Stdout: &out, Stderr: &out}); failed != 0 {
			t.Fatalf("mmap=%v: %d failures", useMmap, failed)
		}
		got := sumLines(t, out.String())
		if got[path] != wantHex(t, patterned(smallFileLimit*3), Blake3) {
			t.Fatalf("mmap=%v: wrong digest %s", useMmap, got[path])
		}
	}
}

func TestSumStdinMarker(t *testing.T) {
	var out bytes.Buffer
	failed := Sum([]string{StdinPath}, Config{
		Stdin:  strings.NewReader("hello world"),
		Stdout: &out,
		Stderr: &out,
	})
	if failed != 0 {
		t.Fatalf("%d failures", failed)
	}
	if want := helloDigest + "  -\n"; out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestSumSmallerPoolThanBatch(t *testing.T) {
	// More small files than pool units plus interleaved large files must
	// still drain without deadlock and report everything.
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 10; i++ {
		paths = append(paths, writeNamed(t, dir, string(rune('a'+i)), patterned(90000)))
	}
	paths = append(paths, writeNamed(t, dir, "big-1", patterned(smallFileLimit+1)))
	for i := 0; i < 10; i++ {
		paths = append(paths, writeNamed(t, dir, string(rune('k'+i)), patterned(50)))
	}
	paths = append(paths, writeNamed(t, dir, "big-2", make([]byte, smallFileLimit*2)))

	var out bytes.Buffer
	if failed := Sum(paths, Config{Jobs: 2, Stdout: &out, Stderr: &out}); failed != 0 {
		t.Fatalf("%d failures", failed)
	}
	if got := sumLines(t, out.String()); len(got) != len(paths) {
		t.Fatalf("reported %d files, want %d", len(got), len(paths))
	}
}

func TestRunnerReleasesPoolOnErrorPaths(t *testing.T) {
	r := newRunner(Config{Jobs: 3, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})

	reported := 0
	r.dispatch(filepath.Join(t.TempDir(), "missing"), func(sum []byte, err error) {
		reported++
		if err == nil {
			t.Fatal("expected an open error")
		}
	})
	r.wg.Wait()

	if reported != 1 {
		t.Fatalf("outcome reported %d times, want exactly once", reported)
	}
	if !r.pool.TryAcquire(r.pool.Cap()) {
		t.Fatal("pool leaked a unit on the open-error path")
	}
}

func TestSumDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	paths = append(paths, writeNamed(t, dir, "a", []byte("hello world")))
	paths = append(paths, writeNamed(t, dir, "b", patterned(smallFileLimit+5)))

	lines := func() map[string]string {
		var out bytes.Buffer
		if failed := Sum(paths, Config{Jobs: 2, Stdout: &out, Stderr: &out}); failed != 0 {
			t.Fatalf("%d failures", failed)
		}
		return sumLines(t, out.String())
	}

	first := lines()
	for i := 0; i < 3; i++ {
		again := lines()
		for path, sum := range first {
			if again[path] != sum {
				t.Fatalf("digest for %s changed between runs", path)
			}
		}
	}
}
