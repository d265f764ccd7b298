package bsum

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
)

// Reporter writes one line per finished job. Small jobs report from their own
// goroutines, so every write goes through the mutex.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	prog   string
	colon  bool
	failed int
}

func NewReporter(out, errOut io.Writer, prog string, colon bool) *Reporter {
	return &Reporter{out: out, errOut: errOut, prog: prog, colon: colon}
}

// Success prints the digest, two spaces, then the path.
func (r *Reporter) Success(path string, sum []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(r.out, "%s  %s\n", formatSum(sum, r.colon), path)
}

// Failure prints the program name, the path and the error to the error
// stream, and counts the failure for the exit status.
func (r *Reporter) Failure(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	// os errors already carry the path; the line prints it once.
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	r.write(r.errOut, "%s: %s: %v\n", r.prog, path, err)
}

// Mismatch flags a file whose recomputed digest differs from the sum file.
func (r *Reporter) Mismatch(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(r.out, "!! %s\n", path)
}

// Failed returns how many jobs reported an error.
func (r *Reporter) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// write delivers one line. A reporter with a broken output stream has
// nowhere left to report, so the failure ends the process.
func (r *Reporter) write(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		panic(fmt.Sprintf("%s: write output: %v", r.prog, err))
	}
}

// formatSum renders a digest as lowercase hex, or as colon-separated byte
// pairs when colon is set.
func formatSum(sum []byte, colon bool) string {
	if !colon {
		return hex.EncodeToString(sum)
	}
	var sb strings.Builder
	for i, b := range sum {
		sb.WriteString(fmt.Sprintf("%02X", b))
		if i < len(sum)-1 {
			sb.WriteString(":")
		}
	}
	return sb.String()
}
