// Package bsum computes content checksums for batches of files, adapting its
// I/O and compute strategy to file size. Many small files are read
// concurrently, while a large file temporarily claims the entire I/O budget,
// because concurrent large sequential reads hurt throughput on rotating and
// flash storage alike.
package bsum

import (
	"io"
	"os"
	"sync"
)

// StdinPath is the input value that denotes standard input. It bypasses the
// resource pool and size classification entirely.
const StdinPath = "-"

// DefaultJobs is the default resource pool capacity.
const DefaultJobs = 16

// Config carries one batch run's settings. Zero values get sane defaults.
type Config struct {
	Jobs      int  // resource pool capacity, default DefaultJobs
	UseMmap   bool // map large files instead of reading them
	Colon     bool // print digests as colon-separated hex
	Algorithm Algorithm

	Prog   string    // program name used in error lines
	Stdin  io.Reader // source for StdinPath, default os.Stdin
	Stdout io.Writer
	Stderr io.Writer
}

func (c *Config) fillDefaults() {
	if c.Jobs < 1 {
		c.Jobs = DefaultJobs
	}
	if c.Prog == "" {
		c.Prog = "bsum"
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
}

// Runner owns one batch: the pool, the in-flight background jobs and the
// reporter. Each file's handle, buffer and digest belong to its job alone.
type Runner struct {
	cfg  Config
	pool *Pool
	wg   sync.WaitGroup
	rep  *Reporter
}

func newRunner(cfg Config) *Runner {
	cfg.fillDefaults()
	return &Runner{
		cfg:  cfg,
		pool: NewPool(cfg.Jobs),
		rep:  NewReporter(cfg.Stdout, cfg.Stderr, cfg.Prog, cfg.Colon),
	}
}

// Sum checksums every path in order and writes one line per path. Dispatch
// follows the input order; completion order is whatever the scheduling gives.
// It returns the number of paths that failed.
func Sum(paths []string, cfg Config) int {
	r := newRunner(cfg)
	for _, path := range paths {
		path := path
		r.dispatch(path, func(sum []byte, err error) {
			if err != nil {
				r.rep.Failure(path, err)
			} else {
				r.rep.Success(path, sum)
			}
		})
	}
	r.wg.Wait()
	return r.rep.Failed()
}

// dispatch classifies one input and runs its job. done is called exactly
// once with the digest or the error, possibly from another goroutine. Large
// files are hashed before dispatch returns; small files finish in the
// background and are joined by the runner's WaitGroup.
func (r *Runner) dispatch(path string, done func([]byte, error)) {
	if path == StdinPath {
		sum, err := sumWhole(r.cfg.Stdin, r.cfg.Algorithm)
		done(sum, err)
		return
	}

	// Every file needs one unit just to open and stat it.
	r.pool.Acquire(1)

	f, err := os.Open(path)
	if err != nil {
		r.pool.Release(1)
		done(nil, err)
		return
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		r.pool.Release(1)
		done(nil, err)
		return
	}

	if info.Size() > smallFileLimit {
		// Take the rest of the I/O budget so this is the only read in
		// flight. Small jobs already running simply drain; the held
		// unit plus the deferred release keep the pairing exact even
		// if hashing panics.
		sum, err := func() ([]byte, error) {
			defer r.pool.Release(r.pool.Cap())
			defer f.Close()
			r.pool.Acquire(r.pool.Cap() - 1)
			return sumLarge(f, path, r.cfg.UseMmap, r.cfg.Algorithm)
		}()
		done(sum, err)
		return
	}

	// Small file: the open handle and the held unit move to a background
	// job; dispatch does not wait for it.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.pool.Release(1)
		defer f.Close()
		sum, err := sumWhole(f, r.cfg.Algorithm)
		done(sum, err)
	}()
}
