package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	arg "github.com/alexflint/go-arg"

	"github.com/dgawlik/bsum"
)

type args struct {
	Paths []string `arg:"positional" help:"files to get the checksum of; '-' reads standard input"`

	JobCount int  `arg:"-j,--job-count" help:"the number of concurrent reads to allow (default 16); large files are still hashed one at a time with multithreading"`
	Mmap     bool `help:"use mmap for large files; better performance on SSDs, may crash if a file is modified while being read"`
	Colon    bool `help:"print checksums as colon-separated hex"`

	Check string `arg:"-c,--check" help:"verify checksums listed in this file instead of printing them"`

	Recursive      bool     `arg:"-r,--recursive" help:"descend into directories"`
	Exclude        []string `arg:"--exclude,separate" help:"glob pattern to skip while descending"`
	FollowSymlinks bool     `arg:"--follow-symlinks" help:"resolve symlinks while descending"`

	Config string `help:"TOML file with option defaults"`

	Blake3 bool `help:"use blake3 (the default)"`
	Sha256 bool `help:"use sha256 instead of blake3"`
	Xxh3   bool `help:"use xxh3 instead of blake3"`
	Wyhash bool `help:"use wyhash instead of blake3"`
	City   bool `help:"use cityhash instead of blake3"`
	Metro  bool `help:"use metrohash instead of blake3"`

	Cpuprofile bool `help:"write a cpu profile to .profile"`
}

func (args) Description() string {
	return "bsum computes blake3 checksums of files, adapting I/O concurrency to file size."
}

// resolveOptions merges the flags with the optional config file. An explicit
// flag always wins; the config only fills options left unset.
func resolveOptions(a args, fc bsum.FileConfig) (jobs int, useMmap bool, algo bsum.Algorithm, walk bsum.WalkOptions) {
	algo = bsum.Blake3
	algoSet := a.Blake3 || a.Sha256 || a.Xxh3 || a.Wyhash || a.City || a.Metro
	switch {
	case a.Sha256:
		algo = bsum.SHA256
	case a.Xxh3:
		algo = bsum.XXH3
	case a.Wyhash:
		algo = bsum.Wyhash
	case a.City:
		algo = bsum.City
	case a.Metro:
		algo = bsum.Metro
	}
	if !algoSet && fc.Algorithm != "" {
		// Validated by LoadFileConfig.
		algo, _ = bsum.ParseAlgorithm(fc.Algorithm)
	}

	jobs = a.JobCount
	if jobs == 0 && fc.Jobs > 0 {
		jobs = fc.Jobs
	}

	walk = bsum.WalkOptions{
		Recursive:      a.Recursive,
		Excludes:       append(a.Exclude, fc.Excludes...),
		FollowSymlinks: a.FollowSymlinks || fc.FollowSymlinks,
	}
	return jobs, a.Mmap || fc.Mmap, algo, walk
}

func main() {
	os.Exit(run())
}

func run() int {
	var a args
	arg.MustParse(&a)

	prog := filepath.Base(os.Args[0])
	fatal := func(err error) int {
		fmt.Fprintf(os.Stderr, "%s: %v\n", prog, err)
		return 1
	}

	if a.Cpuprofile {
		f, err := os.Create(".profile")
		if err != nil {
			return fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	var fc bsum.FileConfig
	if a.Config != "" {
		var err error
		fc, err = bsum.LoadFileConfig(a.Config)
		if err != nil {
			return fatal(err)
		}
	}
	jobs, useMmap, algo, walkOpts := resolveOptions(a, fc)

	cfg := bsum.Config{
		Jobs:      jobs,
		UseMmap:   useMmap,
		Colon:     a.Colon,
		Algorithm: algo,
		Prog:      prog,
	}

	if a.Check != "" {
		f, err := os.Open(a.Check)
		if err != nil {
			return fatal(err)
		}
		defer f.Close()
		ok, err := bsum.Check(f, cfg)
		if err != nil {
			return fatal(err)
		}
		if !ok {
			return 1
		}
		return 0
	}

	paths := a.Paths
	if len(paths) == 0 {
		paths = []string{bsum.StdinPath}
	}

	walkFailed := 0
	paths, err := bsum.Expand(paths, walkOpts, func(path string, err error) {
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", prog, path, err)
		walkFailed++
	})
	if err != nil {
		return fatal(err)
	}

	if failed := bsum.Sum(paths, cfg); failed > 0 || walkFailed > 0 {
		return 1
	}
	return 0
}
