package bsum

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

// WalkOptions controls how directory inputs expand into files.
type WalkOptions struct {
	Recursive      bool
	Excludes       []string // glob patterns matched against full path and base name
	FollowSymlinks bool
}

// Expand resolves the input list. Without Recursive it is the identity; with
// it, directories expand to the regular files beneath them. Paths that cannot
// be walked are handed to onErr and skipped, never aborting the rest of the
// list. Only a bad exclude pattern fails the whole expansion.
func Expand(paths []string, opts WalkOptions, onErr func(path string, err error)) ([]string, error) {
	globs, err := compileExcludes(opts.Excludes)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, path := range paths {
		if !opts.Recursive || path == StdinPath {
			out = append(out, path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			onErr(path, err)
			continue
		}
		if !info.IsDir() {
			if !matchesExclude(path, globs) {
				out = append(out, path)
			}
			continue
		}
		out = append(out, walkRoot(path, opts, globs, onErr)...)
	}
	return out, nil
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, patt := range patterns {
		g, err := glob.Compile(patt)
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", patt, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchesExclude(path string, globs []glob.Glob) bool {
	base := filepath.Base(path)
	for _, g := range globs {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

func walkRoot(root string, opts WalkOptions, globs []glob.Glob, onErr func(string, error)) []string {
	var files []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			onErr(path, err)
			return nil
		}
		if matchesExclude(path, globs) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				onErr(path, err)
				return nil
			}
			info, err := os.Stat(resolved)
			if err != nil {
				onErr(path, err)
				return nil
			}
			if info.Mode().IsRegular() {
				files = append(files, resolved)
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files
}
