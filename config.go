package bsum

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the optional TOML defaults file. Explicit flags win over it.
//
//	jobs = 8
//	mmap = true
//	algorithm = "blake3"
//	excludes = ["*.tmp", ".git"]
//	follow_symlinks = false
type FileConfig struct {
	Jobs           int      `toml:"jobs"`
	Mmap           bool     `toml:"mmap"`
	Algorithm      string   `toml:"algorithm"`
	Excludes       []string `toml:"excludes"`
	FollowSymlinks bool     `toml:"follow_symlinks"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if fc.Algorithm != "" {
		if _, err := ParseAlgorithm(fc.Algorithm); err != nil {
			return FileConfig{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return fc, nil
}
