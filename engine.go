package bsum

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	metro "github.com/dgryski/go-metro"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"github.com/zhangyunhao116/wyhash"
	"github.com/zhenjl/cityhash"
	"golang.org/x/exp/mmap"
)

const (
	// Files larger than this take the whole I/O budget and are hashed in
	// chunks; everything at or below it is read whole under a single unit.
	// The cutoff was tuned on hard drives and SSDs.
	smallFileLimit = 131072

	// Chunk sizes for the large-file read loop. Mapped views tolerate
	// bigger chunks since no syscall happens per chunk.
	readChunkSize = 2 * 1024 * 1024
	mmapChunkSize = 8 * 1024 * 1024

	hashSeed = 1
)

// Algorithm selects the digest function. Blake3 is the default; the rest
// exist for speed comparisons and interop with older sum files.
type Algorithm int

const (
	Blake3 Algorithm = iota
	SHA256
	XXH3
	Wyhash
	City
	Metro
)

var algoNames = map[Algorithm]string{
	Blake3: "blake3",
	SHA256: "sha256",
	XXH3:   "xxh3",
	Wyhash: "wyhash",
	City:   "city",
	Metro:  "metro",
}

func (a Algorithm) String() string {
	return algoNames[a]
}

// Size returns the digest length in bytes.
func (a Algorithm) Size() int {
	switch a {
	case Blake3, SHA256:
		return 32
	default:
		return 8
	}
}

// ParseAlgorithm maps a config-file name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, n := range algoNames {
		if n == name {
			return a, nil
		}
	}
	return Blake3, fmt.Errorf("unknown algorithm %q", name)
}

// state is a digest in progress. Writes never fail; the digest is read once
// after the last write. A fresh state is made per job, nothing is shared.
type state interface {
	io.Writer
	digest() []byte
}

type writerSummer interface {
	io.Writer
	Sum(b []byte) []byte
}

type hashState struct{ h writerSummer }

func (s hashState) Write(p []byte) (int, error) { return s.h.Write(p) }
func (s hashState) digest() []byte              { return s.h.Sum(nil) }

type writerSummer64 interface {
	io.Writer
	Sum64() uint64
}

type hash64State struct{ h writerSummer64 }

func (s hash64State) Write(p []byte) (int, error) { return s.h.Write(p) }
func (s hash64State) digest() []byte              { return uint64ToBytes(s.h.Sum64()) }

// bufState accumulates everything for one-shot hash functions. The result is
// still independent of how the input was chunked.
type bufState struct {
	buf []byte
	sum func([]byte) uint64
}

func (s *bufState) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *bufState) digest() []byte { return uint64ToBytes(s.sum(s.buf)) }

func newState(a Algorithm) state {
	switch a {
	case SHA256:
		return hashState{sha256.New()}
	case XXH3:
		return hash64State{xxh3.NewSeed(hashSeed)}
	case Wyhash:
		return hash64State{wyhash.NewDefault()}
	case City:
		return &bufState{sum: func(b []byte) uint64 {
			return cityhash.CityHash64WithSeed(b, uint32(len(b)), hashSeed)
		}}
	case Metro:
		return &bufState{sum: func(b []byte) uint64 {
			return metro.Hash64(b, hashSeed)
		}}
	default:
		return hashState{blake3.New()}
	}
}

func uint64ToBytes(num uint64) []byte {
	bt := make([]byte, 8)

	bt[0] = byte(num)
	bt[1] = byte(num >> 8)
	bt[2] = byte(num >> 16)
	bt[3] = byte(num >> 24)
	bt[4] = byte(num >> 32)
	bt[5] = byte(num >> 40)
	bt[6] = byte(num >> 48)
	bt[7] = byte(num >> 56)

	return bt
}

// sumWhole reads the source to the end and hashes it in one call. Used for
// small files and for streams whose length is unknown, like stdin.
func sumWhole(r io.Reader, algo Algorithm) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	st := newState(algo)
	st.Write(data)
	return st.digest(), nil
}

// sumChunked feeds the source to the digest state in fixed-size chunks.
// Chunking only bounds memory; the digest is identical for any chunk size.
func sumChunked(r io.Reader, chunkSize int, algo Algorithm) ([]byte, error) {
	st := newState(algo)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			st.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return st.digest(), nil
}

// sumLarge hashes an already-open large file, through a mapped view when
// useMmap is set, otherwise by explicit chunked reads from f.
func sumLarge(f *os.File, path string, useMmap bool, algo Algorithm) ([]byte, error) {
	if useMmap {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		defer m.Close()
		return sumChunked(io.NewSectionReader(m, 0, int64(m.Len())), mmapChunkSize, algo)
	}
	return sumChunked(f, readChunkSize, algo)
}
