package bsum

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"
)

type checkEntry struct {
	path string
	want []byte
}

var fieldSplit = regexp.MustCompile(`\s+`)

// parseCheckList reads "<hex>  <path>" lines, tolerating colon-separated hex.
// The digest length must match the algorithm, else the whole list is
// rejected; a half-verified run is worse than none.
func parseCheckList(r io.Reader, algo Algorithm) ([]checkEntry, error) {
	var entries []checkEntry
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		parts := fieldSplit.Split(text, -1)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected \"<hex>  <path>\"", line)
		}
		hexSum := strings.ReplaceAll(parts[0], ":", "")
		want, err := hex.DecodeString(hexSum)
		if err != nil {
			return nil, fmt.Errorf("line %d: unable to decode hex: %s", line, parts[0])
		}
		if len(want) != algo.Size() {
			return nil, fmt.Errorf("line %d: %s digest should have %d bytes, got %d",
				line, algo, algo.Size(), len(want))
		}
		entries = append(entries, checkEntry{path: parts[1], want: want})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Check recomputes the digest of every file listed in list and compares it
// against the recorded one, using the same scheduler as Sum. Mismatches are
// printed as "!! <path>"; unreadable files go to the error stream. A final
// Success or Failure line summarizes the run, and ok reports it.
func Check(list io.Reader, cfg Config) (ok bool, err error) {
	r := newRunner(cfg)
	entries, err := parseCheckList(list, r.cfg.Algorithm)
	if err != nil {
		return false, err
	}

	var differs atomic.Bool
	for _, e := range entries {
		e := e
		r.dispatch(e.path, func(sum []byte, err error) {
			switch {
			case err != nil:
				r.rep.Failure(e.path, err)
			case !bytes.Equal(sum, e.want):
				r.rep.Mismatch(e.path)
				differs.Store(true)
			}
		})
	}
	r.wg.Wait()

	ok = !differs.Load() && r.rep.Failed() == 0
	if ok {
		fmt.Fprintln(r.cfg.Stdout, "Success")
	} else {
		fmt.Fprintln(r.cfg.Stdout, "Failure")
	}
	return ok, nil
}
