// Package storage implements the Filesystem Handler of §4.5: a
// pluggable tabular storage facade over six sub-stores, backed today by
// the csv storage implementation wired on the CLI.
package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/teranos/agora/internal/errors"
)

// StorageType is the tag a plugin uses to pick its own storage adapter,
// returned by every sub-store's GetType.
const StorageType = "csv"

// readCSV returns the header and data rows of path, or (nil, nil, nil)
// if the file does not exist — per §4.5, "missing files on load return
// empty models, not errors."
func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrapf(err, "failed to open container %q", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read container %q", path)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

// writeCSVAtomic implements §4.5's container-replacement atomicity:
// write to a staging file in the same directory, then rename over the
// final path. A rename within one filesystem is atomic, so a reader
// never observes a partially-written container.
func writeCSVAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create container directory %q", dir)
	}

	staging, err := os.CreateTemp(dir, filepath.Base(path)+".staging-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create staging file for %q", path)
	}
	stagingPath := staging.Name()

	w := csv.NewWriter(staging)
	if header != nil {
		if err := w.Write(header); err != nil {
			staging.Close()
			os.Remove(stagingPath)
			return errors.Wrapf(err, "failed to write header for %q", path)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			staging.Close()
			os.Remove(stagingPath)
			return errors.Wrapf(err, "failed to write row for %q", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		staging.Close()
		os.Remove(stagingPath)
		return errors.Wrapf(err, "failed to flush container %q", path)
	}
	if err := staging.Close(); err != nil {
		os.Remove(stagingPath)
		return errors.Wrapf(err, "failed to close staging file for %q", path)
	}

	if err := os.Rename(stagingPath, path); err != nil {
		os.Remove(stagingPath)
		return errors.Wrapf(err, "failed to replace container %q", path)
	}
	return nil
}

var appendMu sync.Mutex

// appendCSVRow appends one row under the row-level atomicity guarantee
// of §4.5: missing file is created with header; existing rows are
// preserved by reading them first and rewriting the whole container
// through writeCSVAtomic, which is simpler to reason about than a raw
// append and still leaves no window where a reader sees a torn row.
func appendCSVRow(path string, header []string, row []string) error {
	// serialize the read-modify-write so concurrent appends lose no row.
	appendMu.Lock()
	defer appendMu.Unlock()

	existingHeader, rows, err := readCSV(path)
	if err != nil {
		return err
	}
	if existingHeader == nil {
		existingHeader = header
	}
	rows = append(rows, row)
	return writeCSVAtomic(path, existingHeader, rows)
}

func eraseContainer(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to erase container %q", path)
	}
	return nil
}
