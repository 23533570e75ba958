package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONL file names in the data directory.
const (
	ledgerJSONL       = "ledger.jsonl"
	contributorsJSONL = "contributors.jsonl"
	amountsJSONL      = "amounts.jsonl"
	accountsJSONL     = "accounts.jsonl"
	eventsJSONL       = "events.jsonl"
)

// renameFile replaces a committed file. Tests swap it to fail commits.
var renameFile = os.Rename

// jsonlFiles lists every file of a generation.
var jsonlFiles = []string{
	ledgerJSONL,
	contributorsJSONL,
	amountsJSONL,
	accountsJSONL,
	eventsJSONL,
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// stagedFile is a fully written and synced temp file waiting to replace its
// target.
type stagedFile struct {
	tmp  string
	path string
}

// stageJSONL writes records to a temp file next to path and syncs it. Nothing
// is visible at path until commit.
func stageJSONL(path string, records []json.RawMessage) (stagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return stagedFile{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) (stagedFile, error) {
		tmp.Close()
		os.Remove(tmpName)
		return stagedFile{}, fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return stagedFile{}, fmt.Errorf("closing temp file: %w", err)
	}
	return stagedFile{tmp: tmpName, path: path}, nil
}

func (s stagedFile) commit() error {
	if err := renameFile(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s stagedFile) discard() {
	os.Remove(s.tmp)
}

// writeJSONL atomically replaces path with records using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	s, err := stageJSONL(path, records)
	if err != nil {
		return err
	}
	return s.commit()
}

// readJSONLIfExists is readJSONL with a missing file read as empty.
func readJSONLIfExists(path string) ([]json.RawMessage, error) {
	records, err := readJSONL(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return records, err
}

// createJSONL writes records to a new file at path and syncs it. It fails if
// path already exists.
func createJSONL(path string, records []json.RawMessage) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range records {
		w.Write(rec)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

// initJSONLFiles creates any missing JSONL file as an empty file.
func initJSONLFiles(dataDir string) error {
	for _, name := range jsonlFiles {
		path := filepath.Join(dataDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("checking %s: %w", name, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		f.Close()
	}
	return nil
}
