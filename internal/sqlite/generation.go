package sqlite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// manifestJSONL names the committed generation. Replacing it is the single
// commit point of a save: files of a generation it does not name are never
// loaded.
const manifestJSONL = "manifest.jsonl"

// genPrefix prefixes the directory of every generation after the first.
const genPrefix = "gen-"

type manifestRecord struct {
	Generation uint64 `json:"generation"`
}

// genDir returns the directory holding the files of generation gen.
// Generation 0 is the data directory itself, which is also the layout of
// data directories written before generations existed.
func genDir(dataDir string, gen uint64) string {
	if gen == 0 {
		return dataDir
	}
	return filepath.Join(dataDir, fmt.Sprintf("%s%06d", genPrefix, gen))
}

// readManifest returns the committed generation, or 0 when no generation
// has been committed.
func readManifest(dataDir string) (uint64, error) {
	records, err := readJSONLIfExists(filepath.Join(dataDir, manifestJSONL))
	if err != nil {
		return 0, fmt.Errorf("reading manifest: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	var m manifestRecord
	if err := json.Unmarshal(records[len(records)-1], &m); err != nil {
		return 0, fmt.Errorf("decoding manifest: %w", err)
	}
	return m.Generation, nil
}

// writeManifest commits gen by atomically replacing the manifest.
func writeManifest(dataDir string, gen uint64) error {
	data, err := json.Marshal(manifestRecord{Generation: gen})
	if err != nil {
		return err
	}
	return writeJSONL(filepath.Join(dataDir, manifestJSONL), []json.RawMessage{data})
}

// stageGeneration writes every file of generation gen: the snapshot files
// and the event log of generation prev extended with events. Nothing refers
// to the staged directory until the manifest names it.
func stageGeneration(dataDir string, prev, gen uint64, files map[string][]json.RawMessage, events []json.RawMessage) (string, error) {
	dir := genDir(dataDir, gen)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	log, err := readJSONLIfExists(filepath.Join(genDir(dataDir, prev), eventsJSONL))
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	files[eventsJSONL] = append(log, events...)

	for _, name := range jsonlFiles {
		if err := createJSONL(filepath.Join(dir, name), files[name]); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	return dir, nil
}

// pruneGenerations removes every generation except keep. Failures are left
// for the next save to retry.
func pruneGenerations(dataDir string, keep uint64) {
	dirs, _ := filepath.Glob(filepath.Join(dataDir, genPrefix+"*"))
	keepDir := genDir(dataDir, keep)
	for _, dir := range dirs {
		if dir != keepDir {
			os.RemoveAll(dir)
		}
	}
	if keep > 0 {
		for _, name := range jsonlFiles {
			os.Remove(filepath.Join(dataDir, name))
		}
	}
}
