package sync

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/thebtf/jiraindex/internal/errkind"
	"github.com/thebtf/jiraindex/pkg/models"
)

// loadState reads the persisted SyncState from path. A missing or
// unparsable file yields the zero state, matching the original's
// "never block a sync on a corrupt state file" behavior.
func loadState(path string) models.SyncState {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SyncState{}
	}
	var state models.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.SyncState{}
	}
	return state
}

// saveState writes state to path as indented JSON, creating the parent
// directory if needed. The write goes to a sibling temp file first and is
// renamed into place, so a crash mid-write never leaves a torn state file
// for the next loadState to choke on.
func saveState(path string, state models.SyncState) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errkind.New(errkind.Persistence, "saveState", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errkind.New(errkind.Persistence, "saveState", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errkind.New(errkind.Persistence, "saveState", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errkind.New(errkind.Persistence, "saveState", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errkind.New(errkind.Persistence, "saveState", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errkind.New(errkind.Persistence, "saveState", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errkind.New(errkind.Persistence, "saveState", err)
	}
	return nil
}
