// Package storage keeps the last successfully fetched upstream datasets on disk.
// The snapshot lets the service keep answering with real data while DefiLlama
// is unreachable, and survives restarts.
//
// Writes are atomic: data goes to a temporary file that is renamed into place,
// so a crash mid-write never leaves a truncated snapshot behind.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rewired-gh/curator/internal/models"
)

// snapshotVersion is bumped when the file layout changes.
const snapshotVersion = "1.0"

// ErrNoSnapshot is returned by LoadDatasets when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no dataset snapshot")

// Storage persists dataset snapshots to a single JSON file
type Storage struct {
	mu sync.RWMutex

	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// Snapshot is the on-disk representation of one successful fetch.
type Snapshot struct {
	Version   string             `json:"version"`
	SavedAt   time.Time          `json:"saved_at"`
	Protocols []models.RawRecord `json:"protocols"`
	Pools     []models.RawRecord `json:"pools"`
}

// New creates a new Storage instance.
// If filePath is empty, uses OS-appropriate tmp directory.
func New(filePath string, filePermissions, dirPermissions os.FileMode) *Storage {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "curator", "datasets.json")
	}
	if filePermissions == 0 {
		filePermissions = 0o644
	}
	if dirPermissions == 0 {
		dirPermissions = 0o755
	}

	return &Storage{
		filePath:        filePath,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}
}

// Path returns the snapshot file location.
func (s *Storage) Path() string {
	return s.filePath
}

// SaveDatasets persists both raw datasets as the new last-good snapshot
func (s *Storage) SaveDatasets(protocols, pools []models.RawRecord) error {
	if len(protocols) == 0 || len(pools) == 0 {
		return fmt.Errorf("refusing to save empty datasets (protocols=%d, pools=%d)", len(protocols), len(pools))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create data directory if needed
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := Snapshot{
		Version:   snapshotVersion,
		SavedAt:   time.Now().UTC(),
		Protocols: protocols,
		Pools:     pools,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// LoadDatasets reads the last-good snapshot. It returns ErrNoSnapshot when
// the file does not exist.
func (s *Storage) LoadDatasets() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonData))
	decoder.UseNumber()

	var data Snapshot
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if data.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", data.Version)
	}
	if len(data.Protocols) == 0 || len(data.Pools) == 0 {
		return nil, ErrNoSnapshot
	}

	return &data, nil
}
