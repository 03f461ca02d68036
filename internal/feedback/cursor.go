package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// cursor marks how far into the audit stream the job has consumed.
type cursor struct {
	LastSeq uint64 `json:"last_seq"`
}

// CursorStore persists the replay position between runs.
type CursorStore interface {
	Load() (uint64, error)
	Save(seq uint64) error
}

// FileCursorStore keeps the cursor as a small JSON file next to the
// audit log.
type FileCursorStore struct {
	path string
}

// NewFileCursorStore creates cursor storage at path.
func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

func (f *FileCursorStore) Load() (uint64, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read feedback cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return 0, fmt.Errorf("decode feedback cursor: %w", err)
	}
	return c.LastSeq, nil
}

func (f *FileCursorStore) Save(seq uint64) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}
	data, err := json.Marshal(cursor{LastSeq: seq})
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write feedback cursor: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit feedback cursor: %w", err)
	}
	return nil
}
