package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the governor's durable view of account health. Single
// instance, mutated only by the Governor under its lock.
type State struct {
	Equity            float64   `json:"equity"`
	SessionStart      float64   `json:"session_start_equity"`
	HighWaterMark     float64   `json:"high_water_mark"`
	DailyPL           float64   `json:"daily_pl"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	Tier              Tier      `json:"tier"`
	LastTransitionAt  time.Time `json:"last_transition_at"`
	LastBreachAt      time.Time `json:"last_breach_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DailyLossPct returns the session loss as a positive percentage of the
// session-start equity, 0 when the session is flat or up.
func (s State) DailyLossPct() float64 {
	if s.SessionStart <= 0 || s.DailyPL >= 0 {
		return 0
	}
	return -s.DailyPL / s.SessionStart * 100
}

// DrawdownPct returns the percentage drop from the high-water mark.
func (s State) DrawdownPct() float64 {
	if s.HighWaterMark <= 0 || s.Equity >= s.HighWaterMark {
		return 0
	}
	return (s.HighWaterMark - s.Equity) / s.HighWaterMark * 100
}

// Transition is the audit payload for a tier change.
type Transition struct {
	From              Tier      `json:"from"`
	To                Tier      `json:"to"`
	Reason            string    `json:"reason"`
	DailyLossPct      float64   `json:"daily_loss_pct"`
	DrawdownPct       float64   `json:"drawdown_pct"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	At                time.Time `json:"at"`
}

// SnapshotStore persists State across restarts.
type SnapshotStore interface {
	Save(s State) error
	Load() (State, bool, error)
}

// FileSnapshotStore writes the state as JSON with atomic rename so a
// crash mid-write never corrupts the last good snapshot.
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore creates snapshot storage at path.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (f *FileSnapshotStore) Save(s State) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode risk snapshot: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write risk snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit risk snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshotStore) Load() (State, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("read risk snapshot: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, false, fmt.Errorf("decode risk snapshot: %w", err)
	}
	return s, true, nil
}
