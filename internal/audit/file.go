package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends events to a JSONL file, one event per line, fsynced
// per append. It doubles as a Reader for the feedback loop.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileSink opens (or creates) the JSONL log at path.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Append writes one line and syncs so the trail survives a crash.
func (s *FileSink) Append(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Seq, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}
	return s.f.Sync()
}

// ReadSince scans the log for events past the cursor. The log is append
// only so a single forward scan preserves sequence order.
func (s *FileSink) ReadSince(_ context.Context, after uint64) ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			// Torn final line from a crash mid-write; skip it.
			continue
		}
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest sequence number in the log, 0 when empty.
func (s *FileSink) LastSeq() (uint64, error) {
	evs, err := s.ReadSince(context.Background(), 0)
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, ev := range evs {
		if ev.Seq > max {
			max = ev.Seq
		}
	}
	return max, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
