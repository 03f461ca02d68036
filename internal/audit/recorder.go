package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink receives events in sequence order. Append must be durable before
// it returns: the pipeline relies on synchronous flushes so a crash
// mid-pipeline leaves a reconstructable trail.
type Sink interface {
	Append(ctx context.Context, ev Event) error
	Close() error
}

// Reader replays persisted events for offline consumers.
type Reader interface {
	// ReadSince returns events with Seq > after, in ascending order.
	ReadSince(ctx context.Context, after uint64) ([]Event, error)
}

// Recorder assigns sequence numbers and fans events out to every sink.
// It is the single writer to the audit stream.
type Recorder struct {
	mu    sync.Mutex
	seq   uint64
	sinks []Sink
}

// NewRecorder creates a recorder starting after lastSeq (0 for a fresh
// log; pass the highest persisted sequence on restart so numbering stays
// monotonic across sessions).
func NewRecorder(lastSeq uint64, sinks ...Sink) *Recorder {
	return &Recorder{seq: lastSeq, sinks: sinks}
}

// AddSink registers an additional sink. Not safe to call concurrently
// with Record; wire sinks at startup.
func (r *Recorder) AddSink(s Sink) { r.sinks = append(r.sinks, s) }

// Record encodes payload, assigns the next sequence number and appends
// to every sink before returning. A sink failure is logged and the event
// still propagates to remaining sinks: telemetry loss in one backend
// must not halt trading, but it is never silent.
func (r *Recorder) Record(ctx context.Context, typ EventType, symbol, candidateID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	r.mu.Lock()
	r.seq++
	ev := Event{
		Seq:         r.seq,
		Type:        typ,
		Timestamp:   time.Now().UTC(),
		Symbol:      symbol,
		CandidateID: candidateID,
		Payload:     data,
	}
	sinks := r.sinks
	r.mu.Unlock()

	var firstErr error
	for _, s := range sinks {
		if err := s.Append(ctx, ev); err != nil {
			log.Error().Uint64("seq", ev.Seq).Str("type", string(typ)).Err(err).
				Msg("audit sink append failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return ev, firstErr
}

// LastSeq returns the most recently assigned sequence number.
func (r *Recorder) LastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Close closes every sink.
func (r *Recorder) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
