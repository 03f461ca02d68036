package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAssignsMonotonicSequence(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(0, sink)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := rec.Record(ctx, EventGateResult, "BTC-USD", "c1", map[string]int{"i": i})
		require.NoError(t, err)
	}
	events := sink.Events()
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, uint64(5), rec.LastSeq())
}

func TestRecorderResumesAfterRestart(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(42, sink)
	ev, err := rec.Record(context.Background(), EventDecision, "BTC-USD", "c1", "payload")
	require.NoError(t, err)
	assert.Equal(t, uint64(43), ev.Seq, "numbering continues across restarts")
}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	rec := NewRecorder(0, sink)
	ctx := context.Background()
	for _, sym := range []string{"BTC-USD", "ETH-USD", "BTC-USD"} {
		_, err := rec.Record(ctx, EventGateResult, sym, "c", map[string]string{"symbol": sym})
		require.NoError(t, err)
	}

	events, err := sink.ReadSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	tail, err := sink.ReadSince(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(3), tail[0].Seq)

	last, err := sink.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
}

func TestFileSinkSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	rec := NewRecorder(0, sink)
	_, err = rec.Record(context.Background(), EventDecision, "BTC-USD", "c", "one")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	reopened, err := NewFileSink(path)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.LastSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(1), last)

	rec2 := NewRecorder(last, reopened)
	ev, err := rec2.Record(context.Background(), EventDecision, "BTC-USD", "c", "two")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Seq)
}
