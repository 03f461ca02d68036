package weights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePublishOrdering(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := store.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store has no active version")

	v1, err := store.Publish(ctx, Version{
		Parameters: Parameters{"bias": 0.1},
		TrainedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)

	v2, err := store.Publish(ctx, Version{
		Parameters: Parameters{"bias": 0.2},
		TrainedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number, "versions are totally ordered")

	active, ok, err := store.Active(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, active.Number)
	assert.Equal(t, 0.2, active.Parameters["bias"])

	// Prior versions stay immutable and readable.
	old, ok, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.1, old.Parameters["bias"])
}

func TestPublishDoesNotAffectPinnedVersion(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := store.Publish(ctx, Version{Parameters: Parameters{"momentum": 1.0}})
	require.NoError(t, err)

	// A session pins v1; the feedback loop publishes v2.
	pinned := v1
	_, err = store.Publish(ctx, Version{Parameters: Parameters{"momentum": 9.9}})
	require.NoError(t, err)

	assert.Equal(t, "v1", pinned.ID())
	assert.Equal(t, 1.0, pinned.Parameters["momentum"], "the pinned copy never changes")
}

func TestVersionScore(t *testing.T) {
	v := Version{Parameters: Parameters{"bias": 0, "momentum": 2.0}}

	high := v.Score(map[string]float64{"momentum": 2.0})
	low := v.Score(map[string]float64{"momentum": -2.0})
	assert.Greater(t, high, 0.9)
	assert.Less(t, low, 0.1)
	assert.InDelta(t, 0.5, v.Score(map[string]float64{"momentum": 0}), 1e-9)
}
