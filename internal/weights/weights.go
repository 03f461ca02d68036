// Package weights stores the statistical filter's parameters as
// immutable, totally ordered versions. The live pipeline reads one
// version at session start; the feedback loop publishes new ones.
package weights

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Parameters are the filter's model coefficients keyed by feature name.
type Parameters map[string]float64

// Version is one published set of filter weights. Immutable once
// published; later versions supersede, never edit, earlier ones.
type Version struct {
	Number     int        `json:"version"`
	Parameters Parameters `json:"parameters"`
	TrainedAt  time.Time  `json:"trained_at"`
	BlendRatio float64    `json:"blend_ratio"`
	Samples    int        `json:"samples"`
}

// ID is the stable identifier Decisions record, e.g. "v12".
func (v Version) ID() string { return fmt.Sprintf("v%d", v.Number) }

// Score evaluates the linear model on the feature vector and squashes
// the result to a confidence in [0,1] with a logistic.
func (v Version) Score(features map[string]float64) float64 {
	z := v.Parameters["bias"]
	for name, x := range features {
		z += v.Parameters[name] * x
	}
	return logistic(z)
}

func logistic(z float64) float64 {
	// Clamp to avoid overflow in exp for extreme inputs.
	if z > 30 {
		return 1
	}
	if z < -30 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}

// Store is the versioned weight repository. Publish must be atomic:
// readers see either the prior active version or the new one, never a
// partial write.
type Store interface {
	// Active returns the highest published version. ok is false when
	// nothing has been published yet.
	Active(ctx context.Context) (Version, bool, error)
	// Get fetches a specific version by number.
	Get(ctx context.Context, number int) (Version, bool, error)
	// Publish persists next as the new active version. The store
	// assigns the next version number and returns the stored version.
	Publish(ctx context.Context, next Version) (Version, error)
}

// Bootstrap returns the conservative starting weights used when no
// version has ever been published: mildly positive on momentum and
// filter score so a cold start approves only strong candidates.
func Bootstrap() Version {
	return Version{
		Number: 0,
		Parameters: Parameters{
			"bias":       -0.5,
			"momentum":   1.2,
			"filter":     1.0,
			"sentiment":  0.3,
			"volatility": -0.4,
		},
		TrainedAt: time.Time{},
	}
}
