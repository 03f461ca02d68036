package feedback

import (
	"math"

	"github.com/marketops/tradegate/internal/weights"
)

// Sample is one (filter inputs, eventual outcome) training tuple
// reconstructed from the audit log.
type Sample struct {
	Symbol   string
	Features map[string]float64
	Won      bool
}

var featureNames = []string{"momentum", "filter", "sentiment"}

// fit runs logistic-regression gradient descent over the samples and
// returns the fitted parameters. Deterministic: fixed initialization,
// fixed iteration order.
func fit(samples []Sample, learningRate float64, epochs int) weights.Parameters {
	params := weights.Parameters{"bias": 0}
	for _, name := range featureNames {
		params[name] = 0
	}

	n := float64(len(samples))
	for epoch := 0; epoch < epochs; epoch++ {
		grad := map[string]float64{"bias": 0}
		for _, name := range featureNames {
			grad[name] = 0
		}
		for _, s := range samples {
			z := params["bias"]
			for _, name := range featureNames {
				z += params[name] * s.Features[name]
			}
			p := 1 / (1 + math.Exp(-z))
			y := 0.0
			if s.Won {
				y = 1.0
			}
			err := p - y
			grad["bias"] += err
			for _, name := range featureNames {
				grad[name] += err * s.Features[name]
			}
		}
		params["bias"] -= learningRate * grad["bias"] / n
		for _, name := range featureNames {
			params[name] -= learningRate * grad[name] / n
		}
	}
	return params
}

// blend mixes the prior version's parameters with the freshly fitted
// ones (ratio is the prior's share) to dampen overfitting to a short
// recent window. Parameters present in only one side keep their known
// value scaled by that side's share.
func blend(prior, fitted weights.Parameters, ratio float64) weights.Parameters {
	out := weights.Parameters{}
	for name, v := range prior {
		out[name] = ratio * v
	}
	for name, v := range fitted {
		out[name] += (1 - ratio) * v
	}
	return out
}
