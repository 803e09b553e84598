package federation

import "math"

// Aggregator combines accepted round updates with the prior model
// parameters into the next parameter vector.
type Aggregator interface {
	Aggregate(prior []float64, updates []ModelUpdate) ([]float64, error)
}

// FedAvgAggregator implements weighted federated averaging: the new
// parameters are sum(weight_i * delta_i) / sum(weight_i), blended with the
// prior model by the configured factor. Blend 1.0 replaces the prior model
// with the weighted average outright.
type FedAvgAggregator struct {
	blend float64
}

func NewFedAvgAggregator(blend float64) *FedAvgAggregator {
	if blend <= 0 || blend > 1 {
		blend = 1.0
	}

	return &FedAvgAggregator{blend: blend}
}

func (f *FedAvgAggregator) Aggregate(prior []float64, updates []ModelUpdate) ([]float64, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	dim := len(updates[0].Delta)
	sum := make([]float64, dim)
	var totalWeight int64

	for _, update := range updates {
		if len(update.Delta) != dim || update.Weight <= 0 {
			return nil, ErrMalformedUpdate
		}
		w := float64(update.Weight)
		for i, v := range update.Delta {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, ErrMalformedUpdate
			}
			sum[i] += v * w
		}
		totalWeight += update.Weight
	}

	for i := range sum {
		sum[i] /= float64(totalWeight)
	}

	if f.blend >= 1.0 || len(prior) != dim {
		return sum, nil
	}

	blended := make([]float64, dim)
	for i := range sum {
		blended[i] = (1-f.blend)*prior[i] + f.blend*sum[i]
	}

	return blended, nil
}
