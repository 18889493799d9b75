package model

// MetricPrediction is the predicted (mean, stddev) pair for one metric,
// both carried as strings to match the source's plugin-produced tabular
// encoding.
type MetricPrediction struct {
	Mean   string
	StdDev string
}

// PredictionModel is the three parallel mappings of §3, all keyed by the
// same prediction_id.
type PredictionModel struct {
	Configurations  map[string]Configuration
	Features        map[string]FeatureVector // absent (nil) if the block declares no features
	PredictedResults map[string]map[string]MetricPrediction // prediction_id -> metric name -> prediction
}

// NewPredictionModel returns an empty prediction model.
func NewPredictionModel() *PredictionModel {
	return &PredictionModel{
		Configurations:   make(map[string]Configuration),
		Features:         make(map[string]FeatureVector),
		PredictedResults: make(map[string]map[string]MetricPrediction),
	}
}

// Empty reports whether the model has no predictions.
func (p *PredictionModel) Empty() bool {
	return p == nil || len(p.PredictedResults) == 0
}

// Validate checks the §3 invariant: every prediction_id in
// PredictedResults has a matching entry in Configurations, and — iff
// featuresEnabled — in Features.
func (p *PredictionModel) Validate(featuresEnabled bool) error {
	for pid := range p.PredictedResults {
		if _, ok := p.Configurations[pid]; !ok {
			return errPredictionInvariant(pid, "configurations")
		}
		if featuresEnabled {
			if _, ok := p.Features[pid]; !ok {
				return errPredictionInvariant(pid, "features")
			}
		}
	}
	return nil
}
