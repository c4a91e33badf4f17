package model

import "time"

// ParameterValue is the current best value for a panel-level attribute.
// Unlike circuit observations there is no history: the store keeps only
// the incumbent, and overwrites require strictly higher effective
// confidence.
type ParameterValue struct {
	Value      any       `json:"value"`
	Confidence float64   `json:"confidence"`
	Method     Method    `json:"method"`
	SourceID   string    `json:"source_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// EffectiveConfidence applies the parameter-store multiplicative rule.
func (p ParameterValue) EffectiveConfidence(weights Weights) float64 {
	return WeightedConfidence(p.Confidence, weights.For(p.Method))
}
