package model

import "strings"

// Method identifies the extraction technique that produced an observation.
type Method string

const (
	MethodManual        Method = "manual"
	MethodAIVision      Method = "ai_vision"
	MethodAIOCRFallback Method = "ai_ocr_fallback"
	MethodTextOCR       Method = "text_ocr"
)

// defaultWeight is used for methods with no configured weight.
const defaultWeight = 0.5

// Valid reports whether m is one of the known extraction methods.
func (m Method) Valid() bool {
	switch m {
	case MethodManual, MethodAIVision, MethodAIOCRFallback, MethodTextOCR:
		return true
	}
	return false
}

// ParseMethod parses a method name, case-insensitively. Unknown names
// return MethodTextOCR, the lowest-trust method.
func ParseMethod(s string) Method {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return MethodTextOCR
}

// Weights maps each extraction method to its a-priori reliability weight.
type Weights map[Method]float64

// DefaultWeights returns the standard method reliability weights. The
// relative ordering (AI vision > manual > AI OCR fallback > text OCR)
// must be preserved by any override.
func DefaultWeights() Weights {
	return Weights{
		MethodAIVision:      0.85,
		MethodManual:        0.75,
		MethodAIOCRFallback: 0.70,
		MethodTextOCR:       0.60,
	}
}

// For returns the weight for the given method, or the default weight
// when the method has no configured entry.
func (w Weights) For(m Method) float64 {
	if v, ok := w[m]; ok {
		return v
	}
	return defaultWeight
}

// CappedConfidence is the field-resolver combination rule: the method
// weight acts as a hard ceiling on the raw confidence, so repeated
// observations from a low-trust method can never exceed that method's
// ceiling. Distinct from WeightedConfidence; do not unify the two.
func CappedConfidence(raw, weight float64) float64 {
	if raw < weight {
		return raw
	}
	return weight
}

// WeightedConfidence is the parameter-store combination rule: the raw
// confidence is scaled by the method weight and clamped to 1.0. The
// store holds a single best value rather than fusing, so the weight
// multiplies instead of capping.
func WeightedConfidence(raw, weight float64) float64 {
	e := raw * weight
	if e > 1.0 {
		return 1.0
	}
	return e
}
