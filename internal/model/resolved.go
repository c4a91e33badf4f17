package model

import (
	"math"
	"strconv"
)

// Candidate is a competing value recorded for audit when sources disagree.
type Candidate struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ResolvedField is the fused result for one field of one circuit: the
// winning value, the fused confidence, and the provenance of the winner.
type ResolvedField struct {
	Value       any         `json:"value"`
	Confidence  float64     `json:"confidence"`
	Sources     []string    `json:"sources"`
	HasConflict bool        `json:"has_conflict"`
	Competing   []Candidate `json:"competing_values,omitempty"`
}

// Present reports whether the field resolved to a non-empty value.
func (f ResolvedField) Present() bool {
	switch v := f.Value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case LoadType:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	return true
}

// ResolvedCircuit is the engine's current best answer for one circuit.
type ResolvedCircuit struct {
	CircuitNumber     int           `json:"circuit_number"`
	Description       ResolvedField `json:"description"`
	BreakerAmps       ResolvedField `json:"breaker_amps"`
	Poles             ResolvedField `json:"poles"`
	LoadAmps          ResolvedField `json:"load_amps"`
	LoadType          ResolvedField `json:"load_type"`
	ObservationsCount int           `json:"observations_count"`
	NeedsReview       bool          `json:"needs_review"`
}

// OverallConfidence is the mean confidence of the fields that resolved
// to a value. Load amps is excluded: it mirrors the schedule-facing
// fields (description, breaker amps, poles, load type).
func (c *ResolvedCircuit) OverallConfidence() float64 {
	var sum float64
	var n int
	for _, f := range []ResolvedField{c.Description, c.BreakerAmps, c.Poles, c.LoadType} {
		if f.Present() {
			sum += f.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// HasConflicts reports whether any schedule-facing field is conflicted.
func (c *ResolvedCircuit) HasConflicts() bool {
	return c.Description.HasConflict || c.BreakerAmps.HasConflict ||
		c.Poles.HasConflict || c.LoadType.HasConflict
}

// CircuitExport is the consumer-facing shape read by the panel-schedule
// export path and the chat dispatcher.
type CircuitExport struct {
	Number            string            `json:"number" yaml:"number"`
	Description       string            `json:"description" yaml:"description"`
	BreakerAmps       int               `json:"breaker_amps" yaml:"breaker_amps"`
	Poles             int               `json:"poles" yaml:"poles"`
	LoadAmps          float64           `json:"load_amps" yaml:"load_amps"`
	LoadType          string            `json:"load_type" yaml:"load_type"`
	Confidence        ExportConfidences `json:"confidence" yaml:"confidence"`
	Sources           []string          `json:"sources" yaml:"sources"`
	HasConflicts      bool              `json:"has_conflicts" yaml:"has_conflicts"`
	NeedsReview       bool              `json:"needs_review" yaml:"needs_review"`
	ObservationsCount int               `json:"observations_count" yaml:"observations_count"`
}

// ExportConfidences carries per-field confidences, rounded to 2 decimals.
type ExportConfidences struct {
	Description float64 `json:"description" yaml:"description"`
	BreakerAmps float64 `json:"breaker_amps" yaml:"breaker_amps"`
	Poles       float64 `json:"poles" yaml:"poles"`
	LoadType    float64 `json:"load_type" yaml:"load_type"`
	Overall     float64 `json:"overall" yaml:"overall"`
}

// Export converts a resolved circuit to its consumer shape, applying the
// conventional defaults for unresolved fields (empty description, 0 amps,
// 1 pole, 0 load, empty load type).
func (c *ResolvedCircuit) Export() CircuitExport {
	e := CircuitExport{
		Number:      strconv.Itoa(c.CircuitNumber),
		Description: stringValue(c.Description.Value),
		BreakerAmps: intValue(c.BreakerAmps.Value),
		Poles:       1,
		LoadAmps:    floatValue(c.LoadAmps.Value),
		LoadType:    stringValue(c.LoadType.Value),
		Confidence: ExportConfidences{
			Description: Round2(c.Description.Confidence),
			BreakerAmps: Round2(c.BreakerAmps.Confidence),
			Poles:       Round2(c.Poles.Confidence),
			LoadType:    Round2(c.LoadType.Confidence),
			Overall:     Round2(c.OverallConfidence()),
		},
		Sources:           unionSources(c.Description, c.BreakerAmps, c.Poles, c.LoadType),
		HasConflicts:      c.HasConflicts(),
		NeedsReview:       c.NeedsReview,
		ObservationsCount: c.ObservationsCount,
	}
	if p := intValue(c.Poles.Value); p > 0 {
		e.Poles = p
	}
	return e
}

// Round2 rounds to 2 decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Round3 rounds to 3 decimal places.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func unionSources(fields ...ResolvedField) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		for _, s := range f.Sources {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case LoadType:
		return string(s)
	}
	return ""
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
