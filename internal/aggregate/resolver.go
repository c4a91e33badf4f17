package aggregate

import (
	"sort"
	"strings"

	"github.com/sells-group/panelboard-cli/internal/model"
)

// Config holds the tunable constants of the fusion algorithm.
type Config struct {
	// Weights are the per-method reliability ceilings.
	Weights model.Weights
	// ConflictThreshold is the minimum fused confidence for a losing
	// value to count as a competing alternative.
	ConflictThreshold float64
	// ConfidenceCap bounds fused confidence below 1.0 regardless of how
	// much corroborating evidence accumulates.
	ConfidenceCap float64
}

// DefaultConfig returns the standard fusion constants.
func DefaultConfig() Config {
	return Config{
		Weights:           model.DefaultWeights(),
		ConflictThreshold: 0.3,
		ConfidenceCap:     0.98,
	}
}

// conflictRelativeFactor gates the conflict flag: a competing value must
// reach this fraction of the winner's confidence to signal real
// disagreement. Values passing only the absolute threshold still appear
// in the audit list.
const conflictRelativeFactor = 0.5

// FieldObservation is one extraction's claim about a single field.
type FieldObservation struct {
	Value      any
	Confidence float64
	SourceID   string
	Method     model.Method
}

// valueGroup accumulates observations that agree on a normalized value.
type valueGroup struct {
	display    any
	complement float64
	sources    []string
}

// ResolveField fuses all observations of one field into a single
// resolved value with calibrated confidence.
//
// Observations are grouped by normalized value, each group's confidence
// is 1 - prod(1 - min(conf_i, weight_i)) capped at cfg.ConfidenceCap,
// and the highest-confidence group wins. Majority voting would treat
// unequal sources as equal; taking the single best observation would
// ignore corroboration. The product-of-complements form rewards
// independent agreement while the per-method ceiling keeps a noisy
// method from dominating.
func ResolveField(observations []FieldObservation, cfg Config) model.ResolvedField {
	if len(observations) == 0 {
		return model.ResolvedField{Value: nil, Confidence: 0, Sources: []string{}}
	}

	groups := make(map[any]*valueGroup)
	var order []any
	for _, obs := range observations {
		key := normalizeValue(obs.Value)
		g, ok := groups[key]
		if !ok {
			g = &valueGroup{display: obs.Value, complement: 1.0}
			groups[key] = g
			order = append(order, key)
		}
		capped := model.CappedConfidence(obs.Confidence, cfg.Weights.For(obs.Method))
		g.complement *= 1.0 - capped
		if !contains(g.sources, obs.SourceID) {
			g.sources = append(g.sources, obs.SourceID)
		}
	}

	type scored struct {
		value      any
		confidence float64
		sources    []string
	}
	ranked := make([]scored, 0, len(order))
	for _, key := range order {
		g := groups[key]
		conf := 1.0 - g.complement
		if conf > cfg.ConfidenceCap {
			conf = cfg.ConfidenceCap
		}
		ranked = append(ranked, scored{value: g.display, confidence: conf, sources: g.sources})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].confidence > ranked[j].confidence
	})

	winner := ranked[0]
	resolved := model.ResolvedField{
		Value:      winner.value,
		Confidence: model.Round3(winner.confidence),
		Sources:    winner.sources,
	}

	for _, alt := range ranked[1:] {
		if alt.confidence < cfg.ConflictThreshold {
			continue
		}
		// The relative test gates only the flag, not the audit list.
		if alt.confidence >= winner.confidence*conflictRelativeFactor {
			resolved.HasConflict = true
		}
		resolved.Competing = append(resolved.Competing, model.Candidate{
			Value:      alt.value,
			Confidence: model.Round2(alt.confidence),
		})
	}

	return resolved
}

// normalizeValue produces the grouping key for a value: strings compare
// case-insensitively with surrounding whitespace trimmed, everything
// else by plain equality.
func normalizeValue(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(s))
	case model.LoadType:
		return strings.ToLower(strings.TrimSpace(string(s)))
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
