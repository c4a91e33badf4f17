// Package extraction defines the ingestion boundary between upstream
// OCR/AI-vision collaborators and the aggregation engine. Collaborators
// emit loosely typed JSON (string numbers, "MISSING" sentinels, absent
// keys); this package validates each payload once into fixed records so
// the engine never sees a sentinel or an uncoerced value.
package extraction

import (
	"strconv"
	"strings"

	"github.com/sells-group/panelboard-cli/internal/model"
)

// missingSentinel marks a field the upstream extractor looked for but
// could not read. It is converted to absent here and nowhere else.
const missingSentinel = "MISSING"

// RawCircuit is one circuit entry as produced by an extraction pass.
// Field types are deliberately loose; Normalize does the coercion.
type RawCircuit struct {
	Number              any     `json:"number"`
	Description         any     `json:"description,omitempty"`
	BreakerAmps         any     `json:"breaker_amps,omitempty"`
	BreakerPoles        any     `json:"breaker_poles,omitempty"`
	LoadType            any     `json:"load_type,omitempty"`
	Confidence          float64 `json:"confidence,omitempty"`
	VisualPoleDetection bool    `json:"visual_pole_detection,omitempty"`
}

// Circuit is the validated form of a RawCircuit. Nil pointers mean the
// extractor made no claim about that field.
type Circuit struct {
	Number              int
	Description         *string
	BreakerAmps         *int
	Poles               *int
	LoadType            *model.LoadType
	Confidence          float64
	VisualPoleDetection bool
}

// Empty reports whether the circuit carries no usable field.
func (c Circuit) Empty() bool {
	return c.Description == nil && c.BreakerAmps == nil && c.Poles == nil && c.LoadType == nil
}

// Normalize validates a raw circuit entry. Returns false when the
// circuit number is missing or non-positive. Malformed numeric fields
// are treated as absent, never as errors: a corrupt OCR line must not
// abort the batch.
func (rc RawCircuit) Normalize() (Circuit, bool) {
	num, ok := toInt(rc.Number)
	if !ok || num <= 0 {
		return Circuit{}, false
	}

	c := Circuit{
		Number:              num,
		Confidence:          rc.Confidence,
		VisualPoleDetection: rc.VisualPoleDetection,
	}
	if c.Confidence <= 0 {
		c.Confidence = 0.8
	}

	if s, ok := toText(rc.Description); ok {
		c.Description = model.StringPtr(s)
	}
	if n, ok := toPresentInt(rc.BreakerAmps); ok {
		c.BreakerAmps = model.IntPtr(n)
	}
	if n, ok := toPresentInt(rc.BreakerPoles); ok {
		c.Poles = model.IntPtr(n)
	}
	if s, ok := toText(rc.LoadType); ok {
		if lt, valid := model.ParseLoadType(s); valid {
			c.LoadType = model.LoadTypePtr(lt)
		}
	}

	return c, true
}

// VisualBreaker is one physically detected breaker handle, possibly
// spanning several circuit positions.
type VisualBreaker struct {
	Circuits    []int  `json:"circuits"`
	Poles       int    `json:"poles"`
	Amps        int    `json:"amps"`
	Description string `json:"description,omitempty"`
	LoadType    string `json:"load_type,omitempty"`
}

// VisualBreakerSet is the grouped multi-pole detection output of an AI
// vision pass.
type VisualBreakerSet struct {
	AIVisionSuccess bool            `json:"ai_vision_success"`
	Breakers        []VisualBreaker `json:"breakers"`
}

// Result is one complete extraction pass over a single source photo or
// input: the per-circuit entries plus any visual breaker groups and
// panel-level parameters read in the same pass.
type Result struct {
	SourceID            string            `json:"source_id"`
	Method              string            `json:"method,omitempty"`
	Circuits            []RawCircuit      `json:"circuits"`
	VisualBreakers      *VisualBreakerSet `json:"visual_breakers,omitempty"`
	Parameters          map[string]any    `json:"parameters,omitempty"`
	ParameterConfidence float64           `json:"parameter_confidence,omitempty"`
}

// toText returns a non-empty trimmed string, rejecting the MISSING sentinel.
func toText(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || s == missingSentinel {
		return "", false
	}
	return s, true
}

// toPresentInt coerces an optional numeric field, treating the MISSING
// sentinel and malformed strings as absent.
func toPresentInt(v any) (int, bool) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == missingSentinel {
		return 0, false
	}
	return toInt(v)
}

// toInt coerces JSON numbers and numeric strings to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if cleaned == "" {
			return 0, false
		}
		i, err := strconv.Atoi(cleaned)
		if err != nil {
			f, ferr := strconv.ParseFloat(cleaned, 64)
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return i, true
	default:
		return 0, false
	}
}
