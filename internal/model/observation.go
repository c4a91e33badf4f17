package model

import (
	"strings"
	"time"
)

// LoadType classifies the load served by a circuit.
type LoadType string

const (
	LoadLighting      LoadType = "LTG"
	LoadReceptacle    LoadType = "RCP"
	LoadMotor         LoadType = "MTR"
	LoadContinuous    LoadType = "C"
	LoadNonContinuous LoadType = "NC"
)

// ParseLoadType normalizes a raw load-type string (uppercase, trimmed).
// Returns ("", false) for values outside the known set.
func ParseLoadType(s string) (LoadType, bool) {
	lt := LoadType(strings.ToUpper(strings.TrimSpace(s)))
	switch lt {
	case LoadLighting, LoadReceptacle, LoadMotor, LoadContinuous, LoadNonContinuous:
		return lt, true
	}
	return "", false
}

// Observation is one extraction event's claim about a single circuit.
// It is immutable once recorded. A nil field value means the extraction
// said nothing about that field; it is never a zero-confidence claim.
type Observation struct {
	CircuitNumber int       `json:"circuit_number"`
	SourceID      string    `json:"source_id"`
	Method        Method    `json:"method"`
	Timestamp     time.Time `json:"timestamp"`

	Description     *string `json:"description,omitempty"`
	DescriptionConf float64 `json:"description_confidence,omitempty"`

	BreakerAmps *int    `json:"breaker_amps,omitempty"`
	AmpsConf    float64 `json:"amps_confidence,omitempty"`

	Poles     *int    `json:"poles,omitempty"`
	PolesConf float64 `json:"poles_confidence,omitempty"`

	LoadAmps *float64 `json:"load_amps,omitempty"`
	LoadConf float64  `json:"load_confidence,omitempty"`

	LoadType     *LoadType `json:"load_type,omitempty"`
	LoadTypeConf float64   `json:"load_type_confidence,omitempty"`
}

// Empty reports whether the observation carries no field values at all.
func (o *Observation) Empty() bool {
	return o.Description == nil && o.BreakerAmps == nil && o.Poles == nil &&
		o.LoadAmps == nil && o.LoadType == nil
}

// StringPtr, IntPtr and FloatPtr are small helpers for building
// observations with optional fields.
func StringPtr(s string) *string        { return &s }
func IntPtr(n int) *int                 { return &n }
func FloatPtr(f float64) *float64       { return &f }
func LoadTypePtr(lt LoadType) *LoadType { return &lt }
