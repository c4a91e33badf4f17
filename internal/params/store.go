// Package params implements the confidence-gated store for panel-level
// attributes (voltage, phase, wire, and so on). Unlike the circuit
// aggregation engine it keeps no history and performs no fusion: each
// parameter holds one incumbent value, and an update must beat the
// incumbent's effective confidence strictly to replace it. This keeps a
// low-quality text-OCR read from overwriting a value the user stated or
// AI vision confirmed.
package params

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/panelboard-cli/internal/model"
)

// TrackedParameters is the fixed set of panel parameters that support
// confidence tracking. Batch updates silently ignore anything else.
var TrackedParameters = map[string]bool{
	"voltage":              true,
	"phase":                true,
	"wire":                 true,
	"main_bus_amps":        true,
	"main_breaker":         true,
	"mounting":             true,
	"feed":                 true,
	"location":             true,
	"fed_from":             true,
	"panel_name":           true,
	"short_circuit_rating": true,
	"feed_thru_lugs":       true,
}

// Store holds per-task parameter values guarded by a single mutex.
// Tasks are created implicitly on first write and removed by ClearTask.
type Store struct {
	weights model.Weights
	mu      sync.Mutex
	tasks   map[string]map[string]model.ParameterValue
	now     func() time.Time // injectable for testing
}

// New creates a parameter store using the given method weights.
func New(weights model.Weights) *Store {
	if weights == nil {
		weights = model.DefaultWeights()
	}
	return &Store{
		weights: weights,
		tasks:   make(map[string]map[string]model.ParameterValue),
		now:     time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Store) WithNow(fn func() time.Time) *Store {
	s.now = fn
	return s
}

// Get returns the stored value for a parameter, or (zero, false).
func (s *Store) Get(taskID, name string) (model.ParameterValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pv, ok := s.tasks[taskID][name]
	return pv, ok
}

// Value returns just the parameter's value, or nil when unset.
func (s *Store) Value(taskID, name string) any {
	pv, ok := s.Get(taskID, name)
	if !ok {
		return nil
	}
	return pv.Value
}

// Update stores a parameter value only when no value exists yet or the
// new weighted confidence strictly exceeds the incumbent's. Ties favor
// the incumbent. Empty values are rejected without comparison. The
// returned reason explains the decision for observability; rejection is
// a normal outcome, not an error.
func (s *Store) Update(taskID, name string, value any, confidence float64, method model.Method, sourceID string) (bool, string) {
	if isEmpty(value) {
		return false, "Empty value ignored"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newEffective := model.WeightedConfidence(confidence, s.weights.For(method))

	task, ok := s.tasks[taskID]
	if !ok {
		task = make(map[string]model.ParameterValue)
		s.tasks[taskID] = task
	}

	existing, ok := task[name]
	if !ok {
		task[name] = model.ParameterValue{
			Value:      value,
			Confidence: confidence,
			Method:     method,
			SourceID:   sourceID,
			Timestamp:  s.now(),
		}
		zap.L().Info("params: set",
			zap.String("task_id", taskID),
			zap.String("parameter", name),
			zap.Any("value", value),
			zap.Float64("confidence", newEffective),
			zap.String("method", string(method)),
			zap.String("source", sourceID),
		)
		return true, fmt.Sprintf("New parameter set with confidence %.2f", newEffective)
	}

	existingEffective := existing.EffectiveConfidence(s.weights)
	if newEffective > existingEffective {
		task[name] = model.ParameterValue{
			Value:      value,
			Confidence: confidence,
			Method:     method,
			SourceID:   sourceID,
			Timestamp:  s.now(),
		}
		zap.L().Info("params: updated",
			zap.String("task_id", taskID),
			zap.String("parameter", name),
			zap.Any("old_value", existing.Value),
			zap.Any("new_value", value),
			zap.Float64("old_confidence", existingEffective),
			zap.Float64("new_confidence", newEffective),
			zap.String("method", string(method)),
			zap.String("source", sourceID),
		)
		return true, fmt.Sprintf("Updated: new confidence %.2f > existing %.2f", newEffective, existingEffective)
	}

	zap.L().Debug("params: rejected",
		zap.String("task_id", taskID),
		zap.String("parameter", name),
		zap.Any("value", value),
		zap.Float64("new_confidence", newEffective),
		zap.Float64("existing_confidence", existingEffective),
	)
	return false, fmt.Sprintf("Rejected: new confidence %.2f <= existing %.2f", newEffective, existingEffective)
}

// UpdateBatch applies Update to each tracked parameter in values, all
// sharing one confidence, method, and source. Names are lowercased;
// names outside TrackedParameters are silently skipped. Returns the
// per-parameter decisions keyed by the caller's original names.
func (s *Store) UpdateBatch(taskID string, values map[string]any, confidence float64, method model.Method, sourceID string) map[string]UpdateResult {
	results := make(map[string]UpdateResult)
	for name, value := range values {
		key := strings.ToLower(name)
		if !TrackedParameters[key] {
			continue
		}
		updated, reason := s.Update(taskID, key, value, confidence, method, sourceID)
		results[name] = UpdateResult{Updated: updated, Reason: reason}
	}
	return results
}

// UpdateResult reports one batch update decision.
type UpdateResult struct {
	Updated bool   `json:"updated"`
	Reason  string `json:"reason"`
}

// All returns the current value of every parameter for a task.
func (s *Store) All(taskID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.tasks[taskID]))
	for name, pv := range s.tasks[taskID] {
		out[name] = pv.Value
	}
	return out
}

// ParameterInfo is the consumer-facing shape for one parameter,
// including its effective confidence and provenance.
type ParameterInfo struct {
	Value      any     `json:"value" yaml:"value"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Method     string  `json:"method" yaml:"method"`
	Source     string  `json:"source" yaml:"source"`
}

// AllWithConfidence returns every parameter with its effective
// confidence (2 decimals), method, and source.
func (s *Store) AllWithConfidence(taskID string) map[string]ParameterInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ParameterInfo, len(s.tasks[taskID]))
	for name, pv := range s.tasks[taskID] {
		out[name] = ParameterInfo{
			Value:      pv.Value,
			Confidence: model.Round2(pv.EffectiveConfidence(s.weights)),
			Method:     string(pv.Method),
			Source:     pv.SourceID,
		}
	}
	return out
}

// ClearTask removes all parameters for a task. Clearing an unknown task
// is a no-op.
func (s *Store) ClearTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return
	}
	delete(s.tasks, taskID)
	zap.L().Info("params: task cleared", zap.String("task_id", taskID))
}

// isEmpty reports whether a value is nil or a blank string.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
