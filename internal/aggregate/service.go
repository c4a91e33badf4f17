// Package aggregate implements the multi-source circuit-data
// aggregation engine: an append-only observation log per task, a
// probabilistic field resolver, and a precisely invalidated resolution
// cache, fronted by a single service type.
package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/panelboard-cli/internal/model"
)

// ErrInvalidCircuitNumber is returned when an observation names a
// non-positive circuit. This is a caller-contract violation, not a
// normal absence-of-data state.
var ErrInvalidCircuitNumber = eris.New("aggregate: circuit number must be positive")

// taskState holds all aggregation state for one task id.
type taskState struct {
	observations map[int][]model.Observation
	cache        map[int]*model.ResolvedCircuit
}

// Service owns all observation and resolution data, keyed by an opaque
// task id supplied by the caller. State is created implicitly on first
// write and removed only by ClearTask. All operations are safe for
// concurrent use; writers to the same task are serialized.
type Service struct {
	cfg   Config
	mu    sync.Mutex
	tasks map[string]*taskState
	now   func() time.Time // injectable for testing
}

// New creates an aggregation service with the given fusion config.
func New(cfg Config) *Service {
	if cfg.Weights == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		cfg:   cfg,
		tasks: make(map[string]*taskState),
		now:   time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	s.now = fn
	return s
}

// AddObservation appends one observation to the task's log and
// invalidates the cached resolution for that circuit only. Prior
// entries are never mutated or removed until ClearTask.
func (s *Service) AddObservation(taskID string, obs model.Observation) error {
	if obs.CircuitNumber <= 0 {
		return ErrInvalidCircuitNumber
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(taskID, obs)
	return nil
}

// addLocked records an observation; callers hold s.mu.
func (s *Service) addLocked(taskID string, obs model.Observation) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.now()
	}

	st, ok := s.tasks[taskID]
	if !ok {
		st = &taskState{
			observations: make(map[int][]model.Observation),
			cache:        make(map[int]*model.ResolvedCircuit),
		}
		s.tasks[taskID] = st
	}

	st.observations[obs.CircuitNumber] = append(st.observations[obs.CircuitNumber], obs)
	delete(st.cache, obs.CircuitNumber)

	zap.L().Debug("aggregate: observation added",
		zap.String("task_id", taskID),
		zap.Int("circuit", obs.CircuitNumber),
		zap.String("source", obs.SourceID),
		zap.String("method", string(obs.Method)),
	)
}

// ResolvedCircuit returns the fused result for one circuit, or nil when
// the task or circuit has no observations.
func (s *Service) ResolvedCircuit(taskID string, circuit int) *model.ResolvedCircuit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(taskID, circuit)
}

// resolveLocked resolves via the cache; callers hold s.mu.
func (s *Service) resolveLocked(taskID string, circuit int) *model.ResolvedCircuit {
	st, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	observations, ok := st.observations[circuit]
	if !ok {
		return nil
	}
	if cached, ok := st.cache[circuit]; ok {
		return cached
	}

	var desc, amps, poles, load, loadType []FieldObservation
	for _, o := range observations {
		if o.Description != nil {
			desc = append(desc, FieldObservation{*o.Description, o.DescriptionConf, o.SourceID, o.Method})
		}
		if o.BreakerAmps != nil {
			amps = append(amps, FieldObservation{*o.BreakerAmps, o.AmpsConf, o.SourceID, o.Method})
		}
		if o.Poles != nil {
			poles = append(poles, FieldObservation{*o.Poles, o.PolesConf, o.SourceID, o.Method})
		}
		if o.LoadAmps != nil {
			load = append(load, FieldObservation{*o.LoadAmps, o.LoadConf, o.SourceID, o.Method})
		}
		if o.LoadType != nil {
			loadType = append(loadType, FieldObservation{*o.LoadType, o.LoadTypeConf, o.SourceID, o.Method})
		}
	}

	resolved := &model.ResolvedCircuit{
		CircuitNumber:     circuit,
		Description:       ResolveField(desc, s.cfg),
		BreakerAmps:       ResolveField(amps, s.cfg),
		Poles:             ResolveField(poles, s.cfg),
		LoadAmps:          ResolveField(load, s.cfg),
		LoadType:          ResolveField(loadType, s.cfg),
		ObservationsCount: len(observations),
	}
	resolved.NeedsReview = resolved.HasConflicts()

	st.cache[circuit] = resolved
	return resolved
}

// AllResolvedCircuits resolves every circuit with at least one
// observation for the task.
func (s *Service) AllResolvedCircuits(taskID string) map[int]*model.ResolvedCircuit {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tasks[taskID]
	if !ok {
		return map[int]*model.ResolvedCircuit{}
	}

	out := make(map[int]*model.ResolvedCircuit, len(st.observations))
	for circuit := range st.observations {
		if rc := s.resolveLocked(taskID, circuit); rc != nil {
			out[circuit] = rc
		}
	}
	return out
}

// Summary describes the aggregation state of one task.
type Summary struct {
	TotalCircuits         int      `json:"total_circuits"`
	TotalObservations     int      `json:"total_observations"`
	CircuitsWithConflicts int      `json:"circuits_with_conflicts"`
	AverageConfidence     float64  `json:"average_confidence"`
	Sources               []string `json:"sources"`
}

// Summary computes counts, mean per-circuit confidence, and the union
// of contributing sources for a task.
func (s *Service) Summary(taskID string) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tasks[taskID]
	if !ok {
		return Summary{Sources: []string{}}
	}

	sources := make(map[string]bool)
	var totalConfidence float64
	var conflicts, totalObs, circuits int

	for circuit, observations := range st.observations {
		totalObs += len(observations)
		rc := s.resolveLocked(taskID, circuit)
		if rc == nil {
			continue
		}
		circuits++
		totalConfidence += rc.OverallConfidence()
		if rc.NeedsReview {
			conflicts++
		}
		for _, f := range []model.ResolvedField{rc.Description, rc.BreakerAmps, rc.Poles} {
			for _, src := range f.Sources {
				sources[src] = true
			}
		}
	}

	summary := Summary{
		TotalCircuits:         circuits,
		TotalObservations:     totalObs,
		CircuitsWithConflicts: conflicts,
		Sources:               make([]string, 0, len(sources)),
	}
	if circuits > 0 {
		summary.AverageConfidence = model.Round2(totalConfidence / float64(circuits))
	}
	for src := range sources {
		summary.Sources = append(summary.Sources, src)
	}
	sort.Strings(summary.Sources)

	return summary
}

// ClearTask removes all observations and cached resolutions for a task.
// Clearing an unknown task is a no-op.
func (s *Service) ClearTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return
	}
	delete(s.tasks, taskID)
	zap.L().Info("aggregate: task cleared", zap.String("task_id", taskID))
}
