package aggregate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/panelboard-cli/internal/extraction"
	"github.com/sells-group/panelboard-cli/internal/model"
)

// Ingest confidences, matching the behavior of the upstream extractors:
// visual pole detection is read directly off the breaker handle and is
// more trustworthy than the nominal confidence of the pass.
const (
	ingestAmpsConf       = 0.8
	ingestPolesConf      = 0.7
	ingestVisualPoles    = 0.9
	ingestLoadTypeConf   = 0.8
	visualGroupDescConf  = 0.85
	visualGroupAmpsConf  = 0.85
	visualGroupPolesConf = 0.90
	visualGroupTypeConf  = 0.85
)

// IngestResult bulk-ingests one extraction pass: per-circuit entries
// first, then any visual breaker groups fanned out across their circuit
// numbers. Circuits with invalid numbers or no usable field are
// skipped. Returns one human-readable notification per circuit whose
// resolved state actually changed; redundant confirming observations
// produce none.
func (s *Service) IngestResult(taskID string, res extraction.Result) []string {
	method := model.ParseMethod(res.Method)

	s.mu.Lock()
	defer s.mu.Unlock()

	var notifications []string
	for _, raw := range res.Circuits {
		circuit, ok := raw.Normalize()
		if !ok || circuit.Empty() {
			continue
		}

		obsMethod := method
		polesConf := ingestPolesConf
		if circuit.VisualPoleDetection {
			obsMethod = model.MethodAIVision
			polesConf = ingestVisualPoles
		}

		// Snapshot the resolved state before the new evidence lands so
		// the notification reflects resolution changes, not raw input.
		before := snapshot(s.resolveLocked(taskID, circuit.Number))

		s.addLocked(taskID, model.Observation{
			CircuitNumber:   circuit.Number,
			SourceID:        res.SourceID,
			Method:          obsMethod,
			Description:     circuit.Description,
			DescriptionConf: circuit.Confidence,
			BreakerAmps:     circuit.BreakerAmps,
			AmpsConf:        ingestAmpsConf,
			Poles:           circuit.Poles,
			PolesConf:       polesConf,
			LoadType:        circuit.LoadType,
			LoadTypeConf:    ingestLoadTypeConf,
		})

		after := s.resolveLocked(taskID, circuit.Number)
		if after == nil {
			continue
		}
		if n := changeNotification(before, after, obsMethod); n != "" {
			notifications = append(notifications, n)
			zap.L().Info("aggregate: "+n, zap.String("task_id", taskID))
		}
	}

	if res.VisualBreakers != nil && res.VisualBreakers.AIVisionSuccess {
		s.ingestVisualBreakersLocked(taskID, res.SourceID, res.VisualBreakers.Breakers)
	}

	return notifications
}

// ingestVisualBreakersLocked emits one AI-vision observation per circuit
// number in each detected breaker group; callers hold s.mu.
func (s *Service) ingestVisualBreakersLocked(taskID, sourceID string, breakers []extraction.VisualBreaker) {
	for _, breaker := range breakers {
		if len(breaker.Circuits) == 0 {
			continue
		}

		obs := model.Observation{
			SourceID:        sourceID,
			Method:          model.MethodAIVision,
			DescriptionConf: visualGroupDescConf,
			AmpsConf:        visualGroupAmpsConf,
			PolesConf:       visualGroupPolesConf,
			LoadTypeConf:    visualGroupTypeConf,
		}
		if breaker.Description != "" {
			obs.Description = model.StringPtr(breaker.Description)
		}
		if breaker.Amps > 0 {
			obs.BreakerAmps = model.IntPtr(breaker.Amps)
		}
		if breaker.Poles > 0 {
			obs.Poles = model.IntPtr(breaker.Poles)
		}
		if lt, ok := model.ParseLoadType(breaker.LoadType); ok {
			obs.LoadType = model.LoadTypePtr(lt)
		}

		for _, circuit := range breaker.Circuits {
			if circuit <= 0 {
				continue
			}
			obs.CircuitNumber = circuit
			s.addLocked(taskID, obs)
		}
	}
}

// circuitSnapshot captures the resolved field values used for change
// detection before a new observation is applied.
type circuitSnapshot struct {
	known       bool
	poles       any
	amps        any
	description any
	loadType    any
}

func snapshot(rc *model.ResolvedCircuit) circuitSnapshot {
	if rc == nil {
		return circuitSnapshot{}
	}
	return circuitSnapshot{
		known:       true,
		poles:       rc.Poles.Value,
		amps:        rc.BreakerAmps.Value,
		description: rc.Description.Value,
		loadType:    rc.LoadType.Value,
	}
}

// changeNotification builds the "BREAKER INFO FOUND/UPDATED" line for a
// circuit whose resolution changed, or "" when nothing did.
func changeNotification(before circuitSnapshot, after *model.ResolvedCircuit, method model.Method) string {
	var parts []string

	if after.Poles.Present() && after.Poles.Value != before.poles {
		parts = append(parts, fmt.Sprintf("%v-pole", after.Poles.Value))
	}
	if after.BreakerAmps.Present() && after.BreakerAmps.Value != before.amps {
		parts = append(parts, fmt.Sprintf("%vA", after.BreakerAmps.Value))
	}
	if after.Description.Present() && after.Description.Value != before.description {
		parts = append(parts, fmt.Sprintf("'%v'", after.Description.Value))
	}
	if after.LoadType.Present() && after.LoadType.Value != before.loadType {
		parts = append(parts, fmt.Sprintf("type:%v", after.LoadType.Value))
	}
	if len(parts) == 0 {
		return ""
	}

	verb := "UPDATED"
	if !before.known {
		verb = "FOUND"
	}
	notification := fmt.Sprintf("BREAKER INFO %s - Circuit %d: %s",
		verb, after.CircuitNumber, strings.Join(parts, ", "))

	if after.ObservationsCount > 1 {
		notification += fmt.Sprintf(" (combined from %d sources)", after.ObservationsCount)
	} else if method == model.MethodAIVision {
		notification += " (AI Vision)"
	}

	return notification
}
