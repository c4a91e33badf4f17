package aggregate

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panelboard-cli/internal/model"
)

func ampsObservation(circuit int, source string, method model.Method, amps int, conf float64) model.Observation {
	return model.Observation{
		CircuitNumber: circuit,
		SourceID:      source,
		Method:        method,
		BreakerAmps:   model.IntPtr(amps),
		AmpsConf:      conf,
	}
}

func TestService_AddObservation_RejectsInvalidCircuit(t *testing.T) {
	svc := New(DefaultConfig())

	err := svc.AddObservation("task1", ampsObservation(0, "a", model.MethodTextOCR, 20, 0.8))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidCircuitNumber))

	err = svc.AddObservation("task1", ampsObservation(-3, "a", model.MethodTextOCR, 20, 0.8))
	assert.True(t, eris.Is(err, ErrInvalidCircuitNumber))

	// Nothing was recorded.
	assert.Nil(t, svc.ResolvedCircuit("task1", 0))
	assert.Equal(t, 0, svc.Summary("task1").TotalObservations)
}

func TestService_ResolvedCircuit_UnknownReturnsNil(t *testing.T) {
	svc := New(DefaultConfig())

	assert.Nil(t, svc.ResolvedCircuit("nope", 1))

	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "a", model.MethodTextOCR, 20, 0.8)))
	assert.Nil(t, svc.ResolvedCircuit("task1", 2))
}

func TestService_ResolvedCircuit_FusesFields(t *testing.T) {
	svc := New(DefaultConfig())

	require.NoError(t, svc.AddObservation("task1", model.Observation{
		CircuitNumber:   7,
		SourceID:        "photo1.jpg",
		Method:          model.MethodTextOCR,
		Description:     model.StringPtr("WATER HEATER"),
		DescriptionConf: 0.8,
		BreakerAmps:     model.IntPtr(30),
		AmpsConf:        0.9,
	}))
	require.NoError(t, svc.AddObservation("task1", model.Observation{
		CircuitNumber: 7,
		SourceID:      "photo2.jpg",
		Method:        model.MethodAIVision,
		BreakerAmps:   model.IntPtr(30),
		AmpsConf:      0.95,
		Poles:         model.IntPtr(2),
		PolesConf:     0.9,
	}))

	rc := svc.ResolvedCircuit("task1", 7)
	require.NotNil(t, rc)

	assert.Equal(t, 30, rc.BreakerAmps.Value)
	assert.InDelta(t, 0.94, rc.BreakerAmps.Confidence, 1e-9)
	assert.Equal(t, []string{"photo1.jpg", "photo2.jpg"}, rc.BreakerAmps.Sources)

	assert.Equal(t, "WATER HEATER", rc.Description.Value)
	assert.Equal(t, 2, rc.Poles.Value)
	assert.Equal(t, 2, rc.ObservationsCount)
	assert.False(t, rc.NeedsReview)

	// Absent field resolves empty, not zero-confidence.
	assert.Nil(t, rc.LoadAmps.Value)
	assert.Equal(t, 0.0, rc.LoadAmps.Confidence)
}

func TestService_CacheInvalidationIsPrecise(t *testing.T) {
	svc := New(DefaultConfig())

	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "a", model.MethodTextOCR, 20, 0.8)))
	require.NoError(t, svc.AddObservation("task1", ampsObservation(2, "a", model.MethodTextOCR, 40, 0.8)))

	rc1 := svc.ResolvedCircuit("task1", 1)
	rc2 := svc.ResolvedCircuit("task1", 2)

	// New evidence for circuit 1 must show up immediately...
	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "b", model.MethodAIVision, 20, 0.9)))

	updated1 := svc.ResolvedCircuit("task1", 1)
	assert.NotSame(t, rc1, updated1)
	assert.Greater(t, updated1.BreakerAmps.Confidence, rc1.BreakerAmps.Confidence)

	// ...while circuit 2 keeps its cached resolution.
	assert.Same(t, rc2, svc.ResolvedCircuit("task1", 2))
}

func TestService_TasksAreIndependent(t *testing.T) {
	svc := New(DefaultConfig())

	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "a", model.MethodTextOCR, 20, 0.8)))
	require.NoError(t, svc.AddObservation("task2", ampsObservation(1, "b", model.MethodTextOCR, 60, 0.8)))

	assert.Equal(t, 20, svc.ResolvedCircuit("task1", 1).BreakerAmps.Value)
	assert.Equal(t, 60, svc.ResolvedCircuit("task2", 1).BreakerAmps.Value)

	svc.ClearTask("task1")
	assert.Nil(t, svc.ResolvedCircuit("task1", 1))
	assert.NotNil(t, svc.ResolvedCircuit("task2", 1))
}

func TestService_ClearTask_Idempotent(t *testing.T) {
	svc := New(DefaultConfig())

	// Clearing an unknown task is a no-op, not an error.
	svc.ClearTask("never-seen")

	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "a", model.MethodTextOCR, 20, 0.8)))
	svc.ClearTask("task1")
	svc.ClearTask("task1")

	assert.Nil(t, svc.ResolvedCircuit("task1", 1))
	assert.Empty(t, svc.AllResolvedCircuits("task1"))
	assert.Equal(t, Summary{Sources: []string{}}, svc.Summary("task1"))
}

func TestService_AllResolvedCircuits(t *testing.T) {
	svc := New(DefaultConfig())

	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "a", model.MethodTextOCR, 20, 0.8)))
	require.NoError(t, svc.AddObservation("task1", ampsObservation(3, "a", model.MethodTextOCR, 30, 0.8)))
	require.NoError(t, svc.AddObservation("task1", ampsObservation(5, "b", model.MethodAIVision, 50, 0.9)))

	all := svc.AllResolvedCircuits("task1")
	require.Len(t, all, 3)
	assert.Equal(t, 20, all[1].BreakerAmps.Value)
	assert.Equal(t, 30, all[3].BreakerAmps.Value)
	assert.Equal(t, 50, all[5].BreakerAmps.Value)
}

func TestService_Summary(t *testing.T) {
	svc := New(DefaultConfig())

	// Circuit 1: two agreeing sources. Circuit 2: conflicting amps.
	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "photo1.jpg", model.MethodTextOCR, 20, 0.8)))
	require.NoError(t, svc.AddObservation("task1", ampsObservation(1, "photo2.jpg", model.MethodAIVision, 20, 0.9)))
	require.NoError(t, svc.AddObservation("task1", ampsObservation(2, "photo1.jpg", model.MethodTextOCR, 30, 0.9)))
	require.NoError(t, svc.AddObservation("task1", ampsObservation(2, "photo2.jpg", model.MethodTextOCR, 40, 0.9)))

	summary := svc.Summary("task1")

	assert.Equal(t, 2, summary.TotalCircuits)
	assert.Equal(t, 4, summary.TotalObservations)
	assert.Equal(t, 1, summary.CircuitsWithConflicts)
	assert.Equal(t, []string{"photo1.jpg", "photo2.jpg"}, summary.Sources)
	assert.Greater(t, summary.AverageConfidence, 0.0)
}

func TestService_Summary_EmptyTask(t *testing.T) {
	svc := New(DefaultConfig())

	summary := svc.Summary("unknown")
	assert.Equal(t, 0, summary.TotalCircuits)
	assert.Equal(t, 0.0, summary.AverageConfidence)
	assert.Empty(t, summary.Sources)
}
