package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panelboard-cli/internal/model"
)

func TestStore_Update_FirstWriteAccepted(t *testing.T) {
	store := New(model.DefaultWeights())

	updated, reason := store.Update("task1", "voltage", "480Y/277V", 0.7, model.MethodManual, "user")

	assert.True(t, updated)
	assert.Contains(t, reason, "New parameter set with confidence")
	assert.Equal(t, "480Y/277V", store.Value("task1", "voltage"))
}

func TestStore_Update_LowerConfidenceRejected(t *testing.T) {
	store := New(model.DefaultWeights())

	// Manual 0.7 * 0.75 = 0.525 beats text OCR 0.6 * 0.60 = 0.36.
	store.Update("task1", "voltage", "480Y/277V", 0.7, model.MethodManual, "user")
	updated, reason := store.Update("task1", "voltage", "208V", 0.6, model.MethodTextOCR, "photo1.jpg")

	assert.False(t, updated)
	assert.Contains(t, reason, "Rejected: new confidence 0.36")
	assert.Equal(t, "480Y/277V", store.Value("task1", "voltage"))

	pv, ok := store.Get("task1", "voltage")
	require.True(t, ok)
	assert.Equal(t, model.MethodManual, pv.Method)
	assert.Equal(t, "user", pv.SourceID)
}

func TestStore_Update_HigherConfidenceAccepted(t *testing.T) {
	store := New(model.DefaultWeights())

	store.Update("task1", "voltage", "208V", 0.6, model.MethodTextOCR, "photo1.jpg")
	updated, reason := store.Update("task1", "voltage", "480Y/277V", 0.9, model.MethodAIVision, "photo2.jpg")

	assert.True(t, updated)
	assert.Contains(t, reason, "Updated")
	assert.Equal(t, "480Y/277V", store.Value("task1", "voltage"))
}

func TestStore_Update_TieFavorsIncumbent(t *testing.T) {
	store := New(model.DefaultWeights())

	store.Update("task1", "phase", "3", 0.8, model.MethodTextOCR, "photo1.jpg")

	// Identical effective confidence must not displace the incumbent.
	updated, _ := store.Update("task1", "phase", "1", 0.8, model.MethodTextOCR, "photo2.jpg")

	assert.False(t, updated)
	assert.Equal(t, "3", store.Value("task1", "phase"))
}

func TestStore_Update_EmptyValuesRejected(t *testing.T) {
	store := New(model.DefaultWeights())

	for _, value := range []any{nil, "", "   "} {
		updated, reason := store.Update("task1", "voltage", value, 0.9, model.MethodAIVision, "photo1.jpg")
		assert.False(t, updated)
		assert.Equal(t, "Empty value ignored", reason)
	}

	_, ok := store.Get("task1", "voltage")
	assert.False(t, ok)
}

func TestStore_Update_WeightIsMultiplicative(t *testing.T) {
	store := New(model.DefaultWeights())

	// Unlike the field resolver's ceiling rule, the store multiplies:
	// 0.9 raw via AI vision stores at effective 0.765, not 0.85.
	store.Update("task1", "voltage", "480V", 0.9, model.MethodAIVision, "photo1.jpg")

	pv, ok := store.Get("task1", "voltage")
	require.True(t, ok)
	assert.InDelta(t, 0.765, pv.EffectiveConfidence(model.DefaultWeights()), 1e-9)
}

func TestStore_UpdateBatch_WhitelistEnforced(t *testing.T) {
	store := New(model.DefaultWeights())

	results := store.UpdateBatch("task1", map[string]any{
		"Voltage":      "480Y/277V",
		"MAIN_BREAKER": "400A",
		"wire":         "4",
		"breaker_7":    "20A", // not a tracked panel parameter
	}, 0.8, model.MethodManual, "user")

	require.Len(t, results, 3)
	assert.True(t, results["Voltage"].Updated)
	assert.True(t, results["MAIN_BREAKER"].Updated)
	assert.True(t, results["wire"].Updated)
	assert.NotContains(t, results, "breaker_7")

	// Stored under lowercase names.
	all := store.All("task1")
	assert.Equal(t, "480Y/277V", all["voltage"])
	assert.Equal(t, "400A", all["main_breaker"])
	assert.NotContains(t, all, "breaker_7")
}

func TestStore_AllWithConfidence_Shape(t *testing.T) {
	store := New(model.DefaultWeights())

	store.Update("task1", "voltage", "480Y/277V", 0.7, model.MethodManual, "user")

	got := store.AllWithConfidence("task1")
	require.Contains(t, got, "voltage")

	info := got["voltage"]
	assert.Equal(t, "480Y/277V", info.Value)
	assert.InDelta(t, 0.525, info.Confidence, 0.01)
	assert.Equal(t, "manual", info.Method)
	assert.Equal(t, "user", info.Source)
}

func TestStore_ClearTask_Idempotent(t *testing.T) {
	store := New(model.DefaultWeights())

	store.ClearTask("never-seen")

	store.Update("task1", "voltage", "208V", 0.8, model.MethodManual, "user")
	store.Update("task2", "voltage", "480V", 0.8, model.MethodManual, "user")

	store.ClearTask("task1")
	store.ClearTask("task1")

	assert.Empty(t, store.All("task1"))
	assert.Nil(t, store.Value("task1", "voltage"))
	assert.Equal(t, "480V", store.Value("task2", "voltage"))
}

func TestStore_UnknownTaskAccessors(t *testing.T) {
	store := New(model.DefaultWeights())

	assert.Empty(t, store.All("nope"))
	assert.Empty(t, store.AllWithConfidence("nope"))
	assert.Nil(t, store.Value("nope", "voltage"))
}
