package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRecompute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordRecompute("recipe", "success", 5, 10*time.Millisecond)
	m.RecordRecompute("recipe", "success", 3, time.Millisecond)
	m.RecordRecompute("transform", "empty", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecomputeTotal.WithLabelValues("recipe", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecomputeTotal.WithLabelValues("transform", "empty")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.RowsUpserted.WithLabelValues("recipe")))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulRecompute), 0.0)
}

func TestMetrics_Recipe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordValidationFailure("disallowed_function")
	m.RecordCycle()
	m.RecordCycle()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("disallowed_function")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CyclesDetected))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRecompute("recipe", "error", 0, time.Second)
		m.RecordValidationFailure("syntax")
		m.RecordCycle()
		m.RecordFanOut(3)
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	NewMetrics("dup", prometheus.NewRegistry())
	NewMetrics("dup", prometheus.NewRegistry())
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")

	log.Info().Msg("hidden")
	log.Warn().Str("ticker", "SPREAD").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "SPREAD", entry["ticker"])
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	log := newLogger(&bytes.Buffer{}, "chatty", "")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
