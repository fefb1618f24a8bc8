package task

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m.Data
		}
	}
	return byName
}

// sumByOutcome adds up the data points of a counter per outcome attribute.
func sumByOutcome(t *testing.T, agg metricdata.Aggregation) map[string]int64 {
	t.Helper()

	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", agg)

	totals := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		totals[outcome.AsString()] += dp.Value
	}
	return totals
}

func TestOrchestratorMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	projectID := uuid.New()
	doc, err := domain.NewDocument(projectID, "Notes", "Enzymes speed up reactions.")
	require.NoError(t, err)

	gen := mocks.NewMockGeneratorWithEvents(
		generation.NodeEvent(domain.Node{ID: "root", Label: "Enzymes"}),
	)
	orch, err := NewOrchestrator(DefaultConfig(), Dependencies{
		Generator:     gen,
		Outputs:       mocks.NewMockOutputStore(),
		Documents:     mocks.NewMockDocumentStore(doc),
		Sink:          mocks.NewRecordingSink(),
		MeterProvider: provider,
	}, testLogger())
	require.NoError(t, err)

	for _, ids := range [][]uuid.UUID{{doc.ID}, nil} {
		_, err := orch.StartGeneration(context.Background(), StartGenerationRequest{
			ProjectID:   projectID,
			Kind:        "mindmap",
			DocumentIDs: ids,
		})
		require.NoError(t, err)
	}
	waitIdle(t, orch)

	got := collect(t, reader)

	started, ok := got["scry.tasks.started"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range started.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	finished := sumByOutcome(t, got["scry.tasks.finished"])
	assert.Equal(t, int64(1), finished["completed"])
	assert.Equal(t, int64(1), finished["failed"])

	running, ok := got["scry.tasks.running"].(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range running.DataPoints {
		assert.Equal(t, int64(0), dp.Value, "every slot was released")
	}

	duration, ok := got["scry.tasks.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range duration.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	assert.Contains(t, got, "scry.tasks.queue_wait")
}
