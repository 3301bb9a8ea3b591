package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRecommendationSplitsOutcome(t *testing.T) {
	created := testutil.ToFloat64(recommendationsGenerated.WithLabelValues("created"))
	reused := testutil.ToFloat64(recommendationsGenerated.WithLabelValues("reused"))

	RecordRecommendation(true)
	RecordRecommendation(false)
	RecordRecommendation(false)

	assert.Equal(t, created+1, testutil.ToFloat64(recommendationsGenerated.WithLabelValues("created")))
	assert.Equal(t, reused+2, testutil.ToFloat64(recommendationsGenerated.WithLabelValues("reused")))
}

func TestObserveGenerateRecordsSample(t *testing.T) {
	var before dto.Metric
	require.NoError(t, generateDuration.Write(&before))

	ObserveGenerate(120 * time.Millisecond)

	var after dto.Metric
	require.NoError(t, generateDuration.Write(&after))
	assert.Equal(t, before.GetHistogram().GetSampleCount()+1, after.GetHistogram().GetSampleCount())
	assert.InDelta(t, before.GetHistogram().GetSampleSum()+0.12, after.GetHistogram().GetSampleSum(), 1e-9)
}

func TestPersistenceWatermarkIgnoresZeroTime(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	RecordRecommendationPersisted(ts)
	assert.Equal(t, float64(ts.Unix()), testutil.ToFloat64(persistGauge))

	RecordRecommendationPersisted(time.Time{})
	assert.Equal(t, float64(ts.Unix()), testutil.ToFloat64(persistGauge))
}

func TestCompletionCounters(t *testing.T) {
	completed := testutil.ToFloat64(sessionsCompleted)
	rejected := testutil.ToFloat64(completionRejected)

	RecordSessionCompleted()
	RecordCompletionRejected()

	assert.Equal(t, completed+1, testutil.ToFloat64(sessionsCompleted))
	assert.Equal(t, rejected+1, testutil.ToFloat64(completionRejected))
}
