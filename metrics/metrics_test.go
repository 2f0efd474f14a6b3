package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRerank(t *testing.T) {
	before := testutil.ToFloat64(RerankerCalls)
	RecordRerank(OutcomeConverged, 3)
	assert.Equal(t, before+3, testutil.ToFloat64(RerankerCalls))
	assert.GreaterOrEqual(t, testutil.ToFloat64(RerankerOutcomes.WithLabelValues(OutcomeConverged)), 1.0)
}

func TestRecordShardLoad(t *testing.T) {
	before := testutil.ToFloat64(ShardLoads.WithLabelValues("lazy"))
	RecordShardLoad("lazy")
	assert.Equal(t, before+1, testutil.ToFloat64(ShardLoads.WithLabelValues("lazy")))
}

func TestHandler(t *testing.T) {
	RecordConversion("session", 0.002, 5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kanakanji_conversion_duration_seconds")
	assert.Contains(t, string(body), "kanakanji_candidates_returned")
}
