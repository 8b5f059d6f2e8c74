package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/rbxsniper/internal/checker"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()
	r.ObserveAttempt()
	r.ObserveAttempt()
	r.ObserveOutcome(checker.StatusTaken)
	r.ObserveOutcome(checker.StatusValid)
	r.ObserveFound()
	r.ObserveProxyResponse("200")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.attempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.found))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.upstream.WithLabelValues("200")))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveAttempt()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sniper_attempts_total 1")
}
