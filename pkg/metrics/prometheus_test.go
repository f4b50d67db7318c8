package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRun("completed", 2*time.Minute)
	r.RecordEntity("success")
	r.RecordEntity("success")
	r.RecordEntity("skipped")
	r.RecordTechniqueWin("arima")
	r.RecordProgress(85)
	r.RecordHTTP("POST", "/api/v1/forecast/runs", 202, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.entitiesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.techniqueWins.WithLabelValues("arima")))
	assert.Equal(t, 85.0, testutil.ToFloat64(r.runProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("POST", "/api/v1/forecast/runs", "202")))
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
