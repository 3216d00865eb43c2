package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainservices "github.com/NikolaosSamperis/PlaqueMS-project/domain/services"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

func TestCollector_CountsCycleSignals(t *testing.T) {
	c := NewCollector("plaquems")

	c.ObserveOrchestration("completed", 3*time.Second)
	c.ObserveOrchestration("timed_out", 5*time.Minute)
	c.ObserveAssembly(domainservices.AssemblyReport{DanglingEdgesDropped: 4})
	c.ObserveStaleAssignments(2)
	c.ObservePoll()
	c.ObservePoll()
	c.ObserveRemoteCall("create_network", 200, 10*time.Millisecond)
	c.ObserveRemoteCall("poll_job", 0, time.Second)
	c.ObserveStep("fetch", time.Second, pkgerrors.NewDataSourceUnavailableError(pkgerrors.SourceGraph, errors.New("down")))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Orchestrations.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Orchestrations.WithLabelValues("timed_out")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.DanglingEdges))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.StaleAssignments))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.PollIterations))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RemoteCalls.WithLabelValues("create_network", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RemoteCalls.WithLabelValues("poll_job", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.StepDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("plaquems")
	c.ObserveFetch("relational", 20*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plaquems_fetch_duration_seconds_count{source="relational",status="ok"} 1`)
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("plaquems")
	b := NewCollector("plaquems")

	a.ObservePoll()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PollIterations))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PollIterations))
}
