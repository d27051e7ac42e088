package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHTTPRequest(t *testing.T) {
	httpRequestsTotal.Reset()
	httpRequestDuration.Reset()

	RecordHTTPRequest("GET", "GET /api/resources", "200", 0.01)
	RecordHTTPRequest("GET", "GET /api/resources", "200", 0.02)
	RecordHTTPRequest("GET", "GET /api/resources", "500", 0.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /api/resources", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /api/resources", "500")))
	assert.Equal(t, 1, testutil.CollectAndCount(httpRequestDuration))
}

func TestRecordAgentExecution(t *testing.T) {
	agentExecutionsTotal.Reset()
	agentExecutionDuration.Reset()

	RecordAgentExecution("builtin", StatusSuccess, 1)
	RecordAgentExecution("custom", StatusError, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(agentExecutionsTotal.WithLabelValues("builtin", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(agentExecutionsTotal.WithLabelValues("custom", StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(agentExecutionDuration))
}

func TestUploadsAndParseFailures(t *testing.T) {
	resourcesUploadedTotal.Reset()
	parseFailuresTotal.Reset()

	RecordResourceUploaded("pdf")
	RecordParseFailure("unsupported_type")
	RecordParseFailure("unsupported_type")

	assert.Equal(t, 1.0, testutil.ToFloat64(resourcesUploadedTotal.WithLabelValues("pdf")))
	assert.Equal(t, 2.0, testutil.ToFloat64(parseFailuresTotal.WithLabelValues("unsupported_type")))
}

func TestSessionGauge(t *testing.T) {
	workflowSessionsActive.Set(0)

	SessionOpened()
	SessionOpened()
	SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(workflowSessionsActive))
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordResourceUploaded("md")

	rec := httptest.NewRecorder()
	Handler(NewRegistry()).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "storyforge_resources_uploaded_total")
	assert.Contains(t, string(body), "go_goroutines")
}
