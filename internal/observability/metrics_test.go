package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreSharedAcrossCalls(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(VotesCast().WithLabelValues("VOTE"))
	VotesCast().WithLabelValues("VOTE").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(VotesCast().WithLabelValues("VOTE")))

	LiveClients().Inc()
	LiveClients().Dec()
	require.Equal(t, float64(0), testutil.ToFloat64(LiveClients()))
}

func TestMetricsHandlerExposesContestCollectors(t *testing.T) {
	Submissions().WithLabelValues("accepted").Inc()
	RateLimited().WithLabelValues("submission").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `contest_submissions_total{outcome="accepted"}`)
	require.Contains(t, string(body), `contest_rate_limited_total{scope="submission"}`)
}
