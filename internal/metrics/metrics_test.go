package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(EscrowTransitions.WithLabelValues("hire", "error"))
	RecordTransition("hire", errors.New("x"))
	assert.Equal(t, before+1, testutil.ToFloat64(EscrowTransitions.WithLabelValues("hire", "error")))
}

func TestObserveLedgerCall(t *testing.T) {
	ObserveLedgerCall("deploy", time.Now().Add(-time.Second), nil)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(LedgerCallDuration), 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordTransition("release", nil)

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "escrow_transitions_total")
}
