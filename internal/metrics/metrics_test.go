package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveVerification(t *testing.T) {
	before := testutil.ToFloat64(Verifications.WithLabelValues("NONCE_MISMATCH"))
	ObserveVerification("NONCE_MISMATCH")
	assert.Equal(t, before+1, testutil.ToFloat64(Verifications.WithLabelValues("NONCE_MISMATCH")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodPost, "/api/v1/auth/verify", http.StatusOK, 5*time.Millisecond)
	ObserveProof("queued")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "chainauth_http_requests_total")
	assert.Contains(t, body, "chainauth_proofs_total")
}
