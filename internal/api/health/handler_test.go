package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

func TestHandleReadiness(t *testing.T) {
	h := New(logger.Get(), "advisor", "test")
	h.AddCheck("redis", CheckerFunc(func(context.Context) error { return nil }))
	h.AddCheck("nil", nil)

	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status ReadinessStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "advisor", status.Service)
	require.Len(t, status.Checks, 1)
	assert.Equal(t, "healthy", status.Checks["redis"].Status)
}

func TestHandleReadiness_Unhealthy(t *testing.T) {
	h := New(logger.Get(), "advisor", "test")
	h.AddCheck("redis", CheckerFunc(func(context.Context) error { return errors.ErrUnavailable }))

	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status ReadinessStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unavailable", status.Status)
	assert.Equal(t, errors.ErrUnavailable.Error(), status.Checks["redis"].Error)
}

func TestHandleLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	New(logger.Get(), "advisor", "test").HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
