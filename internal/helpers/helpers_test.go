package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wwcp-server/internal/results"
)

func TestEventTrackingID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	generated := EventTrackingID(req)
	assert.False(t, generated.IsZero())

	req.Header.Set(EventTrackingHeader, " evt-1 ")
	assert.Equal(t, results.EventTrackingID("evt-1"), EventTrackingID(req))
}

func TestSendJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, SendJSONResponse(rr, http.StatusAccepted, map[string]string{"status": "queued"}))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "queued", body["status"])
}

func TestSendJSONResponse_EncodingError(t *testing.T) {
	rr := httptest.NewRecorder()
	err := SendJSONResponse(rr, http.StatusOK, map[string]interface{}{"ch": make(chan int)})

	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)
}
