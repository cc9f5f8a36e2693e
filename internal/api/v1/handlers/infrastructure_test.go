package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wwcp-server/internal/api/v1/models"
	"wwcp-server/internal/helpers"
	"wwcp-server/internal/logger"
	"wwcp-server/internal/registry"
	wwcp "wwcp-server/models"
)

const testOperatorID = "DE*GEF"

// setupTestRequest creates an HTTP request for testing
func setupTestRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// setupMuxRequest sets up a request with mux variables
func setupMuxRequest(method, url string, body interface{}, vars map[string]string) *http.Request {
	return mux.SetURLVars(setupTestRequest(method, url, body), vars)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) (models.APIResponse, map[string]interface{}) {
	t.Helper()

	var response models.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	data, _ := response.Data.(map[string]interface{})
	return response, data
}

func newTestInfrastructure(t *testing.T) (*registry.Registry, *InfrastructureHandler) {
	t.Helper()

	r := registry.New(registry.Options{
		SenderID:       "test-server",
		LockTimeout:    20 * time.Millisecond,
		CommandTimeout: time.Second,
	}, logger.Nop())
	require.NoError(t, r.RegisterOperator(&wwcp.ChargingStationOperator{ID: testOperatorID, Name: "GraphDefined"}))

	return r, NewInfrastructureHandler(r, "test-server", logger.Nop())
}

func addTestPool(t *testing.T, h *InfrastructureHandler, poolID string) {
	t.Helper()

	body := models.AddChargingPoolsRequest{Pools: []models.ChargingPoolRequest{{ID: poolID, Name: "Pool"}}}
	req := setupMuxRequest("POST", "/api/v1/operators/DE*GEF/pools", body, map[string]string{"operatorID": testOperatorID})
	rr := httptest.NewRecorder()

	h.AddChargingPools(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestRegisterOperatorHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)

	req := setupTestRequest("POST", "/api/v1/operators", models.RegisterOperatorRequest{ID: "DE*BDO", Name: "Bayern"})
	rr := httptest.NewRecorder()
	h.RegisterOperator(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	// Same operator again
	req = setupTestRequest("POST", "/api/v1/operators", models.RegisterOperatorRequest{ID: "DE*BDO"})
	rr = httptest.NewRecorder()
	h.RegisterOperator(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)

	req = setupTestRequest("POST", "/api/v1/operators", models.RegisterOperatorRequest{ID: "DE*XYZ", AdminStatus: "Broken"})
	rr = httptest.NewRecorder()
	h.RegisterOperator(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterOperatorHandler_InvalidJSON(t *testing.T) {
	_, h := newTestInfrastructure(t)

	req := httptest.NewRequest("POST", "/api/v1/operators", bytes.NewBufferString("{invalid json"))
	rr := httptest.NewRecorder()
	h.RegisterOperator(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	response, _ := decodeResponse(t, rr)
	assert.False(t, response.Success)
	assert.Equal(t, "Invalid request body", response.Message)
}

func TestSetOperatorAdminStatusHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)

	body := models.AdminStatusRequest{Status: core.AvailabilityTypeInoperative}
	req := setupMuxRequest("PUT", "/api/v1/operators/XX*NOP/admin-status", body, map[string]string{"operatorID": "XX*NOP"})
	rr := httptest.NewRecorder()
	h.SetOperatorAdminStatus(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req = setupMuxRequest("PUT", "/api/v1/operators/DE*GEF/admin-status", body, map[string]string{"operatorID": testOperatorID})
	rr = httptest.NewRecorder()
	h.SetOperatorAdminStatus(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Commands against the operator are now AdminDown
	body2 := models.AddChargingPoolsRequest{Pools: []models.ChargingPoolRequest{{ID: "DE*GEF*P1"}}}
	req = setupMuxRequest("POST", "/api/v1/operators/DE*GEF/pools", body2, map[string]string{"operatorID": testOperatorID})
	rr = httptest.NewRecorder()
	h.AddChargingPools(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, "AdminDown", data["code"])
}

func TestAddChargingPoolsHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)

	body := models.AddChargingPoolsRequest{Pools: []models.ChargingPoolRequest{
		{ID: "DE*GEF*P1", Name: "Jena Nord"},
		{ID: "DE*GEF*P2", Name: "Jena Süd"},
	}}
	req := setupMuxRequest("POST", "/api/v1/operators/DE*GEF/pools", body, map[string]string{"operatorID": testOperatorID})
	req.Header.Set(helpers.EventTrackingHeader, "evt-42")
	rr := httptest.NewRecorder()

	h.AddChargingPools(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	response, data := decodeResponse(t, rr)
	assert.True(t, response.Success)
	assert.Equal(t, "Success", data["code"])
	assert.Equal(t, "evt-42", data["eventTrackingId"])
	assert.Equal(t, "test-server", data["senderId"])
	assert.Len(t, data["successful"], 2)

	// A second attempt rejects one pool and accepts the other
	body.Pools = append(body.Pools, models.ChargingPoolRequest{ID: "DE*GEF*P3"})
	body.Pools = body.Pools[1:]
	req = setupMuxRequest("POST", "/api/v1/operators/DE*GEF/pools", body, map[string]string{"operatorID": testOperatorID})
	rr = httptest.NewRecorder()

	h.AddChargingPools(rr, req)

	assert.Equal(t, http.StatusMultiStatus, rr.Code)
	response, data = decodeResponse(t, rr)
	assert.False(t, response.Success)
	assert.Equal(t, "Partial", data["code"])
	assert.Len(t, data["successful"], 1)
	assert.Len(t, data["rejected"], 1)
}

func TestGetChargingPoolsHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)
	addTestPool(t, h, "DE*GEF*P1")

	req := setupMuxRequest("GET", "/api/v1/operators/DE*GEF/pools", nil, map[string]string{"operatorID": testOperatorID})
	rr := httptest.NewRecorder()
	h.GetChargingPools(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, float64(1), data["count"])
}

func TestPutChargingPoolHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)
	vars := map[string]string{"operatorID": testOperatorID, "poolID": "DE*GEF*P1"}

	req := setupMuxRequest("PUT", "/api/v1/operators/DE*GEF/pools/DE*GEF*P1", models.ChargingPoolRequest{Name: "Jena"}, vars)
	rr := httptest.NewRecorder()
	h.PutChargingPool(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, "Add", data["addedOrUpdated"])

	req = setupMuxRequest("PUT", "/api/v1/operators/DE*GEF/pools/DE*GEF*P1", models.ChargingPoolRequest{Name: "Jena Nord"}, vars)
	rr = httptest.NewRecorder()
	h.PutChargingPool(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	_, data = decodeResponse(t, rr)
	assert.Equal(t, "Update", data["addedOrUpdated"])

	req = setupMuxRequest("PUT", "/api/v1/operators/DE*GEF/pools/DE*GEF*P1", models.ChargingPoolRequest{ID: "DE*GEF*P9"}, vars)
	rr = httptest.NewRecorder()
	h.PutChargingPool(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteChargingPoolHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)
	addTestPool(t, h, "DE*GEF*P1")

	evses := models.AddEVSEsRequest{EVSEs: []models.EVSERequest{{ID: "DE*GEF*E1", ConnectorID: 1}}}
	req := setupMuxRequest("POST", "/api/v1/pools/DE*GEF*P1/evses", evses, map[string]string{"poolID": "DE*GEF*P1"})
	rr := httptest.NewRecorder()
	h.AddEVSEs(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	poolVars := map[string]string{"operatorID": testOperatorID, "poolID": "DE*GEF*P1"}

	// Wrong operator
	req = setupMuxRequest("DELETE", "/api/v1/operators/DE*BDO/pools/DE*GEF*P1", nil, map[string]string{"operatorID": "DE*BDO", "poolID": "DE*GEF*P1"})
	rr = httptest.NewRecorder()
	h.DeleteChargingPool(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Still has an EVSE
	req = setupMuxRequest("DELETE", "/api/v1/operators/DE*GEF/pools/DE*GEF*P1", nil, poolVars)
	rr = httptest.NewRecorder()
	h.DeleteChargingPool(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
	response, _ := decodeResponse(t, rr)
	assert.Contains(t, response.Message, "CanNotBeRemoved")

	req = setupMuxRequest("DELETE", "/api/v1/evses/DE*GEF*E1", nil, map[string]string{"evseID": "DE*GEF*E1"})
	rr = httptest.NewRecorder()
	h.DeleteEVSE(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = setupMuxRequest("DELETE", "/api/v1/operators/DE*GEF/pools/DE*GEF*P1", nil, poolVars)
	rr = httptest.NewRecorder()
	h.DeleteChargingPool(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Gone now
	req = setupMuxRequest("DELETE", "/api/v1/operators/DE*GEF/pools/DE*GEF*P1", nil, poolVars)
	rr = httptest.NewRecorder()
	h.DeleteChargingPool(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, "ArgumentError", data["code"])
	assert.Equal(t, false, data["resolved"])
}

func TestSetChargingPoolAdminStatusHandler(t *testing.T) {
	r, h := newTestInfrastructure(t)
	addTestPool(t, h, "DE*GEF*P1")

	body := models.AdminStatusRequest{Status: core.AvailabilityTypeInoperative}
	req := setupMuxRequest("PUT", "/api/v1/pools/DE*GEF*P1/admin-status", body, map[string]string{"poolID": "DE*GEF*P1"})
	rr := httptest.NewRecorder()
	h.SetChargingPoolAdminStatus(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, "Success", data["code"])
	assert.Equal(t, "receiver", data["actorKind"])

	pool, ok := r.ChargingPool("DE*GEF*P1")
	require.True(t, ok)
	assert.Equal(t, core.AvailabilityTypeInoperative, pool.AdminStatus)

	// EVSEs can not be added to an inoperative pool
	evses := models.AddEVSEsRequest{EVSEs: []models.EVSERequest{{ID: "DE*GEF*E1", ConnectorID: 1}}}
	req = setupMuxRequest("POST", "/api/v1/pools/DE*GEF*P1/evses", evses, map[string]string{"poolID": "DE*GEF*P1"})
	rr = httptest.NewRecorder()
	h.AddEVSEs(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	_, data = decodeResponse(t, rr)
	assert.Equal(t, "OutOfService", data["code"])
}

func TestSetChargingPoolAdminStatusHandler_EventTrackingHeader(t *testing.T) {
	_, h := newTestInfrastructure(t)
	addTestPool(t, h, "DE*GEF*P1")

	body := models.AdminStatusRequest{Status: core.AvailabilityTypeInoperative}
	req := setupMuxRequest("PUT", "/api/v1/pools/DE*GEF*P1/admin-status", body, map[string]string{"poolID": "DE*GEF*P1"})
	req.Header.Set(helpers.EventTrackingHeader, "evt-51")
	rr := httptest.NewRecorder()
	h.SetChargingPoolAdminStatus(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, "evt-51", data["eventTrackingId"])
}

func TestGetEVSEsHandler(t *testing.T) {
	_, h := newTestInfrastructure(t)

	req := setupMuxRequest("GET", "/api/v1/pools/DE*GEF*P1/evses", nil, map[string]string{"poolID": "DE*GEF*P1"})
	rr := httptest.NewRecorder()
	h.GetEVSEs(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	addTestPool(t, h, "DE*GEF*P1")
	evses := models.AddEVSEsRequest{EVSEs: []models.EVSERequest{
		{ID: "DE*GEF*E2", ConnectorID: 2},
		{ID: "DE*GEF*E1", ConnectorID: 1},
	}}
	req = setupMuxRequest("POST", "/api/v1/pools/DE*GEF*P1/evses", evses, map[string]string{"poolID": "DE*GEF*P1"})
	rr = httptest.NewRecorder()
	h.AddEVSEs(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req = setupMuxRequest("GET", "/api/v1/pools/DE*GEF*P1/evses", nil, map[string]string{"poolID": "DE*GEF*P1"})
	rr = httptest.NewRecorder()
	h.GetEVSEs(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, float64(2), data["count"])
	list, ok := data["evses"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "DE*GEF*E1", list[0].(map[string]interface{})["id"])
}
