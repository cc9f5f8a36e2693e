package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	"wwcp-server/internal/api/v1/models"
	"wwcp-server/internal/logger"
	"wwcp-server/internal/registry"
	"wwcp-server/internal/results"
	wwcp "wwcp-server/models"
)

// Infrastructure is the part of the registry the HTTP API drives
type Infrastructure interface {
	RegisterOperator(operator *wwcp.ChargingStationOperator) error
	SetOperatorAdminStatus(id wwcp.ChargingStationOperatorID, status core.AvailabilityType) error

	ChargingPool(id wwcp.ChargingPoolID) (*wwcp.ChargingPool, bool)
	ChargingPools(operatorID wwcp.ChargingStationOperatorID) []*wwcp.ChargingPool
	AddChargingPools(ctx context.Context, pools []*wwcp.ChargingPool, opts ...results.Option) registry.PoolBulkResult
	AddOrUpdateChargingPool(ctx context.Context, pool *wwcp.ChargingPool, opts ...results.Option) registry.PoolResult
	DeleteChargingPool(ctx context.Context, id wwcp.ChargingPoolID, opts ...results.Option) registry.PoolResult
	PushChargingPoolAdminStatus(ctx context.Context, senderID string, updates []wwcp.ChargingPoolAdminStatusUpdate, opts ...results.Option) registry.PoolAdminStatusResult

	EVSEs(poolID wwcp.ChargingPoolID) []*wwcp.EVSE
	AddEVSEs(ctx context.Context, evses []*wwcp.EVSE, opts ...results.Option) registry.EVSEBulkResult
	DeleteEVSE(ctx context.Context, id wwcp.EVSEID, opts ...results.Option) registry.EVSEResult
}

// InfrastructureHandler handles operator, charging pool and EVSE requests
type InfrastructureHandler struct {
	responder
	infrastructure Infrastructure
	senderID       string
}

// NewInfrastructureHandler creates a new infrastructure handler
func NewInfrastructureHandler(infrastructure Infrastructure, senderID string, log *logger.Logger) *InfrastructureHandler {
	return &InfrastructureHandler{
		responder:      newResponder(log, "infrastructure"),
		infrastructure: infrastructure,
		senderID:       senderID,
	}
}

// RegisterOperator handles requests to register a charging station operator
func (h *InfrastructureHandler) RegisterOperator(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterOperatorRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	operator := &wwcp.ChargingStationOperator{
		ID:          wwcp.ChargingStationOperatorID(req.ID),
		Name:        req.Name,
		AdminStatus: req.AdminStatus,
	}
	if err := h.infrastructure.RegisterOperator(operator); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, registry.ErrAlreadyExists) {
			status = http.StatusConflict
		}
		h.sendError(w, status, "Failed to register operator", err)
		return
	}

	h.sendJSON(w, http.StatusCreated, models.APIResponse{
		Success: true,
		Message: "Operator registered",
		Data:    operator,
	})
}

// SetOperatorAdminStatus handles requests to switch an operator on or off
func (h *InfrastructureHandler) SetOperatorAdminStatus(w http.ResponseWriter, r *http.Request) {
	operatorID := mux.Vars(r)["operatorID"]

	var req models.AdminStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := h.infrastructure.SetOperatorAdminStatus(wwcp.ChargingStationOperatorID(operatorID), req.Status)
	switch {
	case errors.Is(err, registry.ErrUnknownOperator):
		h.sendError(w, http.StatusNotFound, "Operator not found", err)
		return
	case err != nil:
		h.sendError(w, http.StatusBadRequest, "Failed to change operator admin status", err)
		return
	}

	h.sendJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Operator admin status changed",
		Data:    map[string]interface{}{"operatorId": operatorID, "status": req.Status},
	})
}

// GetChargingPools handles requests to list the pools of an operator
func (h *InfrastructureHandler) GetChargingPools(w http.ResponseWriter, r *http.Request) {
	operatorID := mux.Vars(r)["operatorID"]
	pools := h.infrastructure.ChargingPools(wwcp.ChargingStationOperatorID(operatorID))

	h.sendJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Charging pools retrieved",
		Data: models.ChargingPoolsResponse{
			OperatorID: operatorID,
			Pools:      pools,
			Count:      len(pools),
		},
	})
}

// AddChargingPools handles requests to add pools to an operator
func (h *InfrastructureHandler) AddChargingPools(w http.ResponseWriter, r *http.Request) {
	operatorID := mux.Vars(r)["operatorID"]

	var req models.AddChargingPoolsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pools := make([]*wwcp.ChargingPool, 0, len(req.Pools))
	for _, p := range req.Pools {
		pools = append(pools, p.ToChargingPool(operatorID))
	}

	result := h.infrastructure.AddChargingPools(r.Context(), pools, requestOptions(r)...)
	if result.Code() == results.CodeSuccess {
		h.sendJSON(w, http.StatusCreated, models.APIResponse{
			Success: true,
			Message: "Add charging pools: Success",
			Data:    result,
		})
		return
	}
	h.sendResult(w, "Add charging pools", result)
}

// PutChargingPool handles requests to add or update one pool
func (h *InfrastructureHandler) PutChargingPool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.ChargingPoolRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = vars["poolID"]
	}
	if req.ID != vars["poolID"] {
		h.sendError(w, http.StatusBadRequest, "Charging pool id does not match the path", nil)
		return
	}

	result := h.infrastructure.AddOrUpdateChargingPool(r.Context(), req.ToChargingPool(vars["operatorID"]), requestOptions(r)...)
	if result.AddedOrUpdated() == results.AddedOrUpdatedAdd {
		h.sendJSON(w, http.StatusCreated, models.APIResponse{
			Success: true,
			Message: "Add or update charging pool: Success",
			Data:    result,
		})
		return
	}
	h.sendResult(w, "Add or update charging pool", result)
}

// DeleteChargingPool handles requests to remove a pool
func (h *InfrastructureHandler) DeleteChargingPool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolID := wwcp.ChargingPoolID(vars["poolID"])

	if pool, ok := h.infrastructure.ChargingPool(poolID); ok && string(pool.OperatorID) != vars["operatorID"] {
		h.sendError(w, http.StatusNotFound, "Charging pool not found for operator", nil)
		return
	}

	result := h.infrastructure.DeleteChargingPool(r.Context(), poolID, requestOptions(r)...)
	h.sendResult(w, "Delete charging pool", result)
}

// SetChargingPoolAdminStatus handles requests to switch a pool on or off
func (h *InfrastructureHandler) SetChargingPoolAdminStatus(w http.ResponseWriter, r *http.Request) {
	poolID := wwcp.ChargingPoolID(mux.Vars(r)["poolID"])

	var req models.AdminStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var oldStatus core.AvailabilityType
	if pool, ok := h.infrastructure.ChargingPool(poolID); ok {
		oldStatus = pool.AdminStatus
	}

	update := wwcp.NewChargingPoolAdminStatusUpdate(poolID, oldStatus, req.Status, timeNow())
	result := h.infrastructure.PushChargingPoolAdminStatus(r.Context(), h.senderID,
		[]wwcp.ChargingPoolAdminStatusUpdate{update}, requestOptions(r)...)
	h.sendResult(w, "Set charging pool admin status", result)
}

// GetEVSEs handles requests to list the EVSEs of a pool
func (h *InfrastructureHandler) GetEVSEs(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["poolID"]
	if _, ok := h.infrastructure.ChargingPool(wwcp.ChargingPoolID(poolID)); !ok {
		h.sendError(w, http.StatusNotFound, "Charging pool not found", nil)
		return
	}

	evses := h.infrastructure.EVSEs(wwcp.ChargingPoolID(poolID))
	h.sendJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "EVSEs retrieved",
		Data: models.EVSEsResponse{
			PoolID: poolID,
			EVSEs:  evses,
			Count:  len(evses),
		},
	})
}

// AddEVSEs handles requests to add EVSEs to a pool
func (h *InfrastructureHandler) AddEVSEs(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["poolID"]

	var req models.AddEVSEsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	evses := make([]*wwcp.EVSE, 0, len(req.EVSEs))
	for _, e := range req.EVSEs {
		evses = append(evses, e.ToEVSE(poolID))
	}

	result := h.infrastructure.AddEVSEs(r.Context(), evses, requestOptions(r)...)
	if result.Code() == results.CodeSuccess {
		h.sendJSON(w, http.StatusCreated, models.APIResponse{
			Success: true,
			Message: "Add EVSEs: Success",
			Data:    result,
		})
		return
	}
	h.sendResult(w, "Add EVSEs", result)
}

// DeleteEVSE handles requests to remove an EVSE
func (h *InfrastructureHandler) DeleteEVSE(w http.ResponseWriter, r *http.Request) {
	evseID := wwcp.EVSEID(mux.Vars(r)["evseID"])
	result := h.infrastructure.DeleteEVSE(r.Context(), evseID, requestOptions(r)...)
	h.sendResult(w, "Delete EVSE", result)
}
