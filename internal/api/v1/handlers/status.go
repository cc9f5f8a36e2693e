package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	"wwcp-server/internal/api/v1/models"
	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
	"wwcp-server/internal/state"
	"wwcp-server/internal/status"
	wwcp "wwcp-server/models"
)

var timeNow = time.Now

// StatusBroadcaster fans EVSE status pushes out to all configured pushers
type StatusBroadcaster interface {
	ID() string
	IsEnabled() bool
	Enable()
	Disable()
	Pushers() []string
	PushEVSEStatus(ctx context.Context, senderID string, updates []wwcp.EVSEStatusUpdate, opts ...results.Option) status.EVSEStatusResult
	PushEVSEStatusAsync(senderID string, updates []wwcp.EVSEStatusUpdate, done func(status.EVSEStatusResult), opts ...results.Option) status.EVSEStatusResult
}

// StatusReader returns the last stored status of an EVSE
type StatusReader interface {
	LatestEVSEStatus(ctx context.Context, id wwcp.EVSEID) (*wwcp.EVSEStatusUpdate, error)
}

// StatusHandler handles EVSE status push and lookup requests
type StatusHandler struct {
	responder
	broadcaster StatusBroadcaster
	reader      StatusReader // nil when no state store is configured
	senderID    string
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(broadcaster StatusBroadcaster, reader StatusReader, senderID string, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		responder:   newResponder(log, "status"),
		broadcaster: broadcaster,
		reader:      reader,
		senderID:    senderID,
	}
}

// PushEVSEStatus handles requests to broadcast EVSE status updates
func (h *StatusHandler) PushEVSEStatus(w http.ResponseWriter, r *http.Request) {
	var req models.PushEVSEStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	senderID := req.SenderID
	if senderID == "" {
		senderID = h.senderID
	}

	for i, update := range req.Updates {
		if err := wwcp.ValidateEVSEStatus(update.NewStatus); err != nil {
			h.sendError(w, http.StatusBadRequest, "Invalid EVSE status update", err)
			return
		}
		if update.Timestamp == nil {
			req.Updates[i] = wwcp.NewEVSEStatusUpdate(update.EVSEID, update.OldStatus, update.NewStatus, timeNow())
		}
	}

	opts := requestOptions(r)

	if req.Async {
		result := h.broadcaster.PushEVSEStatusAsync(senderID, req.Updates, nil, opts...)
		h.sendResult(w, "Push EVSE status", result)
		return
	}

	result := h.broadcaster.PushEVSEStatus(r.Context(), senderID, req.Updates, opts...)
	h.log.Info("EVSE status pushed",
		"senderId", senderID,
		"eventTrackingId", result.EventTrackingID(),
		"code", result.Code())
	h.sendResult(w, "Push EVSE status", result)
}

// GetEVSEStatus handles requests for the last stored status of an EVSE
func (h *StatusHandler) GetEVSEStatus(w http.ResponseWriter, r *http.Request) {
	evseID := mux.Vars(r)["evseID"]

	if h.reader == nil {
		h.sendError(w, http.StatusServiceUnavailable, "No status store configured", nil)
		return
	}

	latest, err := h.reader.LatestEVSEStatus(r.Context(), wwcp.EVSEID(evseID))
	switch {
	case errors.Is(err, state.ErrStatusNotFound):
		h.sendError(w, http.StatusNotFound, "No status known for EVSE", err)
		return
	case err != nil:
		h.log.Error("failed to read EVSE status", "evseId", evseID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to read EVSE status", err)
		return
	}

	h.sendJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "EVSE status retrieved",
		Data:    models.EVSEStatusResponse{EVSEID: evseID, Latest: latest},
	})
}

// GetBroadcaster handles requests describing the status broadcaster
func (h *StatusHandler) GetBroadcaster(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Status broadcaster retrieved",
		Data: models.BroadcasterResponse{
			ID:      h.broadcaster.ID(),
			Enabled: h.broadcaster.IsEnabled(),
			Pushers: h.broadcaster.Pushers(),
		},
	})
}

// SetBroadcasterAdminStatus handles requests to enable or disable broadcasting
func (h *StatusHandler) SetBroadcasterAdminStatus(w http.ResponseWriter, r *http.Request) {
	var req models.AdminStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := wwcp.ValidateAdminStatus(req.Status); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid admin status", err)
		return
	}

	if req.Status == core.AvailabilityTypeOperative {
		h.broadcaster.Enable()
	} else {
		h.broadcaster.Disable()
	}
	h.log.Info("status broadcaster admin status changed", "status", req.Status)

	h.GetBroadcaster(w, r)
}
