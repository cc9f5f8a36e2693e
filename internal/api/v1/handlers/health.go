package handlers

import (
	"net/http"
	"time"

	"wwcp-server/internal/api/v1/models"
	"wwcp-server/internal/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	responder
	senderID string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(senderID string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{responder: newResponder(log, "health"), senderID: senderID}
}

// Health handles health check requests
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := models.APIResponse{
		Success: true,
		Message: "WWCP Server is running",
		Data: map[string]interface{}{
			"senderId":  h.senderID,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.sendJSON(w, http.StatusOK, response)
}
