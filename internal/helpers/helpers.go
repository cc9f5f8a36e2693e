package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"wwcp-server/internal/results"
)

// EventTrackingHeader carries a caller supplied event tracking id
const EventTrackingHeader = "X-Event-Tracking-Id"

// EventTrackingID returns the tracking id sent by the caller or a new one
func EventTrackingID(r *http.Request) results.EventTrackingID {
	if id := strings.TrimSpace(r.Header.Get(EventTrackingHeader)); id != "" {
		return results.EventTrackingID(id)
	}
	return results.NewEventTrackingID()
}

// SendJSONResponse sends a JSON response with the given status code. The
// status line is already written when an encoding error is returned.
func SendJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("error encoding JSON response: %w", err)
	}
	return nil
}
