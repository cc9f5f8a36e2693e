package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"wwcp-server/internal/api/v1/models"
	"wwcp-server/internal/helpers"
	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
)

// outcome is what single, bulk and push results have in common
type outcome interface {
	Code() results.ResultCode
	IsSuccess() bool
	Description() string
}

// statusCode maps a result code onto the HTTP status of its response
func statusCode(code results.ResultCode) int {
	switch code {
	case results.CodeSuccess, results.CodeNoOperation, results.CodeTrue:
		return http.StatusOK
	case results.CodeEnqueued:
		return http.StatusAccepted
	case results.CodePartial:
		return http.StatusMultiStatus
	case results.CodeArgumentError:
		return http.StatusBadRequest
	case results.CodeCanNotBeRemoved:
		return http.StatusConflict
	case results.CodeLockTimeout:
		return http.StatusLocked
	case results.CodeAdminDown, results.CodeOutOfService:
		return http.StatusServiceUnavailable
	case results.CodeTimeout:
		return http.StatusGatewayTimeout
	case results.CodeFailed, results.CodeFalse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requestOptions tags a result with the caller's event tracking id, taken
// from the request header or minted, and the caller's address
func requestOptions(r *http.Request) []results.Option {
	return []results.Option{
		results.WithEventTrackingID(helpers.EventTrackingID(r)),
		results.WithSender(r.RemoteAddr),
	}
}

// responder writes JSON responses for a handler and logs the ones that
// could not be encoded
type responder struct {
	log *logger.Logger
}

func newResponder(log *logger.Logger, handler string) responder {
	if log == nil {
		log = logger.Nop()
	}
	return responder{log: log.With("component", "api", "handler", handler)}
}

func (rs responder) sendJSON(w http.ResponseWriter, statusCode int, response interface{}) {
	if err := helpers.SendJSONResponse(w, statusCode, response); err != nil {
		rs.log.Error("failed to write response", "status", statusCode, "error", err)
	}
}

// sendResult writes result inside the standard envelope
func (rs responder) sendResult(w http.ResponseWriter, action string, result outcome) {
	message := fmt.Sprintf("%s: %s", action, result.Code())
	if !result.IsSuccess() && result.Description() != "" {
		message = fmt.Sprintf("%s: %s (%s)", action, result.Code(), result.Description())
	}

	rs.sendJSON(w, statusCode(result.Code()), models.APIResponse{
		Success: result.IsSuccess(),
		Message: message,
		Data:    result,
	})
}

// decodeJSON reads the request body into v and answers 400 if it is malformed
func (rs responder) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rs.sendJSON(w, http.StatusBadRequest, models.APIResponse{
			Success: false,
			Message: "Invalid request body",
			Data:    models.ErrorData{Error: err.Error()},
		})
		return false
	}
	return true
}

func (rs responder) sendError(w http.ResponseWriter, statusCode int, message string, err error) {
	response := models.APIResponse{
		Success: false,
		Message: message,
	}
	if err != nil {
		response.Data = models.ErrorData{Error: err.Error()}
	}
	rs.sendJSON(w, statusCode, response)
}
