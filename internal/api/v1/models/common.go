package models

// APIResponse is the standard response format for all API endpoints
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData provides additional context for error responses
type ErrorData struct {
	Error string `json:"error,omitempty"`
	Field string `json:"field,omitempty"`
}
