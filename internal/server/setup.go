package server

import (
	"net/http"

	"github.com/gorilla/mux"

	v1 "wwcp-server/internal/api/v1"
	"wwcp-server/internal/api/v1/handlers"
)

// setupHTTPAPI configures all HTTP API endpoints
func (s *Server) setupHTTPAPI(port string) {
	router := mux.NewRouter()

	// The status store is optional; a nil *StatusStore must not reach the
	// handler as a non-nil interface.
	var reader handlers.StatusReader
	if s.statusStore != nil {
		reader = s.statusStore
	}

	v1.RegisterRoutes(router, s.config.SenderID, s.registry, s.broadcaster, reader, s.log)

	s.httpServer = &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
}
