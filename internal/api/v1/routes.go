package v1

import (
	"github.com/gorilla/mux"

	"wwcp-server/internal/api/v1/handlers"
	"wwcp-server/internal/logger"
)

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(
	router *mux.Router,
	senderID string,
	infrastructure handlers.Infrastructure,
	broadcaster handlers.StatusBroadcaster,
	reader handlers.StatusReader,
	log *logger.Logger,
) {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(senderID, log)
	infrastructureHandler := handlers.NewInfrastructureHandler(infrastructure, senderID, log)
	statusHandler := handlers.NewStatusHandler(broadcaster, reader, senderID, log)

	// Health and system endpoints
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	// V1 API endpoints
	v1Router := router.PathPrefix("/api/v1").Subrouter()

	// Operators
	v1Router.HandleFunc("/operators", infrastructureHandler.RegisterOperator).Methods("POST")
	v1Router.HandleFunc("/operators/{operatorID}/admin-status", infrastructureHandler.SetOperatorAdminStatus).Methods("PUT")

	// Charging pools
	v1Router.HandleFunc("/operators/{operatorID}/pools", infrastructureHandler.GetChargingPools).Methods("GET")
	v1Router.HandleFunc("/operators/{operatorID}/pools", infrastructureHandler.AddChargingPools).Methods("POST")
	v1Router.HandleFunc("/operators/{operatorID}/pools/{poolID}", infrastructureHandler.PutChargingPool).Methods("PUT")
	v1Router.HandleFunc("/operators/{operatorID}/pools/{poolID}", infrastructureHandler.DeleteChargingPool).Methods("DELETE")
	v1Router.HandleFunc("/pools/{poolID}/admin-status", infrastructureHandler.SetChargingPoolAdminStatus).Methods("PUT")

	// EVSEs
	v1Router.HandleFunc("/pools/{poolID}/evses", infrastructureHandler.GetEVSEs).Methods("GET")
	v1Router.HandleFunc("/pools/{poolID}/evses", infrastructureHandler.AddEVSEs).Methods("POST")
	v1Router.HandleFunc("/evses/{evseID}", infrastructureHandler.DeleteEVSE).Methods("DELETE")

	// EVSE status
	v1Router.HandleFunc("/evses/status", statusHandler.PushEVSEStatus).Methods("POST")
	v1Router.HandleFunc("/evses/{evseID}/status", statusHandler.GetEVSEStatus).Methods("GET")
	v1Router.HandleFunc("/status/broadcaster", statusHandler.GetBroadcaster).Methods("GET")
	v1Router.HandleFunc("/status/broadcaster/admin-status", statusHandler.SetBroadcasterAdminStatus).Methods("PUT")
}
