package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"

	"wwcp-server/config"
	"wwcp-server/internal/logger"
	"wwcp-server/internal/mqtt"
	"wwcp-server/internal/registry"
	"wwcp-server/internal/state"
	"wwcp-server/internal/status"
)

const redisConnectTimeout = 5 * time.Second

// Server represents the WWCP server with all its components
type Server struct {
	config      *config.Config
	log         *logger.Logger
	httpServer  *http.Server
	registry    *registry.Registry
	broadcaster *status.Broadcaster
	statusStore *state.StatusStore
	redisClient *redis.Client
	mqttClient  paho.Client
	publisher   *mqtt.Publisher
}

// NewServer creates a new server instance. Redis and MQTT are optional; a
// Redis server that does not answer fails startup, an unreachable MQTT
// broker does not.
func NewServer(cfg *config.Config, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}

	server := &Server{
		config: cfg,
		log:    log.With("component", "server"),
	}

	server.registry = registry.New(registry.Options{
		SenderID:       cfg.SenderID,
		LockTimeout:    cfg.LockTimeout,
		CommandTimeout: cfg.CommandTimeout,
	}, log)

	pushers := []status.EVSEStatusPusher{server.registry}

	if cfg.RedisEnabled {
		redisConfig := state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			StateTTL: cfg.RedisStatusTTL,
		}

		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()

		client, err := state.NewRedisClient(ctx, redisConfig)
		if err != nil {
			return nil, err
		}
		server.redisClient = client
		server.statusStore = state.NewStatusStore(cfg.SenderID+"-redis", client, redisConfig, log)
		pushers = append(pushers, server.statusStore)
	}

	if cfg.MQTTEnabled {
		mqttConfig := mqtt.PublisherConfig{
			BrokerHost:     cfg.MQTTHost,
			BrokerPort:     cfg.MQTTPort,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			ClientID:       cfg.MQTTClientID,
			QoS:            cfg.MQTTQoS,
			Retained:       cfg.MQTTRetained,
			TopicPrefix:    cfg.MQTTTopicPrefix,
			PublishTimeout: cfg.MQTTPublishTimeout,
		}
		server.mqttClient = mqtt.NewClient(mqttConfig, log)
		server.publisher = mqtt.NewPublisher(cfg.SenderID+"-mqtt", server.mqttClient, mqttConfig, log)
		pushers = append(pushers, server.publisher)
	}

	server.broadcaster = status.NewBroadcaster(cfg.SenderID, status.Options{
		Parallelism: cfg.PushParallelism,
		Timeout:     cfg.PushTimeout,
	}, log, pushers...)

	server.setupHTTPAPI(cfg.HTTPPort)
	return server, nil
}

// Start connects to the MQTT broker and starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if s.mqttClient != nil {
		if err := mqtt.Connect(s.mqttClient); err != nil {
			// Don't fail the entire server startup if MQTT connection fails
			s.log.Warn("failed to connect to MQTT broker", "error", err)
		} else {
			s.log.Info("MQTT publisher connected successfully")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP API server listening", "port", s.config.HTTPPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	s.log.Info("server started",
		"senderId", s.config.SenderID,
		"pushers", s.broadcaster.Pushers())
	return nil
}

// Shutdown gracefully shuts down the server. Background status pushes are
// given until ctx is done to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping HTTP server: %w", err))
	}

	if err := s.broadcaster.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for status pushes: %w", err))
	}

	if s.mqttClient != nil {
		mqtt.Disconnect(s.mqttClient, s.log)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing Redis client: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Registry returns the infrastructure registry
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Broadcaster returns the EVSE status broadcaster
func (s *Server) Broadcaster() *status.Broadcaster {
	return s.broadcaster
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
