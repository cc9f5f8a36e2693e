package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
	"wwcp-server/models"
)

const defaultPublishTimeout = 5 * time.Second

// PublisherConfig holds the MQTT publisher configuration
type PublisherConfig struct {
	BrokerHost     string
	BrokerPort     int
	Username       string
	Password       string
	ClientID       string
	QoS            byte
	Retained       bool
	TopicPrefix    string        // topics are {prefix}/evse/{evseId}/status
	PublishTimeout time.Duration // how long to wait for the broker to acknowledge one update
}

// Client is the part of the paho client the publisher uses
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher pushes EVSE status updates to an MQTT broker and reports the
// outcome as a status push result sent by itself.
type Publisher struct {
	id     string
	client Client
	config PublisherConfig
	log    *logger.Logger
	now    func() time.Time
}

// StatusEvent represents the MQTT payload of one EVSE status update
type StatusEvent struct {
	Timestamp       time.Time               `json:"timestamp"`
	SenderID        string                  `json:"senderId"`
	EventType       string                  `json:"eventType"`
	EventTrackingID results.EventTrackingID `json:"eventTrackingId"`
	Payload         models.EVSEStatusUpdate `json:"payload"`
}

// NewClient creates the paho client for config. It is not connected yet.
func NewClient(config PublisherConfig, log *logger.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", config.BrokerHost, config.BrokerPort)
	opts.AddBroker(brokerURL)
	opts.SetClientID(config.ClientID)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(30 * time.Second)
	opts.SetMaxReconnectInterval(5 * time.Minute)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info("MQTT client connected", "broker", brokerURL)
	})

	return mqtt.NewClient(opts)
}

// Connect establishes connection to the MQTT broker
func Connect(client mqtt.Client) error {
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the connection to the MQTT broker
func Disconnect(client mqtt.Client, log *logger.Logger) {
	if client.IsConnected() {
		client.Disconnect(250)
		log.Info("MQTT client disconnected")
	}
}

// NewPublisher creates a new MQTT publisher instance
func NewPublisher(id string, client Client, config PublisherConfig, log *logger.Logger) *Publisher {
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaultPublishTimeout
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = "wwcp"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{
		id:     id,
		client: client,
		config: config,
		log:    log.With("component", "mqtt", "publisher", id),
		now:    time.Now,
	}
}

func (p *Publisher) ID() string { return p.id }

// IsConnected checks if the MQTT client is connected
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

func (p *Publisher) statusTopic(id models.EVSEID) string {
	return fmt.Sprintf("%s/evse/%s/status", p.config.TopicPrefix, id)
}

// PushEVSEStatus publishes every update and waits for the broker to
// acknowledge it. A publish that is not acknowledged within the publish
// timeout aborts the push; the update and all that follow it are rejected.
// Every published event carries the push's event tracking id.
func (p *Publisher) PushEVSEStatus(ctx context.Context, senderID string, updates []models.EVSEStatusUpdate, opts ...results.Option) results.PushStatusResult[models.EVSEStatusUpdate] {
	start := p.now()
	actor := results.SentBy(p)
	trackingID := results.EventTrackingIDOf(opts...)
	deadline := results.TimeoutOf(ctx, p.config.PublishTimeout)

	outcome := func(own ...results.Option) []results.Option {
		own = append(own, results.WithRuntime(p.now().Sub(start)))
		own = append(own, opts...)
		return append(own, results.WithEventTrackingID(trackingID))
	}

	if len(updates) == 0 {
		return results.PushNoOperation[models.EVSEStatusUpdate](senderID, actor, outcome()...)
	}

	if !p.client.IsConnected() {
		p.log.Warn("MQTT client is not connected", "updates", len(updates))
		return results.PushOutOfService(senderID, actor, updates,
			outcome(results.WithDescription("MQTT client is not connected"))...)
	}

	var rejected []models.EVSEStatusUpdate
	var warnings []string

	for i, update := range updates {
		if err := ctx.Err(); err != nil {
			rejected = append(rejected, updates[i:]...)
			if errors.Is(err, context.DeadlineExceeded) {
				return results.PushTimeout(senderID, actor, deadline, rejected,
					outcome(results.WithWarnings(warnings...))...)
			}
			return results.PushErrorFrom(senderID, actor, err, rejected,
				outcome(results.WithWarnings(warnings...))...)
		}

		payload, err := json.Marshal(StatusEvent{
			Timestamp:       p.now(),
			SenderID:        senderID,
			EventType:       "evse_status_changed",
			EventTrackingID: trackingID,
			Payload:         update,
		})
		if err != nil {
			rejected = append(rejected, update)
			warnings = append(warnings, fmt.Sprintf("failed to marshal status of EVSE %s: %v", update.EVSEID, err))
			continue
		}

		topic := p.statusTopic(update.EVSEID)
		token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)

		if !token.WaitTimeout(p.config.PublishTimeout) {
			rejected = append(rejected, updates[i:]...)
			p.log.Warn("timeout waiting for MQTT publish to complete", "topic", topic)
			return results.PushTimeout(senderID, actor, p.config.PublishTimeout, rejected,
				outcome(results.WithWarnings(warnings...))...)
		}
		if err := token.Error(); err != nil {
			rejected = append(rejected, update)
			warnings = append(warnings, fmt.Sprintf("failed to publish status of EVSE %s: %v", update.EVSEID, err))
			continue
		}

		p.log.Debug("published EVSE status", "topic", topic, "status", update.NewStatus, "eventTrackingId", trackingID)
	}

	if len(rejected) > 0 {
		p.log.Warn("EVSE status updates rejected", "rejected", len(rejected), "updates", len(updates))
		return results.PushFailed(senderID, actor, rejected, outcome(
			results.WithDescription(fmt.Sprintf("%d of %d EVSE status updates not published", len(rejected), len(updates))),
			results.WithWarnings(warnings...))...)
	}

	return results.PushSuccess[models.EVSEStatusUpdate](senderID, actor, outcome()...)
}
