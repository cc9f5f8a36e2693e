package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
	"wwcp-server/models"
)

// MockClient is a mock implementation of Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}

// fakeToken is a completed (or never completing) publish token
type fakeToken struct {
	completed bool
	err       error
}

func (t *fakeToken) Wait() bool                     { return t.completed }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completed {
		close(ch)
	}
	return ch
}

func testUpdates() []models.EVSEStatusUpdate {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.EVSEStatusUpdate{
		models.NewEVSEStatusUpdate("DE*GEF*E1", core.ChargePointStatusAvailable, core.ChargePointStatusCharging, at),
		models.NewEVSEStatusUpdate("DE*GEF*E2", core.ChargePointStatusCharging, core.ChargePointStatusFinishing, at),
	}
}

func newTestPublisher(client Client) *Publisher {
	return NewPublisher("mqtt-test", client, PublisherConfig{QoS: 1, TopicPrefix: "wwcp"}, logger.Nop())
}

func TestPushEVSEStatus_AllPublished(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(true)
	client.On("Publish", "wwcp/evse/DE*GEF*E1/status", byte(1), false, mock.Anything).Return(&fakeToken{completed: true})
	client.On("Publish", "wwcp/evse/DE*GEF*E2/status", byte(1), false, mock.Anything).Return(&fakeToken{completed: true})

	result := newTestPublisher(client).PushEVSEStatus(context.Background(), "backend", testUpdates())

	assert.Equal(t, results.CodeSuccess, result.Code())
	assert.Equal(t, results.ActorSender, result.Actor().Kind())
	assert.Equal(t, "mqtt-test", result.Actor().ID())
	assert.Equal(t, "backend", result.SenderID())
	assert.Empty(t, result.RejectedUpdates())
	client.AssertExpectations(t)

	payload := client.Calls[1].Arguments.Get(3).([]byte)
	var event StatusEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "evse_status_changed", event.EventType)
	assert.Equal(t, result.EventTrackingID(), event.EventTrackingID)
	assert.Equal(t, core.ChargePointStatusCharging, event.Payload.NewStatus)
}

func TestPushEVSEStatus_PublishError(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(true)
	client.On("Publish", "wwcp/evse/DE*GEF*E1/status", byte(1), false, mock.Anything).Return(&fakeToken{completed: true})
	client.On("Publish", "wwcp/evse/DE*GEF*E2/status", byte(1), false, mock.Anything).
		Return(&fakeToken{completed: true, err: errors.New("not authorized")})

	updates := testUpdates()
	result := newTestPublisher(client).PushEVSEStatus(context.Background(), "backend", updates)

	assert.Equal(t, results.CodeFailed, result.Code())
	assert.Equal(t, updates[1:], result.RejectedUpdates())
	require.Len(t, result.Warnings(), 1)
	assert.Contains(t, result.Warnings()[0], "not authorized")
	assert.Equal(t, "1 of 2 EVSE status updates not published", result.Description())
}

func TestPushEVSEStatus_Timeout(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(true)
	client.On("Publish", "wwcp/evse/DE*GEF*E1/status", byte(1), false, mock.Anything).Return(&fakeToken{completed: false})

	updates := testUpdates()
	result := newTestPublisher(client).PushEVSEStatus(context.Background(), "backend", updates)

	assert.Equal(t, results.CodeTimeout, result.Code())
	assert.Equal(t, updates, result.RejectedUpdates())
	assert.Equal(t, "Timeout after 5 seconds!", result.Description())
	client.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPushEVSEStatus_NotConnected(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(false)

	updates := testUpdates()
	result := newTestPublisher(client).PushEVSEStatus(context.Background(), "backend", updates)

	assert.Equal(t, results.CodeOutOfService, result.Code())
	assert.Equal(t, updates, result.RejectedUpdates())
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPushEVSEStatus_NoUpdates(t *testing.T) {
	client := new(MockClient)

	result := newTestPublisher(client).PushEVSEStatus(context.Background(), "backend", nil)

	assert.Equal(t, results.CodeNoOperation, result.Code())
	client.AssertNotCalled(t, "IsConnected")
}

func TestPushEVSEStatus_ContextCancelled(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	updates := testUpdates()
	result := newTestPublisher(client).PushEVSEStatus(ctx, "backend", updates)

	assert.Equal(t, results.CodeError, result.Code())
	assert.Equal(t, updates, result.RejectedUpdates())
	assert.Equal(t, "context canceled", result.Description())
}

func TestPushEVSEStatus_DeadlineBetweenUpdates(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(true)
	client.On("Publish", "wwcp/evse/DE*GEF*E1/status", byte(1), false, mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(250 * time.Millisecond) }).
		Return(&fakeToken{completed: true})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	updates := testUpdates()
	result := newTestPublisher(client).PushEVSEStatus(ctx, "backend", updates)

	assert.Equal(t, results.CodeTimeout, result.Code())
	assert.Equal(t, "Timeout after 0.2 seconds!", result.Description())
	assert.Equal(t, updates[1:], result.RejectedUpdates())
	client.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPushEVSEStatus_EventTrackingIDFromCaller(t *testing.T) {
	client := new(MockClient)
	client.On("IsConnected").Return(true)
	client.On("Publish", mock.Anything, byte(1), false, mock.Anything).Return(&fakeToken{completed: true})

	result := newTestPublisher(client).PushEVSEStatus(context.Background(), "backend", testUpdates(),
		results.WithEventTrackingID("evt-42"))

	assert.Equal(t, results.CodeSuccess, result.Code())
	assert.Equal(t, results.EventTrackingID("evt-42"), result.EventTrackingID())
	for _, call := range client.Calls {
		if call.Method != "Publish" {
			continue
		}
		var event StatusEvent
		require.NoError(t, json.Unmarshal(call.Arguments.Get(3).([]byte), &event))
		assert.Equal(t, results.EventTrackingID("evt-42"), event.EventTrackingID)
	}
}
