package results

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUpdate struct {
	EVSE   string `json:"evse"`
	Status string `json:"status"`
}

type testActor struct{ id string }

func (a testActor) ID() string { return a.id }

var (
	mqttActor  = SentBy(testActor{id: "mqtt"})
	redisActor = ReceivedBy(testActor{id: "redis"})
)

func TestActor_ExactlyOneSide(t *testing.T) {
	sender, ok := mqttActor.Sender()
	assert.True(t, ok)
	assert.Equal(t, "mqtt", sender.ID())
	_, ok = mqttActor.Receiver()
	assert.False(t, ok)
	assert.Equal(t, ActorSender, mqttActor.Kind())

	receiver, ok := redisActor.Receiver()
	assert.True(t, ok)
	assert.Equal(t, "redis", receiver.ID())
	_, ok = redisActor.Sender()
	assert.False(t, ok)
	assert.Equal(t, "redis", redisActor.ID())

	assert.Equal(t, "", Actor{}.ID())
}

func TestPushFactories(t *testing.T) {
	rejected := []testUpdate{{EVSE: "E1", Status: "Faulted"}}

	assert.Equal(t, CodeSuccess, PushSuccess[testUpdate]("cso", mqttActor).Code())
	assert.Equal(t, CodeEnqueued, PushEnqueued[testUpdate]("cso", mqttActor).Code())
	assert.Equal(t, CodeNoOperation, PushNoOperation[testUpdate]("cso", mqttActor).Code())
	assert.Equal(t, CodeAdminDown, PushAdminDown("cso", mqttActor, rejected).Code())
	assert.Equal(t, CodeOutOfService, PushOutOfService("cso", mqttActor, rejected).Code())
	assert.Equal(t, CodeFailed, PushFailed("cso", mqttActor, rejected).Code())

	errResult := PushErrorFrom("cso", mqttActor, errors.New("broker gone"), rejected)
	assert.Equal(t, CodeError, errResult.Code())
	assert.Equal(t, "broker gone", errResult.Description())
	assert.Equal(t, rejected, errResult.RejectedUpdates())

	timeout := PushTimeout("cso", redisActor, 5*time.Second, rejected)
	assert.Equal(t, "Timeout after 5 seconds!", timeout.Description())
	lock := PushLockTimeout("cso", redisActor, time.Second, rejected)
	assert.Equal(t, "Lock timeout after 1 seconds!", lock.Description())

	success := PushSuccess[testUpdate]("cso", mqttActor)
	assert.NotNil(t, success.RejectedUpdates())
	assert.Empty(t, success.RejectedUpdates())
	assert.Equal(t, "cso", success.SenderID())
}

func TestPushResult_RejectedIsCopied(t *testing.T) {
	rejected := []testUpdate{{EVSE: "E1"}}
	result := PushError("cso", mqttActor, rejected)

	rejected[0].EVSE = "changed"
	assert.Equal(t, "E1", result.RejectedUpdates()[0].EVSE)
}

func TestFlatten_EmptyInput(t *testing.T) {
	result := Flatten[testUpdate]("cso", mqttActor, nil, time.Second)

	assert.Equal(t, CodeError, result.Code())
	assert.Equal(t, "!", result.Description())
	assert.Empty(t, result.RejectedUpdates())
	assert.Empty(t, result.Warnings())
	assert.Equal(t, "cso", result.SenderID())
}

func TestFlatten_Unanimous(t *testing.T) {
	items := []PushStatusResult[testUpdate]{
		PushSuccess[testUpdate]("first", mqttActor, WithDescription("one"), WithWarnings("w1")),
		PushSuccess[testUpdate]("second", redisActor),
		PushSuccess[testUpdate]("third", mqttActor, WithDescription("three"), WithWarnings("w3")),
	}

	result := Flatten("cso", mqttActor, items, 3*time.Second)

	assert.Equal(t, CodeSuccess, result.Code())
	assert.Equal(t, "one\nthree", result.Description())
	assert.Equal(t, []string{"w1", "w3"}, result.Warnings())
	assert.Equal(t, "first", result.SenderID())
	runtime, ok := result.Runtime()
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, runtime)
	assert.Equal(t, ActorSender, result.Actor().Kind())
}

func TestFlatten_UnanimousDescriptions(t *testing.T) {
	items := []PushStatusResult[testUpdate]{
		PushSuccess[testUpdate]("a", mqttActor, WithDescription("d1")),
		PushSuccess[testUpdate]("b", mqttActor, WithDescription("d2")),
		PushSuccess[testUpdate]("c", mqttActor, WithDescription("d3")),
	}

	result := Flatten("cso", mqttActor, items, 0)

	assert.Equal(t, CodeSuccess, result.Code())
	assert.Equal(t, "d1\nd2\nd3", result.Description())
}

func TestFlatten_Mixed(t *testing.T) {
	items := []PushStatusResult[testUpdate]{
		PushSuccess[testUpdate]("a", mqttActor),
		PushError("b", redisActor, []testUpdate{{EVSE: "E1"}, {EVSE: "E2"}}),
		PushSuccess[testUpdate]("c", mqttActor),
	}

	result := Flatten("cso", mqttActor, items, time.Second)

	assert.Equal(t, CodePartial, result.Code())
	assert.Equal(t, "cso", result.SenderID())
	assert.Equal(t, []testUpdate{{EVSE: "E1"}, {EVSE: "E2"}}, result.RejectedUpdates())
}

func TestFlatten_ConcatenatesRejectedInOrder(t *testing.T) {
	items := []PushStatusResult[testUpdate]{
		PushFailed("a", mqttActor, []testUpdate{{EVSE: "E1"}}),
		PushFailed("b", mqttActor, []testUpdate{{EVSE: "E2"}, {EVSE: "E1"}}),
	}

	result := Flatten("cso", mqttActor, items, 0)

	assert.Equal(t, CodeFailed, result.Code())
	assert.Equal(t, []testUpdate{{EVSE: "E1"}, {EVSE: "E2"}, {EVSE: "E1"}}, result.RejectedUpdates())
}

func TestFlatten_KeepsEventTrackingID(t *testing.T) {
	items := []PushStatusResult[testUpdate]{
		PushSuccess[testUpdate]("a", mqttActor, WithEventTrackingID("evt-7")),
		PushFailed("b", redisActor, []testUpdate{{EVSE: "E1"}}, WithEventTrackingID("evt-7")),
	}

	result := Flatten("cso", mqttActor, items, 0, WithEventTrackingID("evt-7"))
	assert.Equal(t, EventTrackingID("evt-7"), result.EventTrackingID())

	empty := Flatten[testUpdate]("cso", mqttActor, nil, 0, WithEventTrackingID("evt-8"))
	assert.Equal(t, EventTrackingID("evt-8"), empty.EventTrackingID())
	assert.Equal(t, "!", empty.Description())
}

func TestEventTrackingIDOf(t *testing.T) {
	assert.Equal(t, EventTrackingID("evt-1"),
		EventTrackingIDOf(WithDescription("x"), WithEventTrackingID("evt-1")))

	fresh := EventTrackingIDOf(WithEventTrackingID("  "))
	assert.False(t, fresh.IsZero())
	assert.NotEqual(t, fresh, EventTrackingIDOf())
}

func TestPushResult_MarshalJSON(t *testing.T) {
	result := PushFailed("cso", redisActor, []testUpdate{{EVSE: "E1", Status: "Faulted"}},
		WithDescription("rejected"), WithEventTrackingID("evt-9"))

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded struct {
		Actor           string       `json:"actor"`
		ActorKind       string       `json:"actorKind"`
		Code            ResultCode   `json:"code"`
		RejectedUpdates []testUpdate `json:"rejectedUpdates"`
		SenderID        string       `json:"senderId"`
		EventTrackingID string       `json:"eventTrackingId"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "redis", decoded.Actor)
	assert.Equal(t, "receiver", decoded.ActorKind)
	assert.Equal(t, CodeFailed, decoded.Code)
	assert.Equal(t, []testUpdate{{EVSE: "E1", Status: "Faulted"}}, decoded.RejectedUpdates)
	assert.Equal(t, "cso", decoded.SenderID)
	assert.Equal(t, "evt-9", decoded.EventTrackingID)
}
