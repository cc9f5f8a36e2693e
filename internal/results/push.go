package results

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// StatusSender is an actor that pushes status updates to others.
type StatusSender interface {
	ID() string
}

// StatusReceiver is an actor that accepts status updates pushed to it.
type StatusReceiver interface {
	ID() string
}

type ActorKind uint8

const (
	ActorUnknown ActorKind = iota
	ActorSender
	ActorReceiver
)

func (k ActorKind) String() string {
	switch k {
	case ActorSender:
		return "sender"
	case ActorReceiver:
		return "receiver"
	}
	return "unknown"
}

// Actor identifies which side of a status push produced a result. Exactly one
// of sender and receiver is set.
type Actor struct {
	kind     ActorKind
	sender   StatusSender
	receiver StatusReceiver
}

func SentBy(sender StatusSender) Actor {
	return Actor{kind: ActorSender, sender: sender}
}

func ReceivedBy(receiver StatusReceiver) Actor {
	return Actor{kind: ActorReceiver, receiver: receiver}
}

func (a Actor) Kind() ActorKind { return a.kind }

func (a Actor) Sender() (StatusSender, bool) {
	return a.sender, a.kind == ActorSender
}

func (a Actor) Receiver() (StatusReceiver, bool) {
	return a.receiver, a.kind == ActorReceiver
}

// ID returns the identity of whichever actor is set.
func (a Actor) ID() string {
	switch {
	case a.kind == ActorSender && a.sender != nil:
		return a.sender.ID()
	case a.kind == ActorReceiver && a.receiver != nil:
		return a.receiver.ID()
	}
	return ""
}

// PushStatusResult is the outcome of pushing status updates of type U to or
// from one actor. Rejected holds the updates the actor did not accept.
type PushStatusResult[U any] struct {
	info
	actor    Actor
	code     ResultCode
	rejected []U
}

func (p PushStatusResult[U]) Actor() Actor     { return p.actor }
func (p PushStatusResult[U]) Code() ResultCode { return p.code }
func (p PushStatusResult[U]) IsSuccess() bool  { return p.code.IsSuccess() }

// RejectedUpdates returns a copy of the rejected updates.
func (p PushStatusResult[U]) RejectedUpdates() []U {
	return append([]U{}, p.rejected...)
}

func (p PushStatusResult[U]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Actor           string     `json:"actor,omitempty"`
		ActorKind       string     `json:"actorKind"`
		Code            ResultCode `json:"code"`
		RejectedUpdates []U        `json:"rejectedUpdates"`
		infoJSON
	}{
		Actor:           p.actor.ID(),
		ActorKind:       p.actor.kind.String(),
		Code:            p.code,
		RejectedUpdates: p.rejected,
		infoJSON:        p.info.toJSON(),
	})
}

func newPush[U any](senderID string, actor Actor, code ResultCode, rejected []U, opts []Option) PushStatusResult[U] {
	i := newInfo(opts)
	i.senderID = senderID
	return PushStatusResult[U]{
		info:     i,
		actor:    actor,
		code:     code,
		rejected: append([]U{}, rejected...),
	}
}

func PushSuccess[U any](senderID string, actor Actor, opts ...Option) PushStatusResult[U] {
	return newPush[U](senderID, actor, CodeSuccess, nil, opts)
}

func PushEnqueued[U any](senderID string, actor Actor, opts ...Option) PushStatusResult[U] {
	return newPush[U](senderID, actor, CodeEnqueued, nil, opts)
}

func PushNoOperation[U any](senderID string, actor Actor, opts ...Option) PushStatusResult[U] {
	return newPush[U](senderID, actor, CodeNoOperation, nil, opts)
}

func PushAdminDown[U any](senderID string, actor Actor, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeAdminDown, rejected, opts)
}

func PushOutOfService[U any](senderID string, actor Actor, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeOutOfService, rejected, opts)
}

func PushError[U any](senderID string, actor Actor, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeError, rejected, opts)
}

// PushErrorFrom derives the description from err unless one is given.
func PushErrorFrom[U any](senderID string, actor Actor, err error, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeError, rejected,
		with(opts, withFallbackDescription(errorDescription(err))))
}

func PushFailed[U any](senderID string, actor Actor, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeFailed, rejected, opts)
}

func PushTimeout[U any](senderID string, actor Actor, timeout time.Duration, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeTimeout, rejected,
		with(opts, withFallbackDescription(timeoutDescription(timeout))))
}

func PushLockTimeout[U any](senderID string, actor Actor, timeout time.Duration, rejected []U, opts ...Option) PushStatusResult[U] {
	return newPush(senderID, actor, CodeLockTimeout, rejected,
		with(opts, withFallbackDescription(lockTimeoutDescription(timeout))))
}

// TimeoutOf returns how long ctx still grants, or fallback when ctx has no
// deadline. Pushers take it when they start so a Timeout result names the
// deadline they were given. The value is rounded to centiseconds.
func TimeoutOf(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	if d := time.Until(deadline).Round(10 * time.Millisecond); d > 0 {
		return d
	}
	return 0
}

// Flatten reduces the results of one status push that was fanned out to
// several actors into a single result.
//
// No results yield an Error with description "!". If every result carries the
// same code, that code is kept and the first result's sender id represents the
// group; otherwise the code is Partial. Descriptions are joined by line
// breaks, rejected updates and warnings are concatenated in input order.
// opts, e.g. the event tracking id of the push, apply to the flattened result.
func Flatten[U any](senderID string, actor Actor, items []PushStatusResult[U], runtime time.Duration, opts ...Option) PushStatusResult[U] {
	if len(items) == 0 {
		return newPush[U](senderID, actor, CodeError, nil,
			with(opts, WithDescription("!"), WithRuntime(runtime)))
	}

	groups := make(map[ResultCode]int)
	descriptions := make([]string, 0, len(items))
	var rejected []U
	var warnings []string

	for _, item := range items {
		groups[item.code]++
		if item.description != "" {
			descriptions = append(descriptions, item.description)
		}
		rejected = append(rejected, item.rejected...)
		warnings = append(warnings, item.warnings...)
	}

	opts = with(opts,
		WithDescription(strings.Join(descriptions, "\n")),
		WithWarnings(warnings...),
		WithRuntime(runtime),
	)

	// Map order is irrelevant: a group can only match when it holds every item.
	for code, count := range groups {
		if count == len(items) {
			return newPush(items[0].senderID, actor, code, rejected, opts)
		}
	}
	return newPush(senderID, actor, CodePartial, rejected, opts)
}
