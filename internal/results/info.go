package results

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventTrackingID correlates every result produced while handling one request.
type EventTrackingID string

// NewEventTrackingID returns a fresh, process-unique tracking id.
func NewEventTrackingID() EventTrackingID {
	return EventTrackingID(uuid.New().String())
}

// EventTrackingIDOf returns the tracking id opts would assign, or a fresh one
// when they assign none.
func EventTrackingIDOf(opts ...Option) EventTrackingID {
	var i info
	for _, opt := range opts {
		if opt != nil {
			opt(&i)
		}
	}
	if i.eventTrackingID.IsZero() {
		return NewEventTrackingID()
	}
	return i.eventTrackingID
}

func (id EventTrackingID) String() string { return string(id) }

// IsZero reports whether no id was assigned.
func (id EventTrackingID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// Owner is the informational back-reference a result may carry, e.g. the
// operator owning a charging pool.
type Owner interface {
	OwnerID() string
}

// Option sets one of the optional fields shared by all result shapes.
type Option func(*info)

func WithSenderID(senderID string) Option {
	return func(i *info) { i.senderID = senderID }
}

// WithSender attaches an opaque reference to the invoking actor.
func WithSender(sender any) Option {
	return func(i *info) { i.sender = sender }
}

func WithEventTrackingID(id EventTrackingID) Option {
	return func(i *info) { i.eventTrackingID = id }
}

func WithDescription(description string) Option {
	return func(i *info) { i.description = description }
}

// WithWarnings appends warnings. Blank entries are dropped.
func WithWarnings(warnings ...string) Option {
	return func(i *info) { i.warnings = append(i.warnings, warnings...) }
}

func WithRuntime(runtime time.Duration) Option {
	return func(i *info) {
		i.runtime = runtime
		i.hasRuntime = true
	}
}

func WithOwner(owner Owner) Option {
	return func(i *info) { i.owner = owner }
}

// withFallbackDescription is used when the description is blank after all
// other options were applied.
func withFallbackDescription(description string) Option {
	return func(i *info) { i.fallback = description }
}

type info struct {
	senderID        string
	sender          any
	eventTrackingID EventTrackingID
	description     string
	fallback        string
	warnings        []string
	runtime         time.Duration
	hasRuntime      bool
	owner           Owner
}

func newInfo(opts []Option) info {
	var i info
	for _, opt := range opts {
		if opt != nil {
			opt(&i)
		}
	}
	i.description = strings.TrimSpace(i.description)
	if i.description == "" {
		i.description = strings.TrimSpace(i.fallback)
	}
	i.fallback = ""
	i.warnings = cleanWarnings(i.warnings)
	if i.eventTrackingID.IsZero() {
		i.eventTrackingID = NewEventTrackingID()
	}
	return i
}

// inherited returns the options a batch passes on to each of its per-entity
// results.
func (i info) inherited() []Option {
	opts := []Option{
		WithSenderID(i.senderID),
		WithSender(i.sender),
		WithEventTrackingID(i.eventTrackingID),
		WithDescription(i.description),
	}
	if i.owner != nil {
		opts = append(opts, WithOwner(i.owner))
	}
	return opts
}

func cleanWarnings(warnings []string) []string {
	cleaned := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w = strings.TrimSpace(w); w != "" {
			cleaned = append(cleaned, w)
		}
	}
	return cleaned
}

func (i info) SenderID() string                 { return i.senderID }
func (i info) Sender() any                      { return i.sender }
func (i info) EventTrackingID() EventTrackingID { return i.eventTrackingID }
func (i info) Description() string              { return i.description }
func (i info) Owner() Owner                     { return i.owner }

// Warnings returns a copy of the warnings.
func (i info) Warnings() []string {
	return append([]string(nil), i.warnings...)
}

// Runtime returns the duration of the operation, if it was recorded.
func (i info) Runtime() (time.Duration, bool) {
	return i.runtime, i.hasRuntime
}

func timeoutDescription(timeout time.Duration) string {
	return "Timeout after " + formatSeconds(timeout) + " seconds!"
}

func lockTimeoutDescription(timeout time.Duration) string {
	return "Lock timeout after " + formatSeconds(timeout) + " seconds!"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func errorDescription(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// with appends to a caller's option slice without writing into its backing
// array.
func with(opts []Option, more ...Option) []Option {
	return append(opts[:len(opts):len(opts)], more...)
}

type infoJSON struct {
	SenderID        string          `json:"senderId,omitempty"`
	EventTrackingID EventTrackingID `json:"eventTrackingId"`
	Description     string          `json:"description,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	RuntimeMs       *int64          `json:"runtimeMs,omitempty"`
	Owner           string          `json:"owner,omitempty"`
}

func (i info) toJSON() infoJSON {
	out := infoJSON{
		SenderID:        i.senderID,
		EventTrackingID: i.eventTrackingID,
		Description:     i.description,
		Warnings:        i.warnings,
	}
	if i.hasRuntime {
		ms := i.runtime.Milliseconds()
		out.RuntimeMs = &ms
	}
	if i.owner != nil {
		out.Owner = i.owner.OwnerID()
	}
	return out
}
