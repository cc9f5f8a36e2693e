package results

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity is a domain object a command can be applied to.
type Entity[ID comparable] interface {
	EntityID() ID
}

// Target is the subject of a single result: either a resolved entity or, when
// the command failed before the entity could be resolved, its bare id.
type Target[E Entity[ID], ID comparable] struct {
	entity   E
	id       ID
	resolved bool
}

// Resolved targets a live entity.
func Resolved[E Entity[ID], ID comparable](entity E) Target[E, ID] {
	return Target[E, ID]{entity: entity, id: entity.EntityID(), resolved: true}
}

// Unresolved targets an entity known only by its id.
func Unresolved[E Entity[ID], ID comparable](id ID) Target[E, ID] {
	return Target[E, ID]{id: id}
}

// Entity returns the entity and true when the target is resolved.
func (t Target[E, ID]) Entity() (E, bool) {
	return t.entity, t.resolved
}

func (t Target[E, ID]) ID() ID           { return t.id }
func (t Target[E, ID]) IsResolved() bool { return t.resolved }

// Result is the immutable outcome of one command against one entity.
type Result[E Entity[ID], ID comparable] struct {
	info
	target         Target[E, ID]
	command        Command
	code           ResultCode
	addedOrUpdated AddedOrUpdated
}

func (r Result[E, ID]) Target() Target[E, ID] { return r.target }
func (r Result[E, ID]) Entity() (E, bool)     { return r.target.Entity() }
func (r Result[E, ID]) ID() ID                { return r.target.ID() }
func (r Result[E, ID]) Command() Command      { return r.command }
func (r Result[E, ID]) Code() ResultCode      { return r.code }
func (r Result[E, ID]) IsSuccess() bool       { return r.code.IsSuccess() }

// AddedOrUpdated is only meaningful for results of the AddOrUpdate command.
func (r Result[E, ID]) AddedOrUpdated() AddedOrUpdated { return r.addedOrUpdated }

func (r Result[E, ID]) String() string {
	if r.description == "" {
		return fmt.Sprintf("%s %v: %s", r.command, r.target.id, r.code)
	}
	return fmt.Sprintf("%s %v: %s (%s)", r.command, r.target.id, r.code, r.description)
}

func (r Result[E, ID]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID             string         `json:"id"`
		Resolved       bool           `json:"resolved"`
		Command        Command        `json:"command"`
		Code           ResultCode     `json:"code"`
		AddedOrUpdated AddedOrUpdated `json:"addedOrUpdated,omitempty"`
		infoJSON
	}{
		ID:             fmt.Sprint(r.target.id),
		Resolved:       r.target.resolved,
		Command:        r.command,
		Code:           r.code,
		AddedOrUpdated: r.addedOrUpdated,
		infoJSON:       r.info.toJSON(),
	})
}

// Factory stamps results for one command over one entity type. The zero
// value is not useful; use NewFactory.
type Factory[E Entity[ID], ID comparable] struct {
	command Command
}

func NewFactory[E Entity[ID], ID comparable](command Command) Factory[E, ID] {
	return Factory[E, ID]{command: command}
}

func (f Factory[E, ID]) Command() Command { return f.command }

// Entity builds a resolved target.
func (f Factory[E, ID]) Entity(entity E) Target[E, ID] { return Resolved[E, ID](entity) }

// ID builds an unresolved target.
func (f Factory[E, ID]) ID(id ID) Target[E, ID] { return Unresolved[E, ID](id) }

func (f Factory[E, ID]) newResult(target Target[E, ID], code ResultCode, tag AddedOrUpdated, opts []Option) Result[E, ID] {
	if f.command != CommandAddOrUpdate {
		tag = AddedOrUpdatedUnspecified
	} else if tag == AddedOrUpdatedUnspecified {
		tag = upsertTag(code)
	}
	return Result[E, ID]{
		info:           newInfo(opts),
		target:         target,
		command:        f.command,
		code:           code,
		addedOrUpdated: tag,
	}
}

func (f Factory[E, ID]) AdminDown(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeAdminDown, AddedOrUpdatedUnspecified, opts)
}

func (f Factory[E, ID]) OutOfService(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeOutOfService, AddedOrUpdatedUnspecified, opts)
}

func (f Factory[E, ID]) NoOperation(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeNoOperation, AddedOrUpdatedUnspecified, opts)
}

func (f Factory[E, ID]) Enqueued(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeEnqueued, AddedOrUpdatedUnspecified, opts)
}

func (f Factory[E, ID]) Success(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeSuccess, AddedOrUpdatedUnspecified, opts)
}

// Added is a success that, for upserts, records that the entity was created.
func (f Factory[E, ID]) Added(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeSuccess, AddedOrUpdatedAdd, opts)
}

// Updated is a success that, for upserts, records that an existing entity
// was modified.
func (f Factory[E, ID]) Updated(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeSuccess, AddedOrUpdatedUpdate, opts)
}

func (f Factory[E, ID]) ArgumentError(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeArgumentError, AddedOrUpdatedUnspecified, opts)
}

func (f Factory[E, ID]) Error(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeError, AddedOrUpdatedUnspecified, opts)
}

// ErrorFrom is an Error whose description is the message of err. An explicit
// WithDescription option takes precedence.
func (f Factory[E, ID]) ErrorFrom(target Target[E, ID], err error, opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeError, AddedOrUpdatedUnspecified,
		with(opts, withFallbackDescription(errorDescription(err))))
}

func (f Factory[E, ID]) Timeout(target Target[E, ID], timeout time.Duration, opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeTimeout, AddedOrUpdatedUnspecified,
		with(opts, withFallbackDescription(timeoutDescription(timeout))))
}

func (f Factory[E, ID]) LockTimeout(target Target[E, ID], timeout time.Duration, opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeLockTimeout, AddedOrUpdatedUnspecified,
		with(opts, withFallbackDescription(lockTimeoutDescription(timeout))))
}

func (f Factory[E, ID]) CanNotBeRemoved(target Target[E, ID], opts ...Option) Result[E, ID] {
	return f.newResult(target, CodeCanNotBeRemoved, AddedOrUpdatedUnspecified, opts)
}
