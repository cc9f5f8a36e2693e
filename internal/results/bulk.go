package results

import (
	"encoding/json"
	"time"
)

// BulkResult is the immutable outcome of one command against a batch of
// entities. Successful and Rejected are never nil.
type BulkResult[E Entity[ID], ID comparable] struct {
	info
	command    Command
	code       ResultCode
	successful []Result[E, ID]
	rejected   []Result[E, ID]
}

func (b BulkResult[E, ID]) Command() Command { return b.command }
func (b BulkResult[E, ID]) Code() ResultCode { return b.code }
func (b BulkResult[E, ID]) IsSuccess() bool  { return b.code.IsSuccess() }

// Successful returns a copy of the results considered successful.
func (b BulkResult[E, ID]) Successful() []Result[E, ID] {
	return append([]Result[E, ID]{}, b.successful...)
}

// Rejected returns a copy of the results considered failed.
func (b BulkResult[E, ID]) Rejected() []Result[E, ID] {
	return append([]Result[E, ID]{}, b.rejected...)
}

// Len is the number of entities the batch covered.
func (b BulkResult[E, ID]) Len() int { return len(b.successful) + len(b.rejected) }

func (b BulkResult[E, ID]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command    Command         `json:"command"`
		Code       ResultCode      `json:"code"`
		Successful []Result[E, ID] `json:"successful"`
		Rejected   []Result[E, ID] `json:"rejected"`
		infoJSON
	}{
		Command:    b.command,
		Code:       b.code,
		Successful: b.successful,
		Rejected:   b.rejected,
		infoJSON:   b.info.toJSON(),
	})
}

// bulk maps every entity through the single-result factory for code. All
// per-entity results share the batch's event tracking id and sender.
func (f Factory[E, ID]) bulk(code ResultCode, tag AddedOrUpdated, entities []E, opts []Option) BulkResult[E, ID] {
	batch := newInfo(opts)
	inherited := batch.inherited()

	mapped := make([]Result[E, ID], 0, len(entities))
	for _, entity := range entities {
		mapped = append(mapped, f.newResult(f.Entity(entity), code, tag, inherited))
	}

	result := BulkResult[E, ID]{
		info:       batch,
		command:    f.command,
		code:       code,
		successful: []Result[E, ID]{},
		rejected:   []Result[E, ID]{},
	}
	if code.IsRejection() {
		result.rejected = mapped
	} else {
		result.successful = mapped
	}
	return result
}

func (f Factory[E, ID]) BulkAdminDown(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeAdminDown, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkOutOfService(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeOutOfService, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkNoOperation(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeNoOperation, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkEnqueued(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeEnqueued, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkSuccess(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeSuccess, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkAdded(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeSuccess, AddedOrUpdatedAdd, entities, opts)
}

func (f Factory[E, ID]) BulkUpdated(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeSuccess, AddedOrUpdatedUpdate, entities, opts)
}

func (f Factory[E, ID]) BulkArgumentError(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeArgumentError, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkError(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeError, AddedOrUpdatedUnspecified, entities, opts)
}

func (f Factory[E, ID]) BulkErrorFrom(entities []E, err error, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeError, AddedOrUpdatedUnspecified, entities,
		with(opts, withFallbackDescription(errorDescription(err))))
}

func (f Factory[E, ID]) BulkTimeout(entities []E, timeout time.Duration, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeTimeout, AddedOrUpdatedUnspecified, entities,
		with(opts, withFallbackDescription(timeoutDescription(timeout))))
}

func (f Factory[E, ID]) BulkLockTimeout(entities []E, timeout time.Duration, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeLockTimeout, AddedOrUpdatedUnspecified, entities,
		with(opts, withFallbackDescription(lockTimeoutDescription(timeout))))
}

func (f Factory[E, ID]) BulkCanNotBeRemoved(entities []E, opts ...Option) BulkResult[E, ID] {
	return f.bulk(CodeCanNotBeRemoved, AddedOrUpdatedUnspecified, entities, opts)
}

// Collect folds results that were produced one entity at a time into a
// batch result:
//   - no results: NoOperation
//   - all successful: Success
//   - none successful, all with the same code: that code
//   - none successful, mixed codes: Error
//   - otherwise: Partial
func (f Factory[E, ID]) Collect(items []Result[E, ID], opts ...Option) BulkResult[E, ID] {
	result := BulkResult[E, ID]{
		info:       newInfo(opts),
		command:    f.command,
		successful: []Result[E, ID]{},
		rejected:   []Result[E, ID]{},
	}
	for _, item := range items {
		if item.IsSuccess() {
			result.successful = append(result.successful, item)
		} else {
			result.rejected = append(result.rejected, item)
		}
	}

	switch {
	case len(items) == 0:
		result.code = CodeNoOperation
	case len(result.rejected) == 0:
		result.code = CodeSuccess
	case len(result.successful) == 0:
		result.code = unanimousCode(result.rejected, CodeError)
	default:
		result.code = CodePartial
	}
	return result
}

func unanimousCode[E Entity[ID], ID comparable](items []Result[E, ID], otherwise ResultCode) ResultCode {
	code := items[0].code
	for _, item := range items[1:] {
		if item.code != code {
			return otherwise
		}
	}
	return code
}
