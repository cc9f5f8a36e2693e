package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wwcp-server/internal/results"
	"wwcp-server/models"
)

type (
	EVSEStatusResult      = results.PushStatusResult[models.EVSEStatusUpdate]
	PoolAdminStatusResult = results.PushStatusResult[models.ChargingPoolAdminStatusUpdate]
)

// PushEVSEStatus applies operational status updates to known EVSEs. Updates
// for unknown EVSEs, with an invalid status, or for EVSEs of an inoperative
// operator are rejected and explained in the warnings.
func (r *Registry) PushEVSEStatus(ctx context.Context, senderID string, updates []models.EVSEStatusUpdate, opts ...results.Option) EVSEStatusResult {
	start := r.now()
	actor := results.ReceivedBy(r)

	if len(updates) == 0 {
		return results.PushNoOperation[models.EVSEStatusUpdate](senderID, actor,
			append([]results.Option{results.WithRuntime(r.now().Sub(start))}, opts...)...)
	}

	_, release, err := r.enter(ctx)
	if err != nil {
		return pushRejected(r, senderID, actor, err, updates, start, opts)
	}
	defer release()

	r.mu.Lock()
	var rejected []models.EVSEStatusUpdate
	var warnings []string
	for _, update := range updates {
		if err := r.applyEVSEStatus(update); err != nil {
			rejected = append(rejected, update)
			warnings = append(warnings, err.Error())
		}
	}
	r.mu.Unlock()

	return pushOutcome(r, senderID, actor, "EVSE status", updates, rejected, warnings, start, opts)
}

// applyEVSEStatus sets the status of one EVSE. Callers hold r.mu.
func (r *Registry) applyEVSEStatus(update models.EVSEStatusUpdate) error {
	if err := models.ValidateEVSEStatus(update.NewStatus); err != nil {
		return fmt.Errorf("EVSE %s: %v", update.EVSEID, err)
	}
	evse, ok := r.evses[update.EVSEID]
	if !ok {
		return fmt.Errorf("EVSE %s: %w", update.EVSEID, ErrUnknownEVSE)
	}
	if pool, ok := r.pools[evse.PoolID]; ok {
		if _, err := r.operativeOperator(pool.OperatorID); err != nil {
			return fmt.Errorf("EVSE %s: %w", update.EVSEID, err)
		}
	}
	evse.Status = update.NewStatus
	evse.UpdatedAt = r.now()
	if update.Timestamp != nil {
		evse.UpdatedAt = update.Timestamp.Time
	}
	return nil
}

// PushChargingPoolAdminStatus switches pools between Operative and
// Inoperative. EVSE commands against an inoperative pool yield OutOfService.
func (r *Registry) PushChargingPoolAdminStatus(ctx context.Context, senderID string, updates []models.ChargingPoolAdminStatusUpdate, opts ...results.Option) PoolAdminStatusResult {
	start := r.now()
	actor := results.ReceivedBy(r)

	if len(updates) == 0 {
		return results.PushNoOperation[models.ChargingPoolAdminStatusUpdate](senderID, actor,
			append([]results.Option{results.WithRuntime(r.now().Sub(start))}, opts...)...)
	}

	_, release, err := r.enter(ctx)
	if err != nil {
		return pushRejected(r, senderID, actor, err, updates, start, opts)
	}
	defer release()

	r.mu.Lock()
	var rejected []models.ChargingPoolAdminStatusUpdate
	var warnings []string
	for _, update := range updates {
		if err := r.applyPoolAdminStatus(update); err != nil {
			rejected = append(rejected, update)
			warnings = append(warnings, err.Error())
		}
	}
	r.mu.Unlock()

	return pushOutcome(r, senderID, actor, "charging pool admin status", updates, rejected, warnings, start, opts)
}

func (r *Registry) applyPoolAdminStatus(update models.ChargingPoolAdminStatusUpdate) error {
	if err := models.ValidateAdminStatus(update.NewStatus); err != nil {
		return fmt.Errorf("charging pool %s: %v", update.PoolID, err)
	}
	pool, ok := r.pools[update.PoolID]
	if !ok {
		return fmt.Errorf("charging pool %s: %w", update.PoolID, ErrUnknownPool)
	}
	if _, err := r.operativeOperator(pool.OperatorID); err != nil {
		return fmt.Errorf("charging pool %s: %w", update.PoolID, err)
	}
	pool.AdminStatus = update.NewStatus
	pool.UpdatedAt = r.now()
	return nil
}

// pushRejected answers a push that could not enter the registry; every update
// is rejected. Caller options are applied last.
func pushRejected[U any](r *Registry, senderID string, actor results.Actor, err error, updates []U, start time.Time, opts []results.Option) results.PushStatusResult[U] {
	all := append([]results.Option{results.WithRuntime(r.now().Sub(start))}, opts...)
	r.log.Warn("status push rejected", "senderId", senderID, "updates", len(updates), "error", err)

	switch {
	case errors.Is(err, ErrLockTimeout):
		return results.PushLockTimeout(senderID, actor, r.lockTimeout, updates, all...)
	case errors.Is(err, context.DeadlineExceeded):
		return results.PushTimeout(senderID, actor, r.commandTimeout, updates, all...)
	default:
		return results.PushErrorFrom(senderID, actor, err, updates, all...)
	}
}

func pushOutcome[U any](r *Registry, senderID string, actor results.Actor, kind string, updates, rejected []U, warnings []string, start time.Time, opts []results.Option) results.PushStatusResult[U] {
	runtime := results.WithRuntime(r.now().Sub(start))

	if len(rejected) == 0 {
		r.log.Debug("status push applied", "kind", kind, "senderId", senderID, "updates", len(updates))
		return results.PushSuccess[U](senderID, actor, append([]results.Option{runtime}, opts...)...)
	}

	r.log.Warn("status push partially rejected", "kind", kind, "senderId", senderID,
		"updates", len(updates), "rejected", len(rejected))
	return results.PushFailed(senderID, actor, rejected, append([]results.Option{
		results.WithDescription(fmt.Sprintf("%d of %d %s updates rejected", len(rejected), len(updates), kind)),
		results.WithWarnings(warnings...),
		runtime,
	}, opts...)...)
}
