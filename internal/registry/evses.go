package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	"wwcp-server/internal/results"
	"wwcp-server/models"
)

type (
	evseFactory = results.Factory[*models.EVSE, models.EVSEID]
	evseStep    = step[*models.EVSE, models.EVSEID]
)

var (
	addEVSE    = results.NewFactory[*models.EVSE, models.EVSEID](results.CommandAdd)
	upsertEVSE = results.NewFactory[*models.EVSE, models.EVSEID](results.CommandAddOrUpdate)
	updateEVSE = results.NewFactory[*models.EVSE, models.EVSEID](results.CommandUpdate)
	deleteEVSE = results.NewFactory[*models.EVSE, models.EVSEID](results.CommandDelete)
)

func (r *Registry) EVSE(id models.EVSEID) (*models.EVSE, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evse, ok := r.evses[id]
	if !ok {
		return nil, false
	}
	return evse.Clone(), true
}

// EVSEs lists the EVSEs of a pool ordered by id
func (r *Registry) EVSEs(poolID models.ChargingPoolID) []*models.EVSE {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evses := make([]*models.EVSE, 0)
	for _, evse := range r.evses {
		if evse.PoolID == poolID {
			evses = append(evses, evse.Clone())
		}
	}
	sort.Slice(evses, func(i, j int) bool { return evses[i].ID < evses[j].ID })
	return evses
}

// operativePool returns the pool and its operator, checking that both accept
// commands. Callers hold r.mu.
func (r *Registry) operativePool(id models.ChargingPoolID) (*models.ChargingPool, *models.ChargingStationOperator, error) {
	pool, ok := r.pools[id]
	if !ok {
		return nil, nil, fmt.Errorf("charging pool %s: %w", id, ErrUnknownPool)
	}
	operator, err := r.operativeOperator(pool.OperatorID)
	if err != nil {
		return pool, operator, err
	}
	if !pool.IsOperative() {
		return pool, operator, fmt.Errorf("charging pool %s: %w", id, ErrOutOfService)
	}
	return pool, operator, nil
}

func evseTarget(f evseFactory, evse *models.EVSE) results.Target[*models.EVSE, models.EVSEID] {
	if evse == nil {
		return f.ID("")
	}
	return f.Entity(evse)
}

func validateEVSE(evse *models.EVSE) error {
	if evse == nil {
		return fmt.Errorf("EVSE is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(evse.ID)) == "" {
		return fmt.Errorf("EVSE id is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(evse.PoolID)) == "" {
		return fmt.Errorf("EVSE %s has no charging pool: %w", evse.ID, ErrInvalidArgument)
	}
	if evse.ConnectorID < 0 {
		return fmt.Errorf("EVSE %s has negative connector id: %w", evse.ID, ErrInvalidArgument)
	}
	if evse.MaxPower < 0 {
		return fmt.Errorf("EVSE %s has negative max power: %w", evse.ID, ErrInvalidArgument)
	}
	if evse.Status != "" {
		if err := models.ValidateEVSEStatus(evse.Status); err != nil {
			return fmt.Errorf("EVSE %s: %v: %w", evse.ID, err, ErrInvalidArgument)
		}
	}
	if evse.AdminStatus != "" {
		if err := models.ValidateAdminStatus(evse.AdminStatus); err != nil {
			return fmt.Errorf("EVSE %s: %v: %w", evse.ID, err, ErrInvalidArgument)
		}
	}
	return nil
}

// storeEVSE saves a copy of evse. Callers hold r.mu.
func (r *Registry) storeEVSE(evse *models.EVSE) *models.EVSE {
	stored := evse.Clone()
	if stored.Status == "" {
		stored.Status = core.ChargePointStatusAvailable
	}
	if stored.AdminStatus == "" {
		stored.AdminStatus = core.AvailabilityTypeOperative
	}
	stored.UpdatedAt = r.now()
	r.evses[stored.ID] = stored
	return stored.Clone()
}

func (r *Registry) insertEVSE(evse *models.EVSE) evseStep {
	if err := validateEVSE(evse); err != nil {
		return rejected(evseTarget(addEVSE, evse), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, operator, err := r.operativePool(evse.PoolID)
	if err != nil {
		return evseStep{target: addEVSE.Entity(evse), opts: ownedBy(operator), err: err}
	}
	if _, exists := r.evses[evse.ID]; exists {
		return evseStep{
			target: addEVSE.Entity(evse),
			opts:   ownedBy(operator),
			err:    fmt.Errorf("EVSE %s: %w", evse.ID, ErrAlreadyExists),
		}
	}

	return evseStep{target: addEVSE.Entity(r.storeEVSE(evse)), emit: addEVSE.Success, opts: ownedBy(operator)}
}

// AddEVSE adds an EVSE to an existing, operative charging pool.
func (r *Registry) AddEVSE(ctx context.Context, evse *models.EVSE, opts ...results.Option) EVSEResult {
	return execute(ctx, r, addEVSE, evseTarget(addEVSE, evse), opts, func() evseStep {
		return r.insertEVSE(evse)
	})
}

func (r *Registry) AddEVSEs(ctx context.Context, evses []*models.EVSE, opts ...results.Option) EVSEBulkResult {
	return executeBulk(ctx, r, addEVSE, evses, opts, r.insertEVSE)
}

func (r *Registry) putEVSE(evse *models.EVSE) evseStep {
	if err := validateEVSE(evse); err != nil {
		return rejected(evseTarget(upsertEVSE, evse), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, operator, err := r.operativePool(evse.PoolID)
	if err != nil {
		return evseStep{target: upsertEVSE.Entity(evse), opts: ownedBy(operator), err: err}
	}

	existing, exists := r.evses[evse.ID]
	if exists && existing.PoolID != evse.PoolID {
		return evseStep{
			target: upsertEVSE.Entity(evse),
			opts:   ownedBy(operator),
			err:    fmt.Errorf("EVSE %s belongs to charging pool %s: %w", evse.ID, existing.PoolID, ErrInvalidArgument),
		}
	}

	emit := upsertEVSE.Added
	if exists {
		emit = upsertEVSE.Updated
		if evse.Status == "" {
			evse = evse.Clone()
			evse.Status = existing.Status
		}
	}
	return evseStep{target: upsertEVSE.Entity(r.storeEVSE(evse)), emit: emit, opts: ownedBy(operator)}
}

// AddOrUpdateEVSE stores evse and records whether it was added or updated.
func (r *Registry) AddOrUpdateEVSE(ctx context.Context, evse *models.EVSE, opts ...results.Option) EVSEResult {
	return execute(ctx, r, upsertEVSE, evseTarget(upsertEVSE, evse), opts, func() evseStep {
		return r.putEVSE(evse)
	})
}

func (r *Registry) AddOrUpdateEVSEs(ctx context.Context, evses []*models.EVSE, opts ...results.Option) EVSEBulkResult {
	return executeBulk(ctx, r, upsertEVSE, evses, opts, r.putEVSE)
}

// UpdateEVSE replaces an existing EVSE, keeping its operational status when
// the update leaves it blank.
func (r *Registry) UpdateEVSE(ctx context.Context, evse *models.EVSE, opts ...results.Option) EVSEResult {
	return execute(ctx, r, updateEVSE, evseTarget(updateEVSE, evse), opts, func() evseStep {
		if err := validateEVSE(evse); err != nil {
			return rejected(evseTarget(updateEVSE, evse), err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		existing, exists := r.evses[evse.ID]
		if !exists {
			return rejected(updateEVSE.ID(evse.ID), fmt.Errorf("EVSE %s: %w", evse.ID, ErrUnknownEVSE))
		}
		if existing.PoolID != evse.PoolID {
			return rejected(updateEVSE.Entity(existing.Clone()),
				fmt.Errorf("EVSE %s belongs to charging pool %s: %w", evse.ID, existing.PoolID, ErrInvalidArgument))
		}

		_, operator, err := r.operativePool(evse.PoolID)
		if err != nil {
			return evseStep{target: updateEVSE.Entity(existing.Clone()), opts: ownedBy(operator), err: err}
		}

		updated := evse.Clone()
		if updated.Status == "" {
			updated.Status = existing.Status
		}
		return evseStep{target: updateEVSE.Entity(r.storeEVSE(updated)), emit: updateEVSE.Success, opts: ownedBy(operator)}
	})
}

// DeleteEVSE removes an EVSE. EVSEs with an energy meter attached can not be
// removed.
func (r *Registry) DeleteEVSE(ctx context.Context, id models.EVSEID, opts ...results.Option) EVSEResult {
	return execute(ctx, r, deleteEVSE, deleteEVSE.ID(id), opts, func() evseStep {
		r.mu.Lock()
		defer r.mu.Unlock()

		evse, exists := r.evses[id]
		if !exists {
			return rejected(deleteEVSE.ID(id), fmt.Errorf("EVSE %s: %w", id, ErrUnknownEVSE))
		}
		target := deleteEVSE.Entity(evse.Clone())

		pool, ok := r.pools[evse.PoolID]
		if !ok {
			return rejected(target, fmt.Errorf("charging pool %s: %w", evse.PoolID, ErrUnknownPool))
		}
		operator, err := r.operativeOperator(pool.OperatorID)
		if err != nil {
			return evseStep{target: target, opts: ownedBy(operator), err: err}
		}

		for _, meter := range r.meters {
			if meter.EVSEID == id {
				return evseStep{
					target: target,
					opts:   ownedBy(operator),
					err:    fmt.Errorf("EVSE %s is metered by %s: %w", id, meter.ID, ErrInUse),
				}
			}
		}

		delete(r.evses, id)
		return evseStep{target: target, emit: deleteEVSE.Success, opts: ownedBy(operator)}
	})
}
