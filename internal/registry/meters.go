package registry

import (
	"context"
	"fmt"
	"strings"

	"wwcp-server/internal/results"
	"wwcp-server/models"
)

type meterStep = step[*models.EnergyMeter, models.EnergyMeterID]

var (
	addMeter    = results.NewFactory[*models.EnergyMeter, models.EnergyMeterID](results.CommandAdd)
	upsertMeter = results.NewFactory[*models.EnergyMeter, models.EnergyMeterID](results.CommandAddOrUpdate)
	updateMeter = results.NewFactory[*models.EnergyMeter, models.EnergyMeterID](results.CommandUpdate)
	deleteMeter = results.NewFactory[*models.EnergyMeter, models.EnergyMeterID](results.CommandDelete)
)

func (r *Registry) EnergyMeter(id models.EnergyMeterID) (*models.EnergyMeter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meter, ok := r.meters[id]
	if !ok {
		return nil, false
	}
	return meter.Clone(), true
}

func meterTarget(f results.Factory[*models.EnergyMeter, models.EnergyMeterID], meter *models.EnergyMeter) results.Target[*models.EnergyMeter, models.EnergyMeterID] {
	if meter == nil {
		return f.ID("")
	}
	return f.Entity(meter)
}

func validateMeter(meter *models.EnergyMeter) error {
	if meter == nil {
		return fmt.Errorf("energy meter is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(meter.ID)) == "" {
		return fmt.Errorf("energy meter id is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(meter.PoolID)) == "" {
		return fmt.Errorf("energy meter %s has no charging pool: %w", meter.ID, ErrInvalidArgument)
	}
	return nil
}

// meterOwner checks the pool and, if set, the metered EVSE of meter. Callers
// hold r.mu.
func (r *Registry) meterOwner(meter *models.EnergyMeter) (*models.ChargingStationOperator, error) {
	_, operator, err := r.operativePool(meter.PoolID)
	if err != nil {
		return operator, err
	}
	if meter.EVSEID != "" {
		evse, ok := r.evses[meter.EVSEID]
		if !ok {
			return operator, fmt.Errorf("EVSE %s: %w", meter.EVSEID, ErrUnknownEVSE)
		}
		if evse.PoolID != meter.PoolID {
			return operator, fmt.Errorf("EVSE %s is not part of charging pool %s: %w", evse.ID, meter.PoolID, ErrInvalidArgument)
		}
	}
	return operator, nil
}

func (r *Registry) storeMeter(meter *models.EnergyMeter) *models.EnergyMeter {
	stored := meter.Clone()
	stored.UpdatedAt = r.now()
	r.meters[stored.ID] = stored
	return stored.Clone()
}

// AddEnergyMeter adds a meter to a pool, optionally attached to one of its
// EVSEs.
func (r *Registry) AddEnergyMeter(ctx context.Context, meter *models.EnergyMeter, opts ...results.Option) MeterResult {
	return execute(ctx, r, addMeter, meterTarget(addMeter, meter), opts, func() meterStep {
		if err := validateMeter(meter); err != nil {
			return rejected(meterTarget(addMeter, meter), err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		operator, err := r.meterOwner(meter)
		if err != nil {
			return meterStep{target: addMeter.Entity(meter), opts: ownedBy(operator), err: err}
		}
		if _, exists := r.meters[meter.ID]; exists {
			return meterStep{
				target: addMeter.Entity(meter),
				opts:   ownedBy(operator),
				err:    fmt.Errorf("energy meter %s: %w", meter.ID, ErrAlreadyExists),
			}
		}
		return meterStep{target: addMeter.Entity(r.storeMeter(meter)), emit: addMeter.Success, opts: ownedBy(operator)}
	})
}

func (r *Registry) AddOrUpdateEnergyMeter(ctx context.Context, meter *models.EnergyMeter, opts ...results.Option) MeterResult {
	return execute(ctx, r, upsertMeter, meterTarget(upsertMeter, meter), opts, func() meterStep {
		if err := validateMeter(meter); err != nil {
			return rejected(meterTarget(upsertMeter, meter), err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		operator, err := r.meterOwner(meter)
		if err != nil {
			return meterStep{target: upsertMeter.Entity(meter), opts: ownedBy(operator), err: err}
		}

		emit := upsertMeter.Added
		if _, exists := r.meters[meter.ID]; exists {
			emit = upsertMeter.Updated
		}
		return meterStep{target: upsertMeter.Entity(r.storeMeter(meter)), emit: emit, opts: ownedBy(operator)}
	})
}

func (r *Registry) UpdateEnergyMeter(ctx context.Context, meter *models.EnergyMeter, opts ...results.Option) MeterResult {
	return execute(ctx, r, updateMeter, meterTarget(updateMeter, meter), opts, func() meterStep {
		if err := validateMeter(meter); err != nil {
			return rejected(meterTarget(updateMeter, meter), err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		if _, exists := r.meters[meter.ID]; !exists {
			return rejected(updateMeter.ID(meter.ID), fmt.Errorf("energy meter %s: %w", meter.ID, ErrUnknownEnergyMeter))
		}
		operator, err := r.meterOwner(meter)
		if err != nil {
			return meterStep{target: updateMeter.Entity(meter), opts: ownedBy(operator), err: err}
		}
		return meterStep{target: updateMeter.Entity(r.storeMeter(meter)), emit: updateMeter.Success, opts: ownedBy(operator)}
	})
}

func (r *Registry) DeleteEnergyMeter(ctx context.Context, id models.EnergyMeterID, opts ...results.Option) MeterResult {
	return execute(ctx, r, deleteMeter, deleteMeter.ID(id), opts, func() meterStep {
		r.mu.Lock()
		defer r.mu.Unlock()

		meter, exists := r.meters[id]
		if !exists {
			return rejected(deleteMeter.ID(id), fmt.Errorf("energy meter %s: %w", id, ErrUnknownEnergyMeter))
		}
		target := deleteMeter.Entity(meter.Clone())

		pool, ok := r.pools[meter.PoolID]
		if !ok {
			return rejected(target, fmt.Errorf("charging pool %s: %w", meter.PoolID, ErrUnknownPool))
		}
		operator, err := r.operativeOperator(pool.OperatorID)
		if err != nil {
			return meterStep{target: target, opts: ownedBy(operator), err: err}
		}

		delete(r.meters, id)
		return meterStep{target: target, emit: deleteMeter.Success, opts: ownedBy(operator)}
	})
}
