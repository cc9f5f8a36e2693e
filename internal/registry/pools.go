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
	poolFactory = results.Factory[*models.ChargingPool, models.ChargingPoolID]
	poolStep    = step[*models.ChargingPool, models.ChargingPoolID]
)

var (
	addPool            = results.NewFactory[*models.ChargingPool, models.ChargingPoolID](results.CommandAdd)
	addPoolIfNotExists = results.NewFactory[*models.ChargingPool, models.ChargingPoolID](results.CommandAddIfNotExists)
	upsertPool         = results.NewFactory[*models.ChargingPool, models.ChargingPoolID](results.CommandAddOrUpdate)
	updatePool         = results.NewFactory[*models.ChargingPool, models.ChargingPoolID](results.CommandUpdate)
	deletePool         = results.NewFactory[*models.ChargingPool, models.ChargingPoolID](results.CommandDelete)
)

// RegisterOperator adds a charging station operator. Operators are
// configuration, not commands, so plain errors are returned.
func (r *Registry) RegisterOperator(operator *models.ChargingStationOperator) error {
	if operator == nil || strings.TrimSpace(string(operator.ID)) == "" {
		return fmt.Errorf("operator id is required: %w", ErrInvalidArgument)
	}
	if operator.AdminStatus == "" {
		operator.AdminStatus = core.AvailabilityTypeOperative
	}
	if err := models.ValidateAdminStatus(operator.AdminStatus); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operators[operator.ID]; exists {
		return fmt.Errorf("operator %s: %w", operator.ID, ErrAlreadyExists)
	}
	c := *operator
	r.operators[operator.ID] = &c

	r.log.Info("operator registered", "operatorId", operator.ID)
	return nil
}

// SetOperatorAdminStatus switches an operator between Operative and
// Inoperative. Commands against an inoperative operator yield AdminDown.
func (r *Registry) SetOperatorAdminStatus(id models.ChargingStationOperatorID, status core.AvailabilityType) error {
	if err := models.ValidateAdminStatus(status); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	operator, ok := r.operators[id]
	if !ok {
		return fmt.Errorf("operator %s: %w", id, ErrUnknownOperator)
	}
	operator.AdminStatus = status

	r.log.Info("operator admin status changed", "operatorId", id, "status", status)
	return nil
}

func (r *Registry) Operator(id models.ChargingStationOperatorID) (*models.ChargingStationOperator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	operator, ok := r.operators[id]
	if !ok {
		return nil, false
	}
	c := *operator
	return &c, true
}

func (r *Registry) ChargingPool(id models.ChargingPoolID) (*models.ChargingPool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, ok := r.pools[id]
	if !ok {
		return nil, false
	}
	return pool.Clone(), true
}

// ChargingPools lists the pools of an operator ordered by id
func (r *Registry) ChargingPools(operatorID models.ChargingStationOperatorID) []*models.ChargingPool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]*models.ChargingPool, 0)
	for _, pool := range r.pools {
		if pool.OperatorID == operatorID {
			pools = append(pools, pool.Clone())
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools
}

// operativeOperator returns the operator that owns new or existing pools and
// checks that it accepts commands. Callers hold r.mu.
func (r *Registry) operativeOperator(id models.ChargingStationOperatorID) (*models.ChargingStationOperator, error) {
	operator, ok := r.operators[id]
	if !ok {
		return nil, fmt.Errorf("operator %s: %w", id, ErrUnknownOperator)
	}
	if !operator.IsOperative() {
		return operator, fmt.Errorf("operator %s: %w", id, ErrAdminDown)
	}
	return operator, nil
}

func poolTarget(f poolFactory, pool *models.ChargingPool) results.Target[*models.ChargingPool, models.ChargingPoolID] {
	if pool == nil {
		return f.ID("")
	}
	return f.Entity(pool)
}

func validatePool(pool *models.ChargingPool) error {
	if pool == nil {
		return fmt.Errorf("charging pool is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(pool.ID)) == "" {
		return fmt.Errorf("charging pool id is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(pool.OperatorID)) == "" {
		return fmt.Errorf("charging pool %s has no operator: %w", pool.ID, ErrInvalidArgument)
	}
	if pool.AdminStatus != "" {
		if err := models.ValidateAdminStatus(pool.AdminStatus); err != nil {
			return fmt.Errorf("charging pool %s: %v: %w", pool.ID, err, ErrInvalidArgument)
		}
	}
	return nil
}

// storePool saves a copy of pool. Callers hold r.mu.
func (r *Registry) storePool(pool *models.ChargingPool) *models.ChargingPool {
	stored := pool.Clone()
	if stored.AdminStatus == "" {
		stored.AdminStatus = core.AvailabilityTypeOperative
	}
	stored.UpdatedAt = r.now()
	r.pools[stored.ID] = stored
	return stored.Clone()
}

func (r *Registry) insertPool(f poolFactory, pool *models.ChargingPool) poolStep {
	if err := validatePool(pool); err != nil {
		return rejected(poolTarget(f, pool), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	operator, err := r.operativeOperator(pool.OperatorID)
	if err != nil {
		return poolStep{target: f.Entity(pool), opts: ownedBy(operator), err: err}
	}

	if existing, exists := r.pools[pool.ID]; exists {
		if f.Command() == results.CommandAddIfNotExists {
			return poolStep{
				target: f.Entity(existing.Clone()),
				emit:   f.NoOperation,
				opts: append(ownedBy(operator),
					results.WithDescription(fmt.Sprintf("charging pool %s already exists", pool.ID))),
			}
		}
		return poolStep{
			target: f.Entity(pool),
			opts:   ownedBy(operator),
			err:    fmt.Errorf("charging pool %s: %w", pool.ID, ErrAlreadyExists),
		}
	}

	return poolStep{
		target: f.Entity(r.storePool(pool)),
		emit:   f.Success,
		opts:   ownedBy(operator),
	}
}

// AddChargingPool adds a new pool. Adding a pool id twice is an ArgumentError.
func (r *Registry) AddChargingPool(ctx context.Context, pool *models.ChargingPool, opts ...results.Option) PoolResult {
	return execute(ctx, r, addPool, poolTarget(addPool, pool), opts, func() poolStep {
		return r.insertPool(addPool, pool)
	})
}

// AddChargingPools adds a batch of pools under one lock acquisition.
func (r *Registry) AddChargingPools(ctx context.Context, pools []*models.ChargingPool, opts ...results.Option) PoolBulkResult {
	return executeBulk(ctx, r, addPool, pools, opts, func(pool *models.ChargingPool) poolStep {
		return r.insertPool(addPool, pool)
	})
}

// AddChargingPoolIfNotExists adds a pool or, when the id is taken, reports
// NoOperation with the existing pool.
func (r *Registry) AddChargingPoolIfNotExists(ctx context.Context, pool *models.ChargingPool, opts ...results.Option) PoolResult {
	return execute(ctx, r, addPoolIfNotExists, poolTarget(addPoolIfNotExists, pool), opts, func() poolStep {
		return r.insertPool(addPoolIfNotExists, pool)
	})
}

func (r *Registry) putPool(pool *models.ChargingPool) poolStep {
	if err := validatePool(pool); err != nil {
		return rejected(poolTarget(upsertPool, pool), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	operator, err := r.operativeOperator(pool.OperatorID)
	if err != nil {
		return poolStep{target: poolTarget(upsertPool, pool), opts: ownedBy(operator), err: err}
	}

	existing, exists := r.pools[pool.ID]
	if exists && existing.OperatorID != pool.OperatorID {
		return poolStep{
			target: upsertPool.Entity(pool),
			opts:   ownedBy(operator),
			err:    fmt.Errorf("charging pool %s belongs to operator %s: %w", pool.ID, existing.OperatorID, ErrInvalidArgument),
		}
	}

	emit := upsertPool.Added
	if exists {
		emit = upsertPool.Updated
	}
	return poolStep{
		target: upsertPool.Entity(r.storePool(pool)),
		emit:   emit,
		opts:   ownedBy(operator),
	}
}

// AddOrUpdateChargingPool stores pool and records whether it was added or
// updated.
func (r *Registry) AddOrUpdateChargingPool(ctx context.Context, pool *models.ChargingPool, opts ...results.Option) PoolResult {
	return execute(ctx, r, upsertPool, poolTarget(upsertPool, pool), opts, func() poolStep {
		return r.putPool(pool)
	})
}

func (r *Registry) AddOrUpdateChargingPools(ctx context.Context, pools []*models.ChargingPool, opts ...results.Option) PoolBulkResult {
	return executeBulk(ctx, r, upsertPool, pools, opts, r.putPool)
}

// UpdateChargingPool replaces an existing pool. Unknown pools are reported by
// id only.
func (r *Registry) UpdateChargingPool(ctx context.Context, pool *models.ChargingPool, opts ...results.Option) PoolResult {
	return execute(ctx, r, updatePool, poolTarget(updatePool, pool), opts, func() poolStep {
		if err := validatePool(pool); err != nil {
			return rejected(poolTarget(updatePool, pool), err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		existing, exists := r.pools[pool.ID]
		if !exists {
			return rejected(updatePool.ID(pool.ID), fmt.Errorf("charging pool %s: %w", pool.ID, ErrUnknownPool))
		}
		if existing.OperatorID != pool.OperatorID {
			return rejected(updatePool.Entity(existing.Clone()),
				fmt.Errorf("charging pool %s belongs to operator %s: %w", pool.ID, existing.OperatorID, ErrInvalidArgument))
		}

		operator, err := r.operativeOperator(pool.OperatorID)
		if err != nil {
			return poolStep{target: updatePool.Entity(existing.Clone()), opts: ownedBy(operator), err: err}
		}

		return poolStep{
			target: updatePool.Entity(r.storePool(pool)),
			emit:   updatePool.Success,
			opts:   ownedBy(operator),
		}
	})
}

// DeleteChargingPool removes a pool. A pool that still has EVSEs or energy
// meters can not be removed.
func (r *Registry) DeleteChargingPool(ctx context.Context, id models.ChargingPoolID, opts ...results.Option) PoolResult {
	return execute(ctx, r, deletePool, deletePool.ID(id), opts, func() poolStep {
		r.mu.Lock()
		defer r.mu.Unlock()

		pool, exists := r.pools[id]
		if !exists {
			return rejected(deletePool.ID(id), fmt.Errorf("charging pool %s: %w", id, ErrUnknownPool))
		}
		target := deletePool.Entity(pool.Clone())

		operator, err := r.operativeOperator(pool.OperatorID)
		if err != nil {
			return poolStep{target: target, opts: ownedBy(operator), err: err}
		}

		if n := r.countPoolChildren(id); n > 0 {
			return poolStep{
				target: target,
				opts:   ownedBy(operator),
				err:    fmt.Errorf("charging pool %s has %d EVSEs or energy meters: %w", id, n, ErrInUse),
			}
		}

		delete(r.pools, id)
		return poolStep{target: target, emit: deletePool.Success, opts: ownedBy(operator)}
	})
}

// countPoolChildren counts the EVSEs and energy meters of a pool. Callers
// hold r.mu.
func (r *Registry) countPoolChildren(id models.ChargingPoolID) int {
	n := 0
	for _, evse := range r.evses {
		if evse.PoolID == id {
			n++
		}
	}
	for _, meter := range r.meters {
		if meter.PoolID == id {
			n++
		}
	}
	return n
}
