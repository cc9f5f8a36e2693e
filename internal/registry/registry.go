package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
	"wwcp-server/models"
)

var (
	ErrUnknownOperator    = errors.New("unknown charging station operator")
	ErrUnknownPool        = errors.New("unknown charging pool")
	ErrUnknownEVSE        = errors.New("unknown EVSE")
	ErrUnknownEnergyMeter = errors.New("unknown energy meter")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAdminDown          = errors.New("charging station operator is administratively down")
	ErrOutOfService       = errors.New("charging pool is out of service")
	ErrInUse              = errors.New("still referenced by other entities")
	ErrLockTimeout        = errors.New("registry lock not acquired in time")
)

const (
	defaultLockTimeout    = 3 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

type (
	PoolResult      = results.Result[*models.ChargingPool, models.ChargingPoolID]
	PoolBulkResult  = results.BulkResult[*models.ChargingPool, models.ChargingPoolID]
	EVSEResult      = results.Result[*models.EVSE, models.EVSEID]
	EVSEBulkResult  = results.BulkResult[*models.EVSE, models.EVSEID]
	MeterResult     = results.Result[*models.EnergyMeter, models.EnergyMeterID]
	MeterBulkResult = results.BulkResult[*models.EnergyMeter, models.EnergyMeterID]
)

// Options configures a Registry
type Options struct {
	SenderID       string
	LockTimeout    time.Duration
	CommandTimeout time.Duration
}

// Registry keeps the charging infrastructure of all known operators in memory
// and answers every command with a result instead of an error. Commands are
// serialised by a weighted semaphore so that a caller waiting too long gets a
// LockTimeout result rather than blocking forever.
type Registry struct {
	senderID       string
	lockTimeout    time.Duration
	commandTimeout time.Duration
	lock           *semaphore.Weighted

	mu        sync.RWMutex
	operators map[models.ChargingStationOperatorID]*models.ChargingStationOperator
	pools     map[models.ChargingPoolID]*models.ChargingPool
	evses     map[models.EVSEID]*models.EVSE
	meters    map[models.EnergyMeterID]*models.EnergyMeter

	log *logger.Logger
	now func() time.Time
}

func New(opts Options, log *logger.Logger) *Registry {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		senderID:       opts.SenderID,
		lockTimeout:    opts.LockTimeout,
		commandTimeout: opts.CommandTimeout,
		lock:           semaphore.NewWeighted(1),
		operators:      make(map[models.ChargingStationOperatorID]*models.ChargingStationOperator),
		pools:          make(map[models.ChargingPoolID]*models.ChargingPool),
		evses:          make(map[models.EVSEID]*models.EVSE),
		meters:         make(map[models.EnergyMeterID]*models.EnergyMeter),
		log:            log.With("component", "registry"),
		now:            time.Now,
	}
}

// ID identifies the registry when it acts as a status receiver.
func (r *Registry) ID() string { return r.senderID }

// enter takes the command lock. The returned context carries the command
// timeout; release must be called once the command is done.
func (r *Registry) enter(ctx context.Context) (context.Context, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)

	lockCtx, lockCancel := context.WithTimeout(ctx, r.lockTimeout)
	defer lockCancel()

	if err := r.lock.Acquire(lockCtx, 1); err != nil {
		cerr := ctx.Err()
		cancel()
		if cerr != nil {
			return nil, nil, cerr
		}
		return nil, nil, ErrLockTimeout
	}
	return ctx, func() {
		r.lock.Release(1)
		cancel()
	}, nil
}

// step is what a command body decided: the target it resolved and either the
// success variant to emit or the error that rejected it.
type step[E results.Entity[ID], ID comparable] struct {
	target results.Target[E, ID]
	emit   func(results.Target[E, ID], ...results.Option) results.Result[E, ID]
	opts   []results.Option
	err    error
}

func rejected[E results.Entity[ID], ID comparable](target results.Target[E, ID], err error) step[E, ID] {
	return step[E, ID]{target: target, err: err}
}

func execute[E results.Entity[ID], ID comparable](
	ctx context.Context,
	r *Registry,
	f results.Factory[E, ID],
	target results.Target[E, ID],
	opts []results.Option,
	body func() step[E, ID],
) results.Result[E, ID] {
	start := r.now()

	ctx, release, err := r.enter(ctx)
	if err != nil {
		return finish(r, f, rejected(target, err), start, opts)
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return finish(r, f, rejected(target, err), start, opts)
	}
	return finish(r, f, body(), start, opts)
}

func executeBulk[E results.Entity[ID], ID comparable](
	ctx context.Context,
	r *Registry,
	f results.Factory[E, ID],
	entities []E,
	opts []results.Option,
	body func(E) step[E, ID],
) results.BulkResult[E, ID] {
	start := r.now()

	// every per-entity result of the batch shares one tracking id unless the
	// caller brought its own
	opts = append([]results.Option{
		results.WithSenderID(r.senderID),
		results.WithEventTrackingID(results.NewEventTrackingID()),
	}, opts...)

	if len(entities) == 0 {
		return f.BulkNoOperation(entities, append(opts, results.WithRuntime(r.now().Sub(start)))...)
	}

	ctx, release, err := r.enter(ctx)
	if err != nil {
		all := append(opts, results.WithRuntime(r.now().Sub(start)))
		r.log.Warn("bulk command rejected", "command", f.Command(), "count", len(entities), "error", err)
		switch {
		case errors.Is(err, ErrLockTimeout):
			return f.BulkLockTimeout(entities, r.lockTimeout, all...)
		case errors.Is(err, context.DeadlineExceeded):
			return f.BulkTimeout(entities, r.commandTimeout, all...)
		default:
			return f.BulkErrorFrom(entities, err, all...)
		}
	}
	defer release()

	items := make([]results.Result[E, ID], 0, len(entities))
	for _, entity := range entities {
		s := rejected(f.Entity(entity), ctx.Err())
		if s.err == nil {
			s = body(entity)
		}
		items = append(items, finish(r, f, s, start, opts))
	}

	bulk := f.Collect(items, append(opts, results.WithRuntime(r.now().Sub(start)))...)
	r.log.Info("bulk command processed",
		"command", f.Command(),
		"code", bulk.Code(),
		"successful", len(bulk.Successful()),
		"rejected", len(bulk.Rejected()),
		"eventTrackingId", bulk.EventTrackingID())
	return bulk
}

// finish stamps a step into a result. Options supplied by the caller take
// precedence over the registry's own.
func finish[E results.Entity[ID], ID comparable](
	r *Registry,
	f results.Factory[E, ID],
	s step[E, ID],
	start time.Time,
	opts []results.Option,
) results.Result[E, ID] {
	all := make([]results.Option, 0, len(s.opts)+len(opts)+2)
	all = append(all, results.WithSenderID(r.senderID))
	all = append(all, s.opts...)
	all = append(all, opts...)
	all = append(all, results.WithRuntime(r.now().Sub(start)))

	var result results.Result[E, ID]
	if s.err != nil {
		result = reject(r, f, s.target, s.err, all)
	} else {
		result = s.emit(s.target, all...)
	}

	kv := []interface{}{
		"command", f.Command(),
		"id", result.ID(),
		"code", result.Code(),
		"eventTrackingId", result.EventTrackingID(),
	}
	if result.IsSuccess() || result.Code() == results.CodeNoOperation {
		r.log.Debug("command processed", kv...)
	} else {
		r.log.Warn("command rejected", append(kv, "description", result.Description())...)
	}
	return result
}

// reject maps a command error onto its result code.
func reject[E results.Entity[ID], ID comparable](
	r *Registry,
	f results.Factory[E, ID],
	target results.Target[E, ID],
	err error,
	opts []results.Option,
) results.Result[E, ID] {
	switch {
	case errors.Is(err, ErrLockTimeout):
		return f.LockTimeout(target, r.lockTimeout, opts...)
	case errors.Is(err, context.DeadlineExceeded):
		return f.Timeout(target, r.commandTimeout, opts...)
	}

	described := append([]results.Option{results.WithDescription(err.Error())}, opts...)
	switch {
	case errors.Is(err, ErrAdminDown):
		return f.AdminDown(target, described...)
	case errors.Is(err, ErrOutOfService):
		return f.OutOfService(target, described...)
	case errors.Is(err, ErrInUse):
		return f.CanNotBeRemoved(target, described...)
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrUnknownOperator),
		errors.Is(err, ErrUnknownPool),
		errors.Is(err, ErrUnknownEVSE),
		errors.Is(err, ErrUnknownEnergyMeter):
		return f.ArgumentError(target, described...)
	default:
		return f.ErrorFrom(target, err, opts...)
	}
}

// ownedBy attaches the operator as owner of a result.
func ownedBy(operator *models.ChargingStationOperator) []results.Option {
	if operator == nil {
		return nil
	}
	return []results.Option{results.WithOwner(operator)}
}
