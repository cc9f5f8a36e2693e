package status

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
	"wwcp-server/models"
)

const (
	defaultParallelism = 4
	defaultTimeout     = 10 * time.Second
)

type EVSEStatusResult = results.PushStatusResult[models.EVSEStatusUpdate]

// EVSEStatusPusher is anything EVSE status updates can be pushed to: an MQTT
// publisher, a state store, the registry or another broadcaster.
type EVSEStatusPusher interface {
	ID() string
	PushEVSEStatus(ctx context.Context, senderID string, updates []models.EVSEStatusUpdate, opts ...results.Option) EVSEStatusResult
}

type Options struct {
	Parallelism int           // pushers running at the same time
	Timeout     time.Duration // upper bound for one broadcast
}

// Broadcaster fans a status push out to all its pushers and flattens their
// results into one.
type Broadcaster struct {
	id          string
	pushers     []EVSEStatusPusher
	parallelism int
	timeout     time.Duration
	enabled     atomic.Bool
	pending     sync.WaitGroup
	log         *logger.Logger
	now         func() time.Time
}

func NewBroadcaster(id string, opts Options, log *logger.Logger, pushers ...EVSEStatusPusher) *Broadcaster {
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &Broadcaster{
		id:          id,
		pushers:     pushers,
		parallelism: opts.Parallelism,
		timeout:     opts.Timeout,
		log:         log.With("component", "broadcaster", "broadcaster", id),
		now:         time.Now,
	}
	b.enabled.Store(true)
	return b
}

func (b *Broadcaster) ID() string { return b.id }

func (b *Broadcaster) Enable()         { b.enabled.Store(true) }
func (b *Broadcaster) Disable()        { b.enabled.Store(false) }
func (b *Broadcaster) IsEnabled() bool { return b.enabled.Load() }

// Pushers returns the ids of all pushers in broadcast order
func (b *Broadcaster) Pushers() []string {
	ids := make([]string, 0, len(b.pushers))
	for _, p := range b.pushers {
		ids = append(ids, p.ID())
	}
	return ids
}

// PushEVSEStatus pushes updates to every pusher concurrently and waits for all
// of them. The per-pusher results are flattened in pusher order. Every pusher
// and the flattened result share one event tracking id, taken from opts when
// given.
func (b *Broadcaster) PushEVSEStatus(ctx context.Context, senderID string, updates []models.EVSEStatusUpdate, opts ...results.Option) EVSEStatusResult {
	start := b.now()
	actor := results.SentBy(b)
	opts = tracked(opts)

	if !b.IsEnabled() {
		b.log.Warn("status push refused, broadcaster disabled", "updates", len(updates))
		return results.PushAdminDown(senderID, actor, updates, append(opts,
			results.WithDescription("status broadcasting is disabled"),
			results.WithRuntime(b.now().Sub(start)))...)
	}
	if len(b.pushers) == 0 || len(updates) == 0 {
		return results.PushNoOperation[models.EVSEStatusUpdate](senderID, actor,
			append(opts, results.WithRuntime(b.now().Sub(start)))...)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	items := make([]EVSEStatusResult, len(b.pushers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for i, pusher := range b.pushers {
		i, pusher := i, pusher
		g.Go(func() error {
			items[i] = pusher.PushEVSEStatus(gctx, senderID, updates, opts...)
			return nil
		})
	}
	_ = g.Wait()

	result := results.Flatten(senderID, actor, items, b.now().Sub(start), opts...)
	b.log.Info("status push broadcast",
		"eventTrackingId", result.EventTrackingID(),
		"senderId", senderID,
		"updates", len(updates),
		"pushers", len(b.pushers),
		"code", result.Code(),
		"rejected", len(result.RejectedUpdates()))
	return result
}

// PushEVSEStatusAsync accepts the push and runs it in the background. done,
// if not nil, receives the flattened result once every pusher has answered.
// The Enqueued answer and the background result carry the same event tracking
// id.
func (b *Broadcaster) PushEVSEStatusAsync(senderID string, updates []models.EVSEStatusUpdate, done func(EVSEStatusResult), opts ...results.Option) EVSEStatusResult {
	actor := results.SentBy(b)
	opts = tracked(opts)

	if !b.IsEnabled() {
		return results.PushAdminDown(senderID, actor, updates, append(opts,
			results.WithDescription("status broadcasting is disabled"))...)
	}

	trackingID := results.EventTrackingIDOf(opts...)
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		result := b.PushEVSEStatus(context.Background(), senderID, updates, opts...)
		if result.Code().IsRejection() || result.Code() == results.CodePartial {
			b.log.Warn("background status push incomplete",
				"eventTrackingId", trackingID, "code", result.Code(), "description", result.Description())
		}
		if done != nil {
			done(result)
		}
	}()

	return results.PushEnqueued[models.EVSEStatusUpdate](senderID, actor, append(opts,
		results.WithDescription("status push enqueued"))...)
}

// tracked copies opts and pins the event tracking id, minting one when opts
// carry none. The returned slice has no spare capacity, so appending to it
// never touches the caller's array.
func tracked(opts []results.Option) []results.Option {
	pinned := make([]results.Option, 0, len(opts)+1)
	pinned = append(pinned, opts...)
	pinned = append(pinned, results.WithEventTrackingID(results.EventTrackingIDOf(opts...)))
	return pinned[:len(pinned):len(pinned)]
}

// Wait blocks until all background pushes have finished or ctx is done.
func (b *Broadcaster) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
