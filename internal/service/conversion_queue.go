package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/arturoeanton/dyana-web/internal/readiness"
	"github.com/arturoeanton/dyana-web/pkg/config"
	"github.com/google/uuid"
)

const (
	DefaultQueueMax    = 20
	DefaultDedupWindow = 10 * time.Minute
)

// QueueRepository persists pending conversion events and the last enqueue
// time per event name. Append stores the event and the new enqueue times
// atomically.
type QueueRepository interface {
	Append(ctx context.Context, ev domain.ConversionEvent, max int, recent map[string]time.Time) error
	List(ctx context.Context) ([]domain.ConversionEvent, error)
	Remove(ctx context.Context, ids []string) error
	Recent(ctx context.Context) (map[string]time.Time, error)
}

// ConversionQueueConfig tunes the queue. Zero values take the defaults.
type ConversionQueueConfig struct {
	Allowed     []string
	Conversions config.Conversions
	MaxEntries  int
	DedupWindow time.Duration
	Retry       readiness.Policy
	Now         func() time.Time
}

// ConversionQueue buffers conversion events until the analytics sink is
// ready and delivers them all-or-nothing.
type ConversionQueue struct {
	repo        QueueRepository
	sink        port.AnalyticsSink
	allowed     map[string]struct{}
	conversions config.Conversions
	max         int
	dedup       time.Duration
	retry       readiness.Policy
	now         func() time.Time

	enqueueMu sync.Mutex
	flushMu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConversionQueue wires a queue to its storage and sink.
func NewConversionQueue(repo QueueRepository, sink port.AnalyticsSink, cfg ConversionQueueConfig) *ConversionQueue {
	if len(cfg.Allowed) == 0 {
		cfg.Allowed = domain.ConversionEventNames
	}
	if cfg.Conversions == nil {
		cfg.Conversions = config.DefaultConversions()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultQueueMax
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = readiness.Policy{Attempts: 6, Delay: 500 * time.Millisecond}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	allowed := make(map[string]struct{}, len(cfg.Allowed))
	for _, name := range cfg.Allowed {
		allowed[name] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ConversionQueue{
		repo:        repo,
		sink:        sink,
		allowed:     allowed,
		conversions: cfg.Conversions,
		max:         cfg.MaxEntries,
		dedup:       cfg.DedupWindow,
		retry:       cfg.Retry,
		now:         cfg.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue records a conversion event and kicks delivery. Names outside the
// allowed set return ErrEventNotAllowed and change nothing. A name already
// enqueued within the dedup window is dropped, but delivery is still kicked.
func (q *ConversionQueue) Enqueue(ctx context.Context, name string, params map[string]any) error {
	if _, ok := q.allowed[name]; !ok {
		return fmt.Errorf("%w: %q", port.ErrEventNotAllowed, name)
	}

	q.enqueueMu.Lock()
	queued, err := q.enqueueLocked(ctx, name, params)
	q.enqueueMu.Unlock()
	if err != nil {
		return err
	}
	if !queued {
		slog.Debug("conversion deduplicated", "event", name)
	}

	q.Kick()
	return nil
}

func (q *ConversionQueue) enqueueLocked(ctx context.Context, name string, params map[string]any) (bool, error) {
	now := q.now()

	recent, err := q.repo.Recent(ctx)
	if err != nil {
		return false, fmt.Errorf("load recent events: %w", err)
	}
	if last, ok := recent[name]; ok && now.Sub(last) < q.dedup {
		return false, nil
	}

	if params == nil {
		params = map[string]any{}
	}
	for n, ts := range recent {
		if now.Sub(ts) >= q.dedup {
			delete(recent, n)
		}
	}
	recent[name] = now

	ev := domain.ConversionEvent{ID: uuid.NewString(), Name: name, Params: params, TS: now}
	if err := q.repo.Append(ctx, ev, q.max, recent); err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return true, nil
}

// Kick starts an asynchronous delivery attempt. Use it for mount,
// visibility and page-hide triggers.
func (q *ConversionQueue) Kick() {
	if q.ctx.Err() != nil {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.Flush(q.ctx); err != nil {
			slog.Debug("conversion delivery deferred", "error", err)
		}
	}()
}

// Flush delivers every queued event. It waits for the sink per the retry
// policy; if the sink never becomes ready, or any call fails, the queue is
// left intact for the next trigger.
func (q *ConversionQueue) Flush(ctx context.Context) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	events, err := q.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list queued events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	if err := readiness.Poll(ctx, q.retry, q.sink.Ready); err != nil {
		if errors.Is(err, readiness.ErrExhausted) {
			return fmt.Errorf("%w: %v", port.ErrSinkNotReady, err)
		}
		return err
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if err := q.dispatch(ctx, ev); err != nil {
			slog.Warn("conversion delivery failed", "event", ev.Name, "id", ev.ID, "error", err)
			return fmt.Errorf("%w: %v", port.ErrAnalyticsDelivery, err)
		}
		ids = append(ids, ev.ID)
	}

	if err := q.repo.Remove(ctx, ids); err != nil {
		return fmt.Errorf("clear delivered events: %w", err)
	}
	slog.Info("conversions delivered", "count", len(ids))
	return nil
}

func (q *ConversionQueue) dispatch(ctx context.Context, ev domain.ConversionEvent) error {
	if err := q.sink.Event(ctx, ev.Name, ev.Params); err != nil {
		return err
	}
	conv, ok := q.conversions[ev.Name]
	if !ok {
		return nil
	}
	return q.sink.Conversion(ctx, conv.Label, conv.Value, conv.Currency)
}

// Wait blocks until in-flight deliveries finish.
func (q *ConversionQueue) Wait() {
	q.wg.Wait()
}

// Drain waits for in-flight deliveries, then makes one last delivery
// attempt bounded by ctx instead of the queue's own lifetime. Use it on
// unload before Close.
func (q *ConversionQueue) Drain(ctx context.Context) error {
	q.wg.Wait()
	return q.Flush(ctx)
}

// Close cancels pending deliveries and waits for them.
func (q *ConversionQueue) Close() {
	q.cancel()
	q.wg.Wait()
}
