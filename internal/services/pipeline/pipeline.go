package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeonardoBeccarini/sems_project/internal/metrics"
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
	"github.com/LeonardoBeccarini/sems_project/internal/transport"
)

// Sink receives every published view. Sinks run on their own goroutine and
// may lag; a slow sink only ever skips views, it never delays the pipeline.
type Sink interface {
	Name() string
	Consume(ctx context.Context, v DerivedView) error
}

// PreviousBillStore persists the last known previous bill across restarts.
type PreviousBillStore interface {
	StorePreviousBill(ctx context.Context, a entities.Amount) error
	PreviousBill(ctx context.Context) (entities.Amount, error)
}

type Pipeline struct {
	store      transport.Store
	builder    Builder
	reconciler *control.Reconciler
	bills      PreviousBillStore
	sinks      []Sink
	lg         *slog.Logger

	seq    atomic.Uint64
	latest atomic.Pointer[DerivedView]

	// only touched by the Run goroutine
	prevBill   entities.Amount
	lastIssues []entities.FieldIssue

	mu       sync.Mutex
	watchers map[chan DerivedView]struct{}
}

type Option func(*Pipeline)

func WithSinks(s ...Sink) Option { return func(p *Pipeline) { p.sinks = append(p.sinks, s...) } }

func WithPreviousBillStore(s PreviousBillStore) Option { return func(p *Pipeline) { p.bills = s } }

func WithLogger(lg *slog.Logger) Option { return func(p *Pipeline) { p.lg = lg } }

func New(store transport.Store, b Builder, r *control.Reconciler, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		builder:    b,
		reconciler: r,
		lg:         slog.Default(),
		watchers:   make(map[chan DerivedView]struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.latest.Store(ptr(UnavailableView(errors.New("no snapshot received yet"))))
	return p
}

// Latest returns the most recent view. Before the first snapshot it is an
// unavailable view.
func (p *Pipeline) Latest() DerivedView { return *p.latest.Load() }

// Watch streams every new view until ctx is done. The current view is sent
// first. A watcher that falls behind only sees the newest view.
func (p *Pipeline) Watch(ctx context.Context) <-chan DerivedView {
	ch := make(chan DerivedView, 1)
	p.mu.Lock()
	p.watchers[ch] = struct{}{}
	ch <- p.Latest()
	p.mu.Unlock()
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.watchers, ch)
		close(ch)
		p.mu.Unlock()
	}()
	return ch
}

// Run consumes the store until ctx is done. Losing the store is not fatal:
// an unavailable view is published and Run waits for the next update.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.bills != nil {
		if a, err := p.bills.PreviousBill(ctx); err != nil {
			p.lg.Warn("could not load cached previous bill", "error", err)
		} else {
			p.prevBill = a
		}
	}

	updates, err := p.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	sinkCtx, stopSinks := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	queues := make([]chan DerivedView, len(p.sinks))
	for i, s := range p.sinks {
		queues[i] = make(chan DerivedView, 1)
		wg.Add(1)
		go func(s Sink, q <-chan DerivedView) {
			defer wg.Done()
			for v := range q {
				if err := s.Consume(sinkCtx, v); err != nil {
					metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
					p.lg.Warn("sink failed", "sink", s.Name(), "seq", v.Seq, "error", err)
				}
			}
		}(s, queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		stopSinks()
	}()

	for u := range updates {
		v, ok := p.apply(ctx, u)
		if !ok {
			continue
		}
		p.publish(v, queues)
	}
	return ctx.Err()
}

// apply folds one update into the pipeline state and returns the view to
// publish, if any.
func (p *Pipeline) apply(ctx context.Context, u transport.Update) (DerivedView, bool) {
	switch u.Kind {
	case transport.KindPreviousBill:
		if u.PreviousBill == p.prevBill {
			return DerivedView{}, false
		}
		p.prevBill = u.PreviousBill
		if p.bills != nil && u.PreviousBill.Valid {
			if err := p.bills.StorePreviousBill(ctx, u.PreviousBill); err != nil {
				p.lg.Warn("could not cache previous bill", "error", err)
			}
		}
		// the bill comparison changes, the snapshot does not
		last := p.Latest()
		if !last.Available() || last.Snapshot == nil {
			return DerivedView{}, false
		}
		return p.builder.Build(*last.Snapshot, p.lastIssues, p.prevBill), true

	case transport.KindSnapshot:
		start := time.Now()
		v := p.builder.Build(u.Snapshot, u.Issues, p.prevBill)
		metrics.ComputeLatency.Observe(time.Since(start).Seconds())
		p.lastIssues = u.Issues
		p.recordIssues(u.Issues)
		if p.reconciler != nil {
			p.reconciler.Observe(u.Snapshot.Control)
		}
		metrics.TransportAvailable.Set(1)
		return v, true

	case transport.KindUnavailable:
		metrics.SnapshotsTotal.WithLabelValues("rejected").Inc()
		metrics.TransportAvailable.Set(0)
		if p.reconciler != nil {
			p.reconciler.Forget()
		}
		p.lg.Warn("telemetry store unavailable", "error", u.Err)
		return UnavailableView(u.Err), true
	}
	p.lg.Debug("ignoring update", "kind", u.Kind)
	return DerivedView{}, false
}

func (p *Pipeline) recordIssues(issues []entities.FieldIssue) {
	if len(issues) == 0 {
		metrics.SnapshotsTotal.WithLabelValues("ok").Inc()
		return
	}
	metrics.SnapshotsTotal.WithLabelValues("partial").Inc()
	for _, is := range issues {
		metrics.FieldIssuesTotal.WithLabelValues(is.Field).Inc()
		if errors.Is(is.Err, entities.ErrMalformedNumeric) {
			p.lg.Warn("malformed telemetry field", "field", is.Field, "error", is.Err)
		} else {
			p.lg.Debug("telemetry field defaulted", "field", is.Field, "error", is.Err)
		}
	}
}

func (p *Pipeline) publish(v DerivedView, queues []chan DerivedView) {
	v.Seq = p.seq.Add(1)
	v.ComputedAt = time.Now().UTC()
	p.latest.Store(&v)

	if v.Metrics != nil {
		metrics.PowerWatts.Set(v.Metrics.PowerWatts)
	}
	if v.Billing != nil {
		metrics.MonthlyCostRM.Set(v.Billing.EstimatedMonthlyCostRM)
	}

	p.mu.Lock()
	for ch := range p.watchers {
		replace(ch, v)
	}
	p.mu.Unlock()
	for _, q := range queues {
		replace(q, v)
	}
}

// replace leaves only v in a 1-slot channel without blocking.
func replace(ch chan DerivedView, v DerivedView) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func ptr[T any](v T) *T { return &v }
