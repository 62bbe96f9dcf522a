package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
	"github.com/LeonardoBeccarini/sems_project/internal/transport"
)

type recordingSink struct {
	mu    sync.Mutex
	views []DerivedView
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Consume(_ context.Context, v DerivedView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return nil
}

func (r *recordingSink) last() (DerivedView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return DerivedView{}, false
	}
	return r.views[len(r.views)-1], true
}

type memBills struct {
	mu sync.Mutex
	a  entities.Amount
}

func (m *memBills) StorePreviousBill(_ context.Context, a entities.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.a = a
	return nil
}

func (m *memBills) PreviousBill(context.Context) (entities.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a, nil
}

func (m *memBills) get() entities.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a
}

type harness struct {
	store *transport.MemoryStore
	rec   *control.Reconciler
	p     *Pipeline
	sink  *recordingSink
	done  chan error
}

func start(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := transport.NewMemoryStore(fullDoc())
	rec := control.NewReconciler(store, control.WithDispatch(func(f func()) { f() }))
	sink := &recordingSink{}
	opts = append(opts, WithSinks(sink))
	p := New(store, testBuilder(t), rec, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{store: store, rec: rec, p: p, sink: sink, done: make(chan error, 1)}
	go func() { h.done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("pipeline did not stop")
		}
	})
	return h
}

func (h *harness) waitFor(t *testing.T, cond func(DerivedView) bool) DerivedView {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.p.Latest()) }, 2*time.Second, 5*time.Millisecond)
	return h.p.Latest()
}

func TestPipeline_LatestStartsUnavailable(t *testing.T) {
	p := New(transport.NewMemoryStore(nil), testBuilder(t), nil)
	assert.False(t, p.Latest().Available())
}

func TestPipeline_BuildsViewFromSnapshot(t *testing.T) {
	h := start(t)
	v := h.waitFor(t, DerivedView.Available)
	assert.InDelta(t, 1.25, v.Metrics.PowerWatts, 1e-9)
	assert.NotZero(t, v.Seq)

	s, ok := h.rec.State()
	require.True(t, ok)
	assert.Equal(t, entities.ModeManual, s.Mode)

	require.Eventually(t, func() bool {
		last, ok := h.sink.last()
		return ok && last.Seq == v.Seq
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_ControlRoundTrip(t *testing.T) {
	h := start(t)
	h.waitFor(t, func(v DerivedView) bool { return v.ManualControlsEnabled })

	_, err := h.rec.ToggleMode(context.Background())
	require.NoError(t, err)

	v := h.waitFor(t, func(v DerivedView) bool {
		return v.Control != nil && v.Control.Mode == entities.ModeAI
	})
	assert.False(t, v.ManualControlsEnabled)
	assert.False(t, h.rec.ManualControlsEnabled())

	_, err = h.rec.SetFan(context.Background(), entities.SwitchOff)
	assert.ErrorIs(t, err, control.ErrNotManual)
}

func TestPipeline_PreviousBillRecomputesBilling(t *testing.T) {
	bills := &memBills{}
	h := start(t, WithPreviousBillStore(bills))
	v := h.waitFor(t, DerivedView.Available)
	assert.False(t, v.Billing.TotalSavingsRM.Valid)

	h.store.SetPreviousBill(entities.Available(100))
	v = h.waitFor(t, func(v DerivedView) bool { return v.Billing != nil && v.Billing.TotalSavingsRM.Valid })
	total, _ := v.Billing.TotalSavingsRM.Get()
	assert.InDelta(t, 57.79, total, 1e-9)
	assert.Equal(t, entities.Available(100), bills.get())
}

func TestPipeline_SeedsPreviousBillFromCache(t *testing.T) {
	bills := &memBills{a: entities.Available(100)}
	h := start(t, WithPreviousBillStore(bills))
	v := h.waitFor(t, DerivedView.Available)
	assert.True(t, v.Billing.PreviousBillRM.Valid)
}

func TestPipeline_UnavailableNeverShowsStaleData(t *testing.T) {
	h := start(t)
	h.waitFor(t, DerivedView.Available)

	h.store.Disconnect(errors.New("link down"))
	v := h.waitFor(t, func(v DerivedView) bool { return !v.Available() })
	assert.Nil(t, v.Metrics)
	assert.Nil(t, v.Billing)
	assert.Contains(t, v.Error, "link down")

	_, ok := h.rec.State()
	assert.False(t, ok)

	h.store.Reconnect(entities.Unavailable)
	v = h.waitFor(t, DerivedView.Available)
	assert.NotNil(t, v.Metrics)
}

func TestPipeline_WatchStreamsViews(t *testing.T) {
	h := start(t)
	h.waitFor(t, DerivedView.Available)

	ctx, cancel := context.WithCancel(context.Background())
	ch := h.p.Watch(ctx)
	first := <-ch
	assert.True(t, first.Available())

	h.store.Publish(fullDocWith("current", 0.5))
	select {
	case v := <-ch:
		assert.Greater(t, v.Seq, first.Seq)
		assert.InDelta(t, 100, v.Metrics.UtilizationPct, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no view")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func fullDocWith(key string, v any) map[string]any {
	d := fullDoc()
	d[key] = v
	return d
}
