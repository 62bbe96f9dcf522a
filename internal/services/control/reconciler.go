package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/sems_project/internal/metrics"
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
)

var (
	// ErrStateUnknown: no snapshot has told us the current control state yet.
	ErrStateUnknown = errors.New("control state not known yet")
	// ErrNotManual: manual device controls only apply in manual mode.
	ErrNotManual = errors.New("manual controls require manual mode")
)

// Writer sends a single-field update to the store.
type Writer interface {
	WriteField(ctx context.Context, w messages.FieldWrite) error
}

// Intent is what the reconciler asked the store to do. Whether it happened
// is only known once a snapshot echoes it back.
type Intent struct {
	ID    string         `json:"id"`
	Field messages.Field `json:"field"`
	Value string         `json:"value"`
}

// Reconciler mirrors the transport's control state and turns user intents
// into writes. It never mutates its own copy on an intent: the next snapshot
// is the only thing that changes State.
type Reconciler struct {
	mu    sync.RWMutex
	state entities.ControlState

	writer       Writer
	writeTimeout time.Duration
	dispatch     func(func())
	lg           *slog.Logger
}

type Option func(*Reconciler)

// WithDispatch replaces the goroutine used for fire-and-forget writes.
func WithDispatch(d func(func())) Option { return func(r *Reconciler) { r.dispatch = d } }

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

func WithLogger(lg *slog.Logger) Option { return func(r *Reconciler) { r.lg = lg } }

func NewReconciler(w Writer, opts ...Option) *Reconciler {
	r := &Reconciler{
		writer:       w,
		writeTimeout: 5 * time.Second,
		dispatch:     func(f func()) { go f() },
		lg:           slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Observe overwrites the local copy with what the transport reports.
func (r *Reconciler) Observe(s entities.ControlState) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	if prev != s {
		r.lg.Info("control state changed", "mode", s.Mode, "fan_manual", s.FanManual, "light_manual", s.LightManual)
	}
}

// Forget drops the mirrored state, e.g. when the transport becomes unavailable.
func (r *Reconciler) Forget() {
	r.mu.Lock()
	r.state = entities.ControlState{}
	r.mu.Unlock()
}

func (r *Reconciler) State() (entities.ControlState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.state.Known()
}

// ManualControlsEnabled is true only in manual mode.
func (r *Reconciler) ManualControlsEnabled() bool {
	s, _ := r.State()
	return s.Mode == entities.ModeManual
}

func (r *Reconciler) RequestMode(ctx context.Context, m entities.Mode) (Intent, error) {
	if m != entities.ModeAI && m != entities.ModeManual {
		return Intent{}, fmt.Errorf("%w: mode %q", messages.ErrInvalidWrite, m)
	}
	return r.issue(ctx, messages.FieldMode, string(m))
}

func (r *Reconciler) ToggleMode(ctx context.Context) (Intent, error) {
	s, ok := r.State()
	if !ok {
		return Intent{}, ErrStateUnknown
	}
	return r.RequestMode(ctx, s.Mode.Toggle())
}

func (r *Reconciler) SetFan(ctx context.Context, v entities.SwitchState) (Intent, error) {
	return r.manual(ctx, messages.FieldFanManual, v)
}

func (r *Reconciler) SetLight(ctx context.Context, v entities.SwitchState) (Intent, error) {
	return r.manual(ctx, messages.FieldLightManual, v)
}

func (r *Reconciler) ToggleFan(ctx context.Context) (Intent, error) {
	s, ok := r.State()
	if !ok {
		return Intent{}, ErrStateUnknown
	}
	return r.SetFan(ctx, s.FanManual.Toggle())
}

func (r *Reconciler) ToggleLight(ctx context.Context) (Intent, error) {
	s, ok := r.State()
	if !ok {
		return Intent{}, ErrStateUnknown
	}
	return r.SetLight(ctx, s.LightManual.Toggle())
}

func (r *Reconciler) manual(ctx context.Context, f messages.Field, v entities.SwitchState) (Intent, error) {
	s, ok := r.State()
	if !ok {
		return Intent{}, ErrStateUnknown
	}
	if s.Mode != entities.ModeManual {
		return Intent{}, ErrNotManual
	}
	if v != entities.SwitchOn && v != entities.SwitchOff {
		return Intent{}, fmt.Errorf("%w: %s %q", messages.ErrInvalidWrite, f, v)
	}
	return r.issue(ctx, f, string(v))
}

// issue hands the write to the dispatcher and returns at once. Concurrent
// intents are not serialized; the store's last-write-wins ordering decides.
func (r *Reconciler) issue(ctx context.Context, f messages.Field, value string) (Intent, error) {
	if err := messages.ValidateWrite(f, value); err != nil {
		return Intent{}, err
	}
	w := messages.FieldWrite{
		ID:        uuid.NewString(),
		Field:     f,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
	// the caller's request context ends before the write does
	wctx := context.WithoutCancel(ctx)
	r.dispatch(func() {
		c, cancel := context.WithTimeout(wctx, r.writeTimeout)
		defer cancel()
		if err := r.writer.WriteField(c, w); err != nil {
			metrics.IntentsTotal.WithLabelValues(string(f), "error").Inc()
			r.lg.Error("control write failed", "id", w.ID, "field", f, "value", value, "error", err)
			return
		}
		metrics.IntentsTotal.WithLabelValues(string(f), "sent").Inc()
		r.lg.Info("control write sent", "id", w.ID, "field", f, "value", value)
	})
	return Intent{ID: w.ID, Field: f, Value: value}, nil
}
