package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
)

// Writer incapsula la WriteAPI asincrona: scrive ogni view come punto Influx
// e traccia l'ultimo errore di scrittura per /readyz.
type Writer struct {
	api     api.WriteAPI
	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

func NewWriter(w api.WriteAPI) *Writer {
	ww := &Writer{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				slog.Error("influx write error", "error", err)
			}
		}
	}()
	return ww
}

func (w *Writer) Name() string { return "influx" }

// Consume accoda la view; gli errori arrivano dopo tramite Errors().
func (w *Writer) Consume(_ context.Context, v pipeline.DerivedView) error {
	w.api.WritePoint(ViewToPoint(v))
	w.mu.Lock()
	w.written++
	w.mu.Unlock()
	return nil
}

func (w *Writer) Flush() { w.api.Flush() }

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) Written() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}
