package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
)

const maxBody = 1 << 12

func (g *Gateway) HandleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.views.Latest())
}

// HandleViewStream pushes every new view as a server-sent event until the
// client goes away.
func (g *Gateway) HandleViewStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for v := range g.views.Watch(r.Context()) {
		b, err := json.Marshal(v)
		if err != nil {
			g.cfg.Logger.Error("encode view", "seq", v.Seq, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", v.Seq, b); err != nil {
			return
		}
		fl.Flush()
	}
}

func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.RequestTimeout)
	defer cancel()

	v := g.views.Latest()
	resp := HealthResponse{
		StoreAvailable: v.Available(),
		LastSeq:        v.Seq,
	}
	if !v.ComputedAt.IsZero() {
		resp.LastViewAgeS = time.Since(v.ComputedAt).Seconds()
	}
	failed := 0
	if len(g.cfg.Checks) > 0 {
		resp.Checks = make(map[string]string, len(g.cfg.Checks))
		for name, check := range g.cfg.Checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				failed++
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	switch {
	case resp.StoreAvailable && failed == 0:
		resp.Status = "ok"
	case resp.StoreAvailable:
		resp.Status = "degraded"
	default:
		resp.Status = "down"
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReady is 200 only while views come from live data.
func (g *Gateway) HandleReady(w http.ResponseWriter, _ *http.Request) {
	ready := g.views.Latest().Available()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, struct {
		Ready bool `json:"ready"`
	}{ready})
}

func (g *Gateway) HandleControlState(w http.ResponseWriter, _ *http.Request) {
	s, known := g.control.State()
	writeJSON(w, http.StatusOK, ControlResponse{
		Known:                 known,
		State:                 s,
		ManualControlsEnabled: s.Mode == entities.ModeManual,
	})
}

// HandleMode sets {"mode":"ai|manual"}; an empty body toggles.
func (g *Gateway) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	empty, err := decodeBody(r, &req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if empty || strings.TrimSpace(req.Mode) == "" {
		g.respond(w, r, func(ctx context.Context) (control.Intent, error) { return g.control.ToggleMode(ctx) })
		return
	}
	m, err := entities.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	g.respond(w, r, func(ctx context.Context) (control.Intent, error) { return g.control.RequestMode(ctx, m) })
}

func (g *Gateway) HandleFan(w http.ResponseWriter, r *http.Request) {
	g.handleSwitch(w, r, g.control.SetFan, g.control.ToggleFan)
}

func (g *Gateway) HandleLight(w http.ResponseWriter, r *http.Request) {
	g.handleSwitch(w, r, g.control.SetLight, g.control.ToggleLight)
}

func (g *Gateway) handleSwitch(w http.ResponseWriter, r *http.Request,
	set func(context.Context, entities.SwitchState) (control.Intent, error),
	toggle func(context.Context) (control.Intent, error),
) {
	var req switchRequest
	empty, err := decodeBody(r, &req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if empty || strings.TrimSpace(req.State) == "" {
		g.respond(w, r, toggle)
		return
	}
	s, err := entities.ParseSwitch(req.State)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	g.respond(w, r, func(ctx context.Context) (control.Intent, error) { return set(ctx, s) })
}

func (g *Gateway) respond(w http.ResponseWriter, r *http.Request, issue func(context.Context) (control.Intent, error)) {
	in, err := issue(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, IntentResponse{Intent: in, Status: "pending"})
	case errors.Is(err, control.ErrNotManual):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, control.ErrStateUnknown):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, messages.ErrInvalidWrite):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		g.cfg.Logger.Error("control intent failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeBody reports empty=true for a missing body.
func decodeBody(r *http.Request, out any) (bool, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("invalid JSON body: %w", err)
	}
	return false, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
