package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
	"github.com/LeonardoBeccarini/sems_project/internal/transport"
)

type fakeViews struct {
	view pipeline.DerivedView
}

func (f *fakeViews) Latest() pipeline.DerivedView { return f.view }

func (f *fakeViews) Watch(ctx context.Context) <-chan pipeline.DerivedView {
	ch := make(chan pipeline.DerivedView, 1)
	ch <- f.view
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

type fixture struct {
	store *transport.MemoryStore
	rec   *control.Reconciler
	views *fakeViews
	srv   http.Handler
}

func newFixture(t *testing.T, mode entities.Mode) *fixture {
	t.Helper()
	store := transport.NewMemoryStore(nil)
	rec := control.NewReconciler(store, control.WithDispatch(func(f func()) { f() }))
	if mode != entities.ModeUnknown {
		rec.Observe(entities.ControlState{Mode: mode, FanManual: entities.SwitchOff, LightManual: entities.SwitchOn})
	}
	views := &fakeViews{view: pipeline.DerivedView{Seq: 7, Status: pipeline.ViewOK, ComputedAt: time.Now()}}
	g := NewGateway(Config{}, views, rec)
	return &fixture{store: store, rec: rec, views: views, srv: g.Router()}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

func TestHandleView(t *testing.T) {
	f := newFixture(t, entities.ModeAI)
	rr := f.do(http.MethodGet, "/view", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var v pipeline.DerivedView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, uint64(7), v.Seq)
	assert.Equal(t, pipeline.ViewOK, v.Status)
}

func TestHandleReady(t *testing.T) {
	f := newFixture(t, entities.ModeAI)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)

	f.views.view = pipeline.UnavailableView(transport.ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz", "").Code)

	rr := f.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var h HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &h))
	assert.Equal(t, "down", h.Status)
	assert.False(t, h.StoreAvailable)
}

func TestHandleMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      entities.Mode
		body      string
		wantCode  int
		wantValue string
	}{
		{"toggle from ai", entities.ModeAI, "", http.StatusAccepted, "manual"},
		{"toggle from manual", entities.ModeManual, "{}", http.StatusAccepted, "ai"},
		{"explicit", entities.ModeAI, `{"mode":"AI"}`, http.StatusAccepted, "ai"},
		{"unknown state toggle", entities.ModeUnknown, "", http.StatusServiceUnavailable, ""},
		{"bad mode", entities.ModeAI, `{"mode":"turbo"}`, http.StatusBadRequest, ""},
		{"undefined mode word", entities.ModeAI, `{"mode":"auto"}`, http.StatusBadRequest, ""},
		{"bad json", entities.ModeAI, `{"mode":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mode)
			rr := f.do(http.MethodPost, "/control/mode", tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantValue == "" {
				assert.Empty(t, f.store.Writes())
				return
			}
			var resp IntentResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantValue, resp.Value)
			assert.Equal(t, "pending", resp.Status)
			assert.NotEmpty(t, resp.ID)

			writes := f.store.Writes()
			require.Len(t, writes, 1)
			assert.Equal(t, messages.FieldMode, writes[0].Field)
			assert.Equal(t, resp.ID, writes[0].ID)
		})
	}
}

func TestHandleSwitches(t *testing.T) {
	f := newFixture(t, entities.ModeManual)

	rr := f.do(http.MethodPost, "/control/fan", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	rr = f.do(http.MethodPost, "/control/light", `{"state":"off"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	rr = f.do(http.MethodPost, "/control/light", `{"state":"dim"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	writes := f.store.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, messages.FieldFanManual, writes[0].Field)
	assert.Equal(t, "ON", writes[0].Value)
	assert.Equal(t, messages.FieldLightManual, writes[1].Field)
	assert.Equal(t, "OFF", writes[1].Value)

	// the reconciler still reports the old state until a snapshot arrives
	s, _ := f.rec.State()
	assert.Equal(t, entities.SwitchOff, s.FanManual)
}

func TestHandleSwitches_ConflictInAIMode(t *testing.T) {
	f := newFixture(t, entities.ModeAI)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/control/fan", `{"state":"ON"}`).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/control/light", "").Code)
	assert.Empty(t, f.store.Writes())
}

func TestHandleControlState(t *testing.T) {
	f := newFixture(t, entities.ModeManual)
	rr := f.do(http.MethodGet, "/control", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ControlResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Known)
	assert.True(t, resp.ManualControlsEnabled)
	assert.Equal(t, entities.SwitchOn, resp.State.LightManual)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, entities.ModeAI)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/control/mode", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/history", "").Code)
}

func TestHandleViewStream(t *testing.T) {
	f := newFixture(t, entities.ModeAI)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/view/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.srv.ServeHTTP(rr, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "id: 7\ndata: ")
}
