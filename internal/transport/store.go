// Package transport connects the backend to the key-value document the
// installation publishes: whole-snapshot pushes in, single-field writes out.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
)

var ErrUnavailable = errors.New("telemetry store unavailable")

type Kind string

const (
	KindSnapshot     Kind = "snapshot"
	KindPreviousBill Kind = "previous_bill"
	KindUnavailable  Kind = "unavailable"
)

// Update is one push from the store. Only the fields of its Kind are set.
type Update struct {
	Kind         Kind
	Snapshot     entities.TelemetrySnapshot
	Issues       []entities.FieldIssue
	PreviousBill entities.Amount
	Err          error
}

// Store is the transport seen by the pipeline and the reconciler.
//
// Subscribe starts a new sequence that first replays whatever the store
// currently holds. The channel is closed when ctx is done.
type Store interface {
	Subscribe(ctx context.Context) (<-chan Update, error)
	WriteField(ctx context.Context, w messages.FieldWrite) error
}

const subscriberBuffer = 16

// hub keeps the retained state and fans updates out to subscribers.
type hub struct {
	mu       sync.Mutex
	snapshot *Update
	prevBill *Update
	down     *Update
	subs     map[chan Update]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Update]struct{})}
}

func (h *hub) subscribe(ctx context.Context) <-chan Update {
	ch := make(chan Update, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	for _, u := range h.retainedLocked() {
		offer(ch, u)
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

func (h *hub) retainedLocked() []Update {
	if h.down != nil {
		return []Update{*h.down}
	}
	var out []Update
	if h.prevBill != nil {
		out = append(out, *h.prevBill)
	}
	if h.snapshot != nil {
		out = append(out, *h.snapshot)
	}
	return out
}

func (h *hub) publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch u.Kind {
	case KindSnapshot:
		h.snapshot = &u
	case KindPreviousBill:
		h.prevBill = &u
	case KindUnavailable:
		h.down = &u
	}
	if h.down != nil && u.Kind != KindUnavailable {
		// data while marked down means the link came back
		h.down = nil
	}
	for ch := range h.subs {
		offer(ch, u)
	}
}

// markDown forgets retained data: after a reconnect the broker replays it.
func (h *hub) markDown(err error) {
	h.mu.Lock()
	h.snapshot, h.prevBill = nil, nil
	h.mu.Unlock()
	h.publish(Update{Kind: KindUnavailable, Err: err})
}

func (h *hub) available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.down == nil
}

// offer never blocks. When a subscriber falls behind, its pending updates
// are coalesced to the newest one of each kind, so a burst of snapshots
// cannot push out a previous bill or an unavailable mark.
func offer(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	var pending []Update
	for drained := false; !drained; {
		select {
		case p := <-ch:
			pending = append(pending, p)
		default:
			drained = true
		}
	}
	for _, p := range coalesce(append(pending, u)) {
		push(ch, p)
	}
}

// push drops the oldest entry until u fits. Only a buffer smaller than the
// number of kinds ever needs it.
func push(ch chan Update, u Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// coalesce keeps the last update of each kind, in the order those last
// updates arrived.
func coalesce(us []Update) []Update {
	last := make(map[Kind]int, 3)
	for i, u := range us {
		last[u.Kind] = i
	}
	out := make([]Update, 0, len(last))
	for i, u := range us {
		if last[u.Kind] == i {
			out = append(out, u)
		}
	}
	return out
}
