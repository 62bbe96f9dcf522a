package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
)

// MemoryStore is an in-process Store. Writes are applied to the document
// immediately and pushed to subscribers as a new snapshot (last write wins).
type MemoryStore struct {
	*hub

	mu     sync.Mutex
	doc    messages.Snapshot
	writes []messages.FieldWrite
}

func NewMemoryStore(initial messages.Snapshot) *MemoryStore {
	s := &MemoryStore{hub: newHub()}
	if initial != nil {
		s.Publish(initial)
	}
	return s
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Update, error) {
	return s.subscribe(ctx), nil
}

// Publish replaces the whole document.
func (s *MemoryStore) Publish(doc messages.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = maps.Clone(doc)
	s.pushLocked()
}

// PublishPayload feeds raw bytes as if they came off the wire.
func (s *MemoryStore) PublishPayload(payload []byte) {
	var doc messages.Snapshot
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		s.publish(Update{Kind: KindUnavailable, Err: fmt.Errorf("%w: %v", ErrUnavailable, messages.ErrNotAnObject)})
		return
	}
	s.Publish(doc)
}

func (s *MemoryStore) SetPreviousBill(a entities.Amount) {
	s.publish(Update{Kind: KindPreviousBill, PreviousBill: a})
}

// Disconnect simulates a dropped link. Reconnect replays the document.
func (s *MemoryStore) Disconnect(cause error) {
	s.markDown(fmt.Errorf("%w: %v", ErrUnavailable, cause))
}

func (s *MemoryStore) Reconnect(prevBill entities.Amount) {
	s.SetPreviousBill(prevBill)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		s.pushLocked()
	}
}

func (s *MemoryStore) WriteField(ctx context.Context, w messages.FieldWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := messages.ValidateWrite(w.Field, w.Value); err != nil {
		return err
	}
	if !s.available() {
		return ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		s.doc = messages.Snapshot{}
	}
	s.doc[string(w.Field)] = w.Value
	s.writes = append(s.writes, w)
	s.pushLocked()
	return nil
}

// Writes returns every accepted write in order.
func (s *MemoryStore) Writes() []messages.FieldWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messages.FieldWrite(nil), s.writes...)
}

// pushLocked must run under s.mu so pushes keep the order of the writes.
func (s *MemoryStore) pushLocked() {
	snap, issues := s.doc.Typed()
	s.publish(Update{Kind: KindSnapshot, Snapshot: snap, Issues: issues})
}
