// pkg/realtimestore/memory.go
package realtimestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and single-node runs. It
// mirrors the Postgres store's semantics: conditional writes are atomic and
// subscribers receive coalesced whole-collection snapshots.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]map[string]json.RawMessage
	order map[string][]string
	subs  map[string][]chan Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]map[string]json.RawMessage),
		order: make(map[string][]string),
		subs:  make(map[string][]chan Snapshot),
	}
}

func (s *MemoryStore) Push(ctx context.Context, path string, doc any) (string, error) {
	key := uuid.NewString()
	if err := s.Set(ctx, path, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MemoryStore) Set(ctx context.Context, path, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(path)
	if _, exists := coll[key]; !exists {
		s.order[path] = append(s.order[path], key)
	}
	coll[key] = raw
	s.fanOutLocked(path)
	return nil
}

func (s *MemoryStore) SetIfAbsent(ctx context.Context, path, key string, doc any) (bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(path)
	if _, exists := coll[key]; exists {
		return false, nil
	}
	coll[key] = raw
	s.order[path] = append(s.order[path], key)
	s.fanOutLocked(path)
	return true, nil
}

func (s *MemoryStore) Update(ctx context.Context, path, key string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(path)
	raw, exists := coll[key]
	if !exists {
		return ErrNotFound
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal merged document: %w", err)
	}
	coll[key] = merged
	s.fanOutLocked(path)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, path, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(path)
	if _, exists := coll[key]; !exists {
		return nil
	}
	delete(coll, key)
	keys := s.order[path]
	for i, k := range keys {
		if k == key {
			s.order[path] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	s.fanOutLocked(path)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path), nil
}

func (s *MemoryStore) GetOne(ctx context.Context, path, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exists := s.collection(path)[key]
	if !exists {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, nil
}

func (s *MemoryStore) Subscribe(path string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subs[path] = append(s.subs[path], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.subs[path]
		for i, c := range chans {
			if c == ch {
				s.subs[path] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Keys returns collection keys in insertion order, matching the push order
// the hosted store would report.
func (s *MemoryStore) Keys(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order[path]...)
}

func (s *MemoryStore) collection(path string) map[string]json.RawMessage {
	coll, ok := s.data[path]
	if !ok {
		coll = make(map[string]json.RawMessage)
		s.data[path] = coll
	}
	return coll
}

func (s *MemoryStore) snapshotLocked(path string) Snapshot {
	snap := make(Snapshot, len(s.data[path]))
	for k, v := range s.data[path] {
		raw := make(json.RawMessage, len(v))
		copy(raw, v)
		snap[k] = raw
	}
	return snap
}

func (s *MemoryStore) fanOutLocked(path string) {
	if len(s.subs[path]) == 0 {
		return
	}
	snap := s.snapshotLocked(path)
	for _, ch := range s.subs[path] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
