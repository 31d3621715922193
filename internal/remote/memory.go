package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Memory is an in-process Client used by tests and offline development.
// Snapshots are delivered synchronously from the mutating call.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]json.RawMessage
	subs    map[int]*memorySub
	nextSub int
}

type memorySub struct {
	collection string
	fn         SnapshotFunc
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]json.RawMessage),
		subs: make(map[int]*memorySub),
	}
}

// WriteAtPath implements Client.
func (m *Memory) WriteAtPath(ctx context.Context, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document at %s: %w", path, err)
	}

	m.mu.Lock()
	m.docs[path] = data
	fns := m.subscribersOf(collectionOf(path))
	docs := m.snapshotLocked(collectionOf(path))
	m.mu.Unlock()

	for _, fn := range fns {
		fn(docs)
	}
	return nil
}

// DeleteAtPath implements Client.
func (m *Memory) DeleteAtPath(ctx context.Context, path string) error {
	m.mu.Lock()
	_, existed := m.docs[path]
	delete(m.docs, path)
	var fns []SnapshotFunc
	var docs []Doc
	if existed {
		fns = m.subscribersOf(collectionOf(path))
		docs = m.snapshotLocked(collectionOf(path))
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(docs)
	}
	return nil
}

// Subscribe implements Client. The initial snapshot is delivered before
// Subscribe returns.
func (m *Memory) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (func(), error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = &memorySub{collection: collection, fn: fn}
	docs := m.snapshotLocked(collection)
	m.mu.Unlock()

	fn(docs)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
	return unsubscribe, nil
}

// AtomicIncrement implements Client.
func (m *Memory) AtomicIncrement(ctx context.Context, path string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur int64
	if raw, ok := m.docs[path]; ok {
		if err := json.Unmarshal(raw, &cur); err != nil {
			return 0, fmt.Errorf("counter at %s is not an integer: %w", path, err)
		}
	}
	cur += delta
	m.docs[path] = json.RawMessage(strconv.FormatInt(cur, 10))
	return cur, nil
}

// CountCollection implements Client.
func (m *Memory) CountCollection(ctx context.Context, collection string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	prefix := collection + "/"
	for path := range m.docs {
		if strings.HasPrefix(path, prefix) {
			n++
		}
	}
	return n, nil
}

// ExistsAtPath implements Client.
func (m *Memory) ExistsAtPath(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[path]
	return ok, nil
}

// Get returns the raw document at path, for test assertions.
func (m *Memory) Get(path string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[path]
	return raw, ok
}

func (m *Memory) subscribersOf(collection string) []SnapshotFunc {
	var fns []SnapshotFunc
	for _, sub := range m.subs {
		if sub.collection == collection {
			fns = append(fns, sub.fn)
		}
	}
	return fns
}

func (m *Memory) snapshotLocked(collection string) []Doc {
	prefix := collection + "/"
	var docs []Doc
	for path, raw := range m.docs {
		if strings.HasPrefix(path, prefix) {
			docs = append(docs, Doc{Path: path, Data: raw})
		}
	}
	return docs
}

func collectionOf(path string) string {
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}
