package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dilemma-game/internal/domain"
)

// Memory implements Store in-process. It backs tests and offline runs and
// mirrors the Redis implementation's semantics exactly, including the
// per-path version counters and ancestor change notification.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]json.RawMessage
	versions map[string]int64
	subs     map[*Subscription]Callback
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]json.RawMessage),
		versions: make(map[string]int64),
		subs:     make(map[*Subscription]Callback),
	}
}

// Close releases all subscriptions
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = make(map[*Subscription]Callback)
	return nil
}

// Get reads the document at path
func (m *Memory) Get(_ context.Context, path string, out any) (bool, error) {
	m.mu.RLock()
	data, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return true, nil
}

// GetVersioned reads the document and its version counter together
func (m *Memory) GetVersioned(_ context.Context, path string, out any) (int64, bool, error) {
	m.mu.RLock()
	data, ok := m.docs[path]
	version := m.versions[path]
	m.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return 0, false, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return version, true, nil
}

// Set writes the document at path and notifies listeners
func (m *Memory) Set(_ context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	m.mu.Lock()
	m.docs[path] = data
	m.versions[path]++
	m.mu.Unlock()

	m.notify(path, data)
	return nil
}

// SetVersioned writes only if the version counter is unchanged
func (m *Memory) SetVersioned(_ context.Context, path string, value any, expected int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	m.mu.Lock()
	if m.versions[path] != expected {
		m.mu.Unlock()
		return domain.ErrVersionConflict
	}
	m.docs[path] = data
	m.versions[path]++
	m.mu.Unlock()

	m.notify(path, data)
	return nil
}

// Update merges the named top-level fields into the document at path
func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	doc := make(map[string]json.RawMessage)
	if existing, ok := m.docs[path]; ok {
		if err := json.Unmarshal(existing, &doc); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("encoding field %s of %s: %w", k, path, err)
		}
		doc[k] = data
	}
	data, err := json.Marshal(doc)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	m.docs[path] = data
	m.versions[path]++
	m.mu.Unlock()

	m.notify(path, data)
	return nil
}

// Push stores value under collection with a generated id
func (m *Memory) Push(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.NewString()
	if err := m.Set(ctx, collection+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the document at path and notifies listeners
func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.docs, path)
	m.versions[path]++
	m.mu.Unlock()

	m.notify(path, nil)
	return nil
}

// List returns the direct children of a collection
func (m *Memory) List(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]json.RawMessage)
	for path, data := range m.docs {
		if id := childID(collection, path); id != "" {
			out[id] = data
		}
	}
	return out, nil
}

// Listen subscribes fn to changes at path and everything below it
func (m *Memory) Listen(path string, fn Callback) (*Subscription, error) {
	sub := &Subscription{path: path}
	m.mu.Lock()
	m.subs[sub] = fn
	m.mu.Unlock()
	return sub, nil
}

// Unlisten releases a subscription
func (m *Memory) Unlisten(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

// notify fires callbacks for the changed path and every ancestor, on a
// background goroutine to match the remote store's delivery model
func (m *Memory) notify(path string, data json.RawMessage) {
	m.mu.RLock()
	var targets []Callback
	for sub, fn := range m.subs {
		for _, p := range ancestors(path) {
			if sub.path == p {
				targets = append(targets, fn)
				break
			}
		}
	}
	m.mu.RUnlock()

	for _, fn := range targets {
		go fn(path, data)
	}
}
