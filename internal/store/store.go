// Package store abstracts the shared remote document store that both game
// clients read and write. Documents live at slash-separated paths
// (players/{id}, rooms/{id}, games/{id}/rounds/{r}/questions/{q}/...).
// The store carries no business knowledge; it is a resource-management
// seam only.
package store

import (
	"context"
	"encoding/json"
	"strings"
)

// Callback is invoked when a listened path, or anything under it, changes.
// data is the new document JSON, or nil when the path was deleted.
// Callbacks fire on a background goroutine and must only enqueue work,
// never block.
type Callback func(path string, data json.RawMessage)

// Subscription is the handle returned by Listen, released via Unlisten
type Subscription struct {
	path   string
	cancel func()
}

// Path returns the listened path
func (s *Subscription) Path() string { return s.path }

// Store is the shared document store contract. Every implementation must
// keep a per-path version counter so callers can do compare-and-set
// writes on contended documents instead of blind read-modify-write.
type Store interface {
	// Get reads the document at path into out. found is false when the
	// path holds no document.
	Get(ctx context.Context, path string, out any) (found bool, err error)

	// GetVersioned is Get plus the path's current version counter
	GetVersioned(ctx context.Context, path string, out any) (version int64, found bool, err error)

	// Set writes the document at path, replacing any existing value
	Set(ctx context.Context, path string, value any) error

	// SetVersioned writes only if the path's version counter still equals
	// expected; otherwise it returns domain.ErrVersionConflict. A path
	// that has never been written has version 0.
	SetVersioned(ctx context.Context, path string, value any, expected int64) error

	// Update merges the named top-level fields into the document at path.
	// Nested structures are never deep-merged; callers supply the full
	// sub-structure they intend to replace.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Push stores value under collection with a generated id and returns it
	Push(ctx context.Context, collection string, value any) (string, error)

	// Delete removes the document at path
	Delete(ctx context.Context, path string) error

	// List returns the direct children of a collection, keyed by child id
	List(ctx context.Context, collection string) (map[string]json.RawMessage, error)

	// Listen subscribes fn to changes at path and everything below it
	Listen(path string, fn Callback) (*Subscription, error)

	// Unlisten releases a subscription
	Unlisten(sub *Subscription)

	// Close releases all resources and subscriptions
	Close() error
}

// ancestors returns path and every ancestor path, shortest first:
// ancestors("a/b/c") -> ["a", "a/b", "a/b/c"]
func ancestors(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}
	return out
}

// childID extracts the direct-child id of collection from path, or ""
// when path is not a direct child
func childID(collection, path string) string {
	rest, ok := strings.CutPrefix(path, collection+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}
