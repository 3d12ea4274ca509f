package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
)

// retryStore decorates another Store with a bounded retry policy: up to
// Attempts tries, the delay doubling from BaseDelay between them. The
// first attempt never waits. Version conflicts are a protocol signal,
// not a transient fault, and pass straight through. When the budget is
// exhausted the last error propagates to the caller unchanged.
type retryStore struct {
	inner    Store
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// WithRetry wraps a Store with the configured retry policy
func WithRetry(inner Store, cfg *config.StoreConfig, logger *slog.Logger) Store {
	return &retryStore{
		inner:    inner,
		attempts: cfg.RetryAttempts,
		delay:    cfg.RetryDelay,
		logger:   logger,
	}
}

func (r *retryStore) do(ctx context.Context, name, path string, op func() error) error {
	var lastErr error
	delay := r.delay
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, domain.ErrVersionConflict) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		r.logger.Warn("store operation failed",
			"op", name,
			"path", path,
			"attempt", attempt,
			"error", lastErr,
		)
	}
	return lastErr
}

func (r *retryStore) Get(ctx context.Context, path string, out any) (bool, error) {
	var found bool
	err := r.do(ctx, "get", path, func() error {
		var err error
		found, err = r.inner.Get(ctx, path, out)
		return err
	})
	return found, err
}

func (r *retryStore) GetVersioned(ctx context.Context, path string, out any) (int64, bool, error) {
	var (
		version int64
		found   bool
	)
	err := r.do(ctx, "get_versioned", path, func() error {
		var err error
		version, found, err = r.inner.GetVersioned(ctx, path, out)
		return err
	})
	return version, found, err
}

func (r *retryStore) Set(ctx context.Context, path string, value any) error {
	return r.do(ctx, "set", path, func() error {
		return r.inner.Set(ctx, path, value)
	})
}

func (r *retryStore) SetVersioned(ctx context.Context, path string, value any, expected int64) error {
	return r.do(ctx, "set_versioned", path, func() error {
		return r.inner.SetVersioned(ctx, path, value, expected)
	})
}

func (r *retryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return r.do(ctx, "update", path, func() error {
		return r.inner.Update(ctx, path, fields)
	})
}

func (r *retryStore) Push(ctx context.Context, collection string, value any) (string, error) {
	var id string
	err := r.do(ctx, "push", collection, func() error {
		var err error
		id, err = r.inner.Push(ctx, collection, value)
		return err
	})
	return id, err
}

func (r *retryStore) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "delete", path, func() error {
		return r.inner.Delete(ctx, path)
	})
}

func (r *retryStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	err := r.do(ctx, "list", collection, func() error {
		var err error
		out, err = r.inner.List(ctx, collection)
		return err
	})
	return out, err
}

func (r *retryStore) Listen(path string, fn Callback) (*Subscription, error) {
	return r.inner.Listen(path, fn)
}

func (r *retryStore) Unlisten(sub *Subscription) {
	r.inner.Unlisten(sub)
}

func (r *retryStore) Close() error {
	return r.inner.Close()
}
