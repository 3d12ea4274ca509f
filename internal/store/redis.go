package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
)

// setVersionedScript writes a document only if its version counter still
// matches the caller's expectation, bumping the counter on success.
var setVersionedScript = redis.NewScript(`
local ver = tonumber(redis.call('GET', KEYS[2]) or '0')
if ver ~= tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('INCR', KEYS[2])
return 1
`)

// Redis implements Store on a Redis instance: one key per document path,
// a companion version-counter key per path, and pub/sub channels per path
// segment for the listen primitive.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	subs map[*Subscription]*redis.PubSub
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(cfg *config.RedisConfig, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger,
		subs:   make(map[*Subscription]*redis.PubSub),
	}, nil
}

func (r *Redis) key(path string) string     { return r.prefix + ":doc:" + path }
func (r *Redis) verKey(path string) string  { return r.prefix + ":ver:" + path }
func (r *Redis) channel(path string) string { return r.prefix + ":sub:" + path }

// Close releases the client and all active subscriptions
func (r *Redis) Close() error {
	r.mu.Lock()
	for sub, ps := range r.subs {
		ps.Close()
		delete(r.subs, sub)
	}
	r.mu.Unlock()
	return r.client.Close()
}

// Get reads the document at path
func (r *Redis) Get(ctx context.Context, path string, out any) (bool, error) {
	data, err := r.client.Get(ctx, r.key(path)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %s: %w", path, err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return true, nil
}

// GetVersioned reads the document and its version counter together
func (r *Redis) GetVersioned(ctx context.Context, path string, out any) (int64, bool, error) {
	pipe := r.client.Pipeline()
	docCmd := pipe.Get(ctx, r.key(path))
	verCmd := pipe.Get(ctx, r.verKey(path))
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return 0, false, fmt.Errorf("getting versioned %s: %w", path, err)
	}

	data, err := docCmd.Bytes()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting %s: %w", path, err)
	}

	version, err := verCmd.Int64()
	if err == redis.Nil {
		version = 0
	} else if err != nil {
		return 0, false, fmt.Errorf("getting version of %s: %w", path, err)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return 0, false, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return version, true, nil
}

// Set writes the document at path and notifies listeners
func (r *Redis) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(path), data, 0)
	pipe.Incr(ctx, r.verKey(path))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting %s: %w", path, err)
	}

	r.publish(ctx, path, data)
	return nil
}

// SetVersioned writes only if the version counter is unchanged
func (r *Redis) SetVersioned(ctx context.Context, path string, value any, expected int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	ok, err := setVersionedScript.Run(ctx, r.client,
		[]string{r.key(path), r.verKey(path)}, data, expected).Int()
	if err != nil {
		return fmt.Errorf("setting versioned %s: %w", path, err)
	}
	if ok != 1 {
		return domain.ErrVersionConflict
	}

	r.publish(ctx, path, data)
	return nil
}

// updateAttempts bounds the merge loop on version conflicts
const updateAttempts = 5

// Update merges the named top-level fields into the document at path.
// The merge runs under the version guard: a concurrent writer between the
// read and the write bumps the counter, and the merge restarts against
// the fresh document instead of clobbering the other writer's fields.
func (r *Redis) Update(ctx context.Context, path string, fields map[string]any) error {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		var doc map[string]json.RawMessage
		version, found, err := r.GetVersioned(ctx, path, &doc)
		if err != nil {
			return err
		}
		if !found {
			doc = make(map[string]json.RawMessage, len(fields))
		}
		for k, v := range fields {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding field %s of %s: %w", k, path, err)
			}
			doc[k] = data
		}

		err = r.SetVersioned(ctx, path, doc, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("updating %s: %w", path, domain.ErrVersionConflict)
}

// Push stores value under collection with a generated id
func (r *Redis) Push(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.NewString()
	if err := r.Set(ctx, collection+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the document at path and notifies listeners
func (r *Redis) Delete(ctx context.Context, path string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(path))
	pipe.Incr(ctx, r.verKey(path))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}

	r.publish(ctx, path, nil)
	return nil
}

// List returns the direct children of a collection using a SCAN over the
// document key prefix
func (r *Redis) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	pattern := r.key(collection + "/*")
	out := make(map[string]json.RawMessage)

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	keyPrefix := r.prefix + ":doc:"
	for iter.Next(ctx) {
		path := iter.Val()[len(keyPrefix):]
		id := childID(collection, path)
		if id == "" {
			continue
		}
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", collection, err)
		}
		out[id] = data
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}
	return out, nil
}

// Listen subscribes fn to changes at path and everything below it
func (r *Redis) Listen(path string, fn Callback) (*Subscription, error) {
	ps := r.client.Subscribe(context.Background(), r.channel(path))
	// Force the subscription before returning so no change is missed
	if _, err := ps.Receive(context.Background()); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", path, err)
	}

	sub := &Subscription{path: path}
	sub.cancel = func() { ps.Close() }

	go func() {
		for msg := range ps.Channel() {
			var note changeNote
			if err := json.Unmarshal([]byte(msg.Payload), &note); err != nil {
				r.logger.Warn("malformed change notification", "path", path, "error", err)
				continue
			}
			fn(note.Path, note.Data)
		}
	}()

	r.mu.Lock()
	r.subs[sub] = ps
	r.mu.Unlock()
	return sub, nil
}

// Unlisten releases a subscription
func (r *Redis) Unlisten(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	_, ok := r.subs[sub]
	delete(r.subs, sub)
	r.mu.Unlock()
	if ok {
		sub.cancel()
	}
}

// changeNote is the payload published to listeners
type changeNote struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

// publish notifies the changed path and every ancestor so collection-level
// listeners (room list, game tree) see child writes
func (r *Redis) publish(ctx context.Context, path string, data json.RawMessage) {
	payload, err := json.Marshal(changeNote{Path: path, Data: data})
	if err != nil {
		r.logger.Warn("encoding change notification", "path", path, "error", err)
		return
	}
	pipe := r.client.Pipeline()
	for _, p := range ancestors(path) {
		pipe.Publish(ctx, r.channel(p), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("publishing change notification", "path", path, "error", err)
	}
}
