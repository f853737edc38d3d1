package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atria-live/presence/internal/model"
)

// Redis is a UserCache sharing one room's roster across processes as a
// Redis hash: field = user id, value = JSON-encoded user.
type Redis struct {
	client    redis.UniversalClient
	loader    Loader
	logger    *slog.Logger
	key       string
	opTimeout time.Duration
}

// NewRedis creates a Redis-backed cache for one room. The caller owns the
// client's lifecycle. opTimeout bounds each operation when the caller's
// context has no deadline; zero disables the bound.
func NewRedis(client redis.UniversalClient, roomID, keyPrefix string, opTimeout time.Duration, loader Loader, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:    client,
		loader:    loader,
		logger:    logger.With("cache", "redis"),
		key:       rosterKey(keyPrefix, roomID),
		opTimeout: opTimeout,
	}
}

// rosterKey builds the hash key holding a room's occupants.
func rosterKey(prefix, roomID string) string {
	return prefix + "room:" + roomID + ":users"
}

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

// FetchUserCollection replaces the roster hash with the loader's view in
// one pipeline round trip.
func (r *Redis) FetchUserCollection(ctx context.Context) error {
	if r.loader == nil {
		return ErrNoLoader
	}

	users, err := r.loader(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	fields := make(map[string]any, len(users))
	for _, u := range users {
		data, err := encodeUser(u)
		if err != nil {
			return err
		}
		fields[u.ID] = data
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, r.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}

	r.logger.Debug("roster replaced", "users", len(fields))
	return nil
}

// AddUser inserts or replaces one occupant.
func (r *Redis) AddUser(ctx context.Context, id string, user model.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.HSet(ctx, r.key, id, data).Err(); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// RemoveUser drops one occupant.
func (r *Redis) RemoveUser(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.HDel(ctx, r.key, id).Err(); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	return nil
}

// UpdatePosition moves an occupant already in the hash.
func (r *Redis) UpdatePosition(ctx context.Context, id string, pos model.Position) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := r.client.HGet(ctx, r.key, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("read user: %w", err)
	}

	u, err := decodeUser(data)
	if err != nil {
		return err
	}
	u.Position = pos

	updated, err := encodeUser(u)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, id, updated).Err(); err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

// User returns one occupant by id.
func (r *Redis) User(ctx context.Context, id string) (model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := r.client.HGet(ctx, r.key, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("read user: %w", err)
	}
	return decodeUser(data)
}

// Count returns the roster size.
func (r *Redis) Count(ctx context.Context) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.client.HLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}

func encodeUser(u model.User) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	return data, nil
}

func decodeUser(data []byte) (model.User, error) {
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}
