package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/atria-live/presence/internal/cache"
	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/session"
)

// Pipeline is the handler fan-out recognized events are forwarded to.
// *dispatch.Registry satisfies it.
type Pipeline interface {
	Dispatch(evt model.EventType, payload json.RawMessage, sess session.Snapshot) int
}

// Router consumes raw frames from the gateway transport.
type Router interface {
	// HandleFrame processes one inbound frame synchronously.
	HandleFrame(data []byte)

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	cfg      RouterConfig
	pipeline Pipeline
	users    cache.UserCache // nil when roster caching is disabled
	sess     *session.State
	logger   *slog.Logger

	mu         sync.RWMutex
	received   int64
	dispatched int64
	dropped    int64
	parseErrs  int64
	cacheErrs  int64
}

// NewRouter creates an event router. users may be nil, which disables
// roster cache effects while leaving dispatch untouched.
func NewRouter(cfg RouterConfig, pipeline Pipeline, users cache.UserCache, sess *session.State, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:      cfg,
		pipeline: pipeline,
		users:    users,
		sess:     sess,
		logger:   logger.With("component", "router"),
	}
}

// HandleFrame decodes one frame and runs the routing sequence: identity
// update on the handshake, handler dispatch, then cache mutation.
func (r *router) HandleFrame(data []byte) {
	r.bump(&r.received)

	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Debug("dropping undecodable frame", "error", err)
		r.bump(&r.parseErrs)
		return
	}
	if env.Type == "" {
		r.bump(&r.dropped)
		return
	}

	evt := model.EventType(env.Type)
	if !evt.Known() {
		r.logger.Debug("dropping unrecognized event", "type", env.Type)
		r.bump(&r.dropped)
		return
	}

	// Identity must be in place before any handler observes the handshake.
	if evt == model.EventSessionMetadata {
		r.applyHandshake(data)
	}

	r.pipeline.Dispatch(evt, json.RawMessage(data), r.sess.Snapshot())
	r.bump(&r.dispatched)

	if r.users != nil {
		r.applyCacheEffects(evt, data)
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		FramesReceived:   r.received,
		FramesDispatched: r.dispatched,
		FramesDropped:    r.dropped,
		ParseErrors:      r.parseErrs,
		CacheErrors:      r.cacheErrs,
	}
}

// applyHandshake populates session identity from a SessionMetadata frame.
// Fields missing from the payload stay empty rather than failing the frame.
func (r *router) applyHandshake(data []byte) {
	var wire sessionMetadataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		r.logger.Debug("handshake frame only partially decoded", "error", err)
	}

	r.sess.ApplyHandshake(wire.UserID, wire.RoomInfo.OwnerID, wire.ConnectionID, wire.RoomInfo.RoomName)
	r.logger.Info("session established",
		"user_id", wire.UserID,
		"connection_id", wire.ConnectionID,
		"room_name", wire.RoomInfo.RoomName,
	)
}

// applyCacheEffects mutates the roster cache for events that carry
// membership state. Runs after dispatch for the same frame.
func (r *router) applyCacheEffects(evt model.EventType, data []byte) {
	switch evt {
	case model.EventSessionMetadata:
		ctx, cancel := r.cacheCtx()
		defer cancel()
		if err := r.users.FetchUserCollection(ctx); err != nil {
			r.logger.Warn("roster fetch failed", "error", err)
			r.bump(&r.cacheErrs)
		}

	case model.EventUserJoined:
		wire, ok := r.decodeMembership(data)
		if !ok {
			return
		}
		u := wire.User
		u.Username = model.NormalizeUsername(u.Username)
		u.Position = wire.Position

		ctx, cancel := r.cacheCtx()
		defer cancel()
		if err := r.users.AddUser(ctx, u.ID, u); err != nil {
			r.logger.Warn("roster add failed", "user_id", u.ID, "error", err)
			r.bump(&r.cacheErrs)
		}

	case model.EventUserLeft:
		wire, ok := r.decodeMembership(data)
		if !ok {
			return
		}

		ctx, cancel := r.cacheCtx()
		defer cancel()
		if err := r.users.RemoveUser(ctx, wire.User.ID); err != nil {
			r.logger.Warn("roster remove failed", "user_id", wire.User.ID, "error", err)
			r.bump(&r.cacheErrs)
		}

	case model.EventUserMoved:
		wire, ok := r.decodeMembership(data)
		if !ok {
			return
		}

		ctx, cancel := r.cacheCtx()
		defer cancel()
		err := r.users.UpdatePosition(ctx, wire.User.ID, wire.Position)
		switch {
		case errors.Is(err, cache.ErrNotFound):
			// Move for a user the roster never saw. Expected on a lossy feed.
			r.logger.Debug("position update for unknown user", "user_id", wire.User.ID)
		case err != nil:
			r.logger.Warn("position update failed", "user_id", wire.User.ID, "error", err)
			r.bump(&r.cacheErrs)
		}
	}
}

// decodeMembership extracts the user envelope from a membership frame.
// Frames without a user id cannot be keyed into the roster and are skipped.
func (r *router) decodeMembership(data []byte) (membershipWire, bool) {
	var wire membershipWire
	if err := json.Unmarshal(data, &wire); err != nil {
		r.logger.Debug("membership frame only partially decoded", "error", err)
	}
	if wire.User.ID == "" {
		r.logger.Debug("membership frame without user id, skipping roster update")
		return wire, false
	}
	return wire, true
}

func (r *router) cacheCtx() (context.Context, context.CancelFunc) {
	if r.cfg.CacheOpTimeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), r.cfg.CacheOpTimeout)
}

func (r *router) bump(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}
