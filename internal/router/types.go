package router

import (
	"time"

	"github.com/atria-live/presence/internal/model"
)

// RouterConfig holds configuration for the event router.
type RouterConfig struct {
	// CacheOpTimeout bounds each roster cache call made while routing a
	// frame. Zero means no bound beyond what the cache applies itself.
	CacheOpTimeout time.Duration
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CacheOpTimeout: 5 * time.Second,
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	FramesReceived   int64
	FramesDispatched int64
	FramesDropped    int64
	ParseErrors      int64
	CacheErrors      int64
}

// Wire types for JSON parsing

// frameEnvelope is used for fast type-tag extraction.
type frameEnvelope struct {
	Type string `json:"_type"`
}

// sessionMetadataWire is the wire format of the handshake frame.
type sessionMetadataWire struct {
	RoomInfo struct {
		RoomName string `json:"room_name"`
		OwnerID  string `json:"owner_id"`
	} `json:"room_info"`
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

// membershipWire is the wire format shared by UserJoined, UserLeft and
// UserMoved frames. Leave frames carry only the user envelope.
type membershipWire struct {
	User     model.User     `json:"user"`
	Position model.Position `json:"position"`
}
