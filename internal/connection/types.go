package connection

import (
	"errors"
	"time"
)

// Validation errors, surfaced by Connect before any network attempt.
var (
	ErrTokenInvalid  = errors.New("api token must be exactly 64 characters")
	ErrRoomInvalid   = errors.New("room id must be exactly 24 characters")
	ErrMissingEvents = errors.New("at least one event subscription is required")
)

// Transport errors.
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrShuttingDown  = errors.New("shutdown in progress")
)

// State is the connection lifecycle state. It is owned exclusively by the
// Supervisor; nothing else transitions it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateShuttingDown
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Frame is one raw inbound message with its local receive timestamp.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// keepaliveFrame is the outbound liveness frame. The gateway terminates
// sessions that miss the keepalive deadline.
type keepaliveFrame struct {
	Type      string `json:"_type"`
	RequestID string `json:"rid"`
}

const keepaliveType = "KeepaliveRequest"

// ClientConfig configures a single gateway transport.
type ClientConfig struct {
	GatewayURL       string        // Base WebSocket URL (e.g. wss://gateway.atria.live/v1/stream)
	RoomID           string        // Sent as the room-id header
	APIToken         string        // Sent as the api-token header
	Events           []string      // Event tags joined into the events query parameter
	HandshakeTimeout time.Duration // WebSocket dial deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Initial inbound frame queue capacity
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}

// SupervisorConfig configures the connection supervisor.
type SupervisorConfig struct {
	GatewayURL        string        // Base WebSocket URL
	Events            []string      // Subscribed event tags; must be non-empty
	HeartbeatInterval time.Duration // Keepalive period while connected
	ReconnectDelay    time.Duration // Fixed wait before a reconnect attempt
	HandshakeTimeout  time.Duration // WebSocket dial deadline
	WriteTimeout      time.Duration // Write deadline for sends
	BufferSize        int           // Initial inbound frame queue capacity
}

// DefaultSupervisorConfig returns sensible defaults. Events must still be
// provided by the caller.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		HeartbeatInterval: 15 * time.Second,
		ReconnectDelay:    5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        1024,
	}
}

// SupervisorStats provides counters for status reporting.
type SupervisorStats struct {
	State               State
	ConnectAttempts     int64
	ReconnectsScheduled int64
	FramesDelivered     int64
	HeartbeatsSent      int64
	HeartbeatErrors     int64
}
