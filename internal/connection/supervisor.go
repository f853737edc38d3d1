package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atria-live/presence/internal/session"
)

// FrameHandler consumes inbound frames in arrival order. HandleFrame runs
// on the supervisor's delivery goroutine, so implementations must not call
// the supervisor's lifecycle methods synchronously from it.
type FrameHandler interface {
	HandleFrame(data []byte)
}

// Supervisor owns the gateway session: it opens, validates, and tears
// down the transport, runs the keepalive heartbeat and the reconnect
// timer, and is the only component that transitions connection state.
//
// Control methods (Connect, ChangeRoom, Reconnect, Shutdown, Destroy) are
// safe for concurrent use, but compose as discrete steps; callers that
// drive the lifecycle from multiple goroutines should serialize their own
// control flow.
type Supervisor struct {
	cfg     SupervisorConfig
	sess    *session.State
	handler FrameHandler
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	client   *Client
	hb       *heartbeat
	epoch    uint64 // bumped on every attach/detach; stale transports check it
	pumpDone chan struct{}

	reconnectPending bool
	reconnectTimer   *time.Timer

	connects   int64
	reconnects int64
	frames     int64
	hbSent     int64
	hbErrs     int64
}

// NewSupervisor creates a connection supervisor around shared session
// state. Nothing is dialed until Connect.
func NewSupervisor(cfg SupervisorConfig, sess *session.State, handler FrameHandler, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		cfg:     cfg,
		sess:    sess,
		handler: handler,
		logger:  logger.With("component", "supervisor"),
		state:   StateDisconnected,
	}
}

// Connect validates credentials and establishes the gateway session.
// Validation failures (ErrTokenInvalid, ErrRoomInvalid, ErrMissingEvents)
// are returned before any network I/O. An already open transport is
// closed first; that is not an error.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// ChangeRoom moves the session to a different room. Requesting the
// current room is a no-op. Otherwise the session is shut down, the room
// id swapped, and a fresh connection attempted; a dial failure surfaces
// as the returned error with the state left Disconnected.
func (s *Supervisor) ChangeRoom(ctx context.Context, roomID string) error {
	if s.sess.RoomID() == roomID {
		return nil
	}

	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("close current session: %w", err)
	}

	s.sess.SetRoom(roomID)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// Reconnect requests a delayed reconnection cycle: the transport is
// detached now, stale identity cleared, and a fresh Connect scheduled
// after the fixed reconnect delay. At most one reconnect is ever pending;
// calls inside the backoff window are no-ops.
func (s *Supervisor) Reconnect() {
	s.mu.Lock()
	if s.state == StateShuttingDown || s.reconnectPending {
		s.mu.Unlock()
		return
	}
	done := s.detachTransportLocked()
	s.armReconnectLocked()
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	// Skip the clear if the timer already fired and reconnected; the new
	// session's identity must not be erased.
	if s.reconnectPending {
		s.sess.ClearInfo()
	}
	s.mu.Unlock()
}

// Shutdown gracefully tears the session down: cancels the heartbeat and
// reconnect timers, detaches the transport, clears session identity, and
// lands in Disconnected. A second call is a no-op, not an error.
func (s *Supervisor) Shutdown() error {
	s.mu.Lock()
	if s.state == StateDisconnected && s.client == nil && !s.reconnectPending {
		s.mu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	s.cancelReconnectLocked()
	done := s.detachTransportLocked()
	s.mu.Unlock()

	// Wait out any frame already in flight so the identity clear below
	// is final.
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.sess.ClearInfo()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logger.Info("gateway session shut down")
	return nil
}

// Destroy shuts the session down and additionally erases credentials.
// Used when the client is being decommissioned, not reused.
func (s *Supervisor) Destroy() error {
	err := s.Shutdown()
	s.sess.Reset()
	return err
}

// IsOpen reports whether the transport is currently open.
func (s *Supervisor) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnected()
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns supervision counters.
func (s *Supervisor) Stats() SupervisorStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent, errs := s.hbSent, s.hbErrs
	if s.hb != nil {
		liveSent, liveErrs := s.hb.counts()
		sent += liveSent
		errs += liveErrs
	}

	return SupervisorStats{
		State:               s.state,
		ConnectAttempts:     s.connects,
		ReconnectsScheduled: s.reconnects,
		FramesDelivered:     s.frames,
		HeartbeatsSent:      sent,
		HeartbeatErrors:     errs,
	}
}

// connectLocked performs the full connection sequence. Caller holds s.mu.
func (s *Supervisor) connectLocked(ctx context.Context) error {
	if s.state == StateShuttingDown {
		return ErrShuttingDown
	}

	auth := s.sess.Auth()
	if err := validateAuth(auth, s.cfg.Events); err != nil {
		return err
	}

	// A validated connect supersedes any scheduled reconnect.
	s.cancelReconnectLocked()

	// Idempotent pre-close of any live transport.
	if s.client != nil {
		s.detachTransportLocked()
	}

	s.state = StateConnecting
	s.connects++

	client := NewClient(s.clientConfig(auth), s.logger.With("component", "transport"))
	if err := client.Connect(ctx); err != nil {
		s.state = StateDisconnected
		return fmt.Errorf("dial gateway: %w", err)
	}

	s.epoch++
	s.client = client
	s.pumpDone = make(chan struct{})
	s.state = StateConnected

	go s.pump(s.epoch, client, s.pumpDone)

	s.hb = newHeartbeat(s.cfg.HeartbeatInterval, client.Send, s.logger.With("component", "heartbeat"))
	s.hb.start()

	s.logger.Info("gateway session connected",
		"room_id", auth.RoomID,
		"events", len(s.cfg.Events),
	)

	return nil
}

// pump delivers inbound frames to the handler until the transport dies.
// Frames popped after the epoch has moved on are discarded, which is how
// teardown detaches delivery without racing a frame mid-flight.
func (s *Supervisor) pump(epoch uint64, client *Client, done chan struct{}) {
	defer close(done)

	for {
		frame, ok := client.NextFrame()
		if !ok {
			s.onTransportDown(epoch, client.Err())
			return
		}

		s.mu.Lock()
		stale := s.epoch != epoch
		if !stale {
			s.frames++
		}
		s.mu.Unlock()
		if stale {
			continue
		}

		s.handler.HandleFrame(frame.Data)
	}
}

// onTransportDown runs when the frame queue closes. Unless the teardown
// was deliberate, it clears stale identity and schedules a reconnect.
func (s *Supervisor) onTransportDown(epoch uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch || s.state != StateConnected {
		return // deliberate teardown or an already superseded transport
	}

	if cause != nil {
		s.logger.Warn("gateway connection lost", "error", cause)
	} else {
		s.logger.Warn("gateway connection closed by peer")
	}

	s.sess.ClearInfo()
	s.detachTransportLocked()
	s.armReconnectLocked()
}

// performReconnect is the reconnect timer callback.
func (s *Supervisor) performReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reconnectPending || s.state != StateReconnecting {
		return // canceled by shutdown or superseded
	}
	s.reconnectPending = false
	s.reconnectTimer = nil

	if err := s.connectLocked(context.Background()); err != nil {
		// No automatic retry after a failed reconnect attempt; the caller
		// decides whether to connect again.
		s.state = StateDisconnected
		s.logger.Error("reconnect attempt failed", "error", err)
	}
}

// armReconnectLocked schedules the reconnect timer, canceling any prior
// one so exactly one is pending. Caller holds s.mu.
func (s *Supervisor) armReconnectLocked() {
	if s.reconnectPending {
		return
	}
	s.reconnectPending = true
	s.reconnects++
	s.state = StateReconnecting

	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, s.performReconnect)

	s.logger.Info("reconnect scheduled", "delay", s.cfg.ReconnectDelay)
}

// cancelReconnectLocked stops any pending reconnect. Caller holds s.mu.
func (s *Supervisor) cancelReconnectLocked() {
	s.reconnectPending = false
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// detachTransportLocked invalidates the current epoch, stops the
// heartbeat, and closes the transport. It returns the pump's done channel
// so callers outside the pump can await frame quiescence. Caller holds
// s.mu.
func (s *Supervisor) detachTransportLocked() chan struct{} {
	s.epoch++
	s.foldHeartbeatLocked()

	var done chan struct{}
	if s.client != nil {
		s.client.Close()
		s.client = nil
		done = s.pumpDone
		s.pumpDone = nil
	}
	return done
}

// foldHeartbeatLocked stops the heartbeat and folds its counters into the
// supervisor totals. Caller holds s.mu.
func (s *Supervisor) foldHeartbeatLocked() {
	if s.hb == nil {
		return
	}
	s.hb.stop()
	sent, errs := s.hb.counts()
	s.hbSent += sent
	s.hbErrs += errs
	s.hb = nil
}

func (s *Supervisor) clientConfig(auth session.Auth) ClientConfig {
	return ClientConfig{
		GatewayURL:       s.cfg.GatewayURL,
		RoomID:           auth.RoomID,
		APIToken:         auth.Token,
		Events:           s.cfg.Events,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		BufferSize:       s.cfg.BufferSize,
	}
}

// validateAuth enforces the credential invariants in a fixed order so a
// caller always sees the most fundamental violation first.
func validateAuth(auth session.Auth, events []string) error {
	if !auth.TokenValid() {
		return ErrTokenInvalid
	}
	if !auth.RoomValid() {
		return ErrRoomInvalid
	}
	if len(events) == 0 {
		return ErrMissingEvents
	}
	return nil
}
