package connection

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// heartbeat emits a KeepaliveRequest frame on a fixed period while the
// session is connected. It is self-rescheduling: each successful send arms
// the next timer, and a failed send lets the transport error path take
// over instead of rearming. The supervisor creates one per connection and
// stops it whenever the session leaves the connected state.
type heartbeat struct {
	interval time.Duration
	send     func(data []byte) error
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	sent    int64
	errs    int64
}

func newHeartbeat(interval time.Duration, send func(data []byte) error, logger *slog.Logger) *heartbeat {
	if logger == nil {
		logger = slog.Default()
	}

	return &heartbeat{
		interval: interval,
		send:     send,
		logger:   logger,
	}
}

// start arms the first timer. Any previously armed timer is canceled so
// at most one beat is ever pending.
func (h *heartbeat) start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.stopped = false
	h.timer = time.AfterFunc(h.interval, h.beat)
}

// stop cancels the pending timer. Idempotent; a beat already in flight
// sees the stopped flag and will not rearm.
func (h *heartbeat) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// beat sends one keepalive frame with a fresh request id.
func (h *heartbeat) beat() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	frame := keepaliveFrame{Type: keepaliveType, RequestID: uuid.NewString()}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("keepalive marshal failed", "error", err)
		return
	}

	if err := h.send(data); err != nil {
		h.logger.Warn("keepalive send failed", "error", err)
		h.mu.Lock()
		h.errs++
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	h.sent++
	if !h.stopped {
		h.timer = time.AfterFunc(h.interval, h.beat)
	}
	h.mu.Unlock()
}

// counts returns the number of sent frames and send failures.
func (h *heartbeat) counts() (sent, errs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sent, h.errs
}
