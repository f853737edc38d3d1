package writer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atria-live/presence/internal/dispatch"
	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/queue"
	"github.com/atria-live/presence/internal/session"
)

// journaledEvents are the membership events recorded in presence_events.
var journaledEvents = []model.EventType{
	model.EventUserJoined,
	model.EventUserLeft,
	model.EventUserMoved,
}

// membershipFrame is the slice of a membership payload the journal keeps.
type membershipFrame struct {
	User     model.User     `json:"user"`
	Position model.Position `json:"position"`
}

// PresenceWriter consumes membership events from the dispatch registry and
// writes them to the presence_events table.
type PresenceWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input fed by registry handlers
	input *queue.Growable[eventRow]

	// Database
	db *pgxpool.Pool

	// Registry detach funcs, set by Subscribe
	removes []func()

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewPresenceWriter creates a new PresenceWriter.
func NewPresenceWriter(cfg WriterConfig, db *pgxpool.Pool, logger *slog.Logger) *PresenceWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &PresenceWriter{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "writer"),
		input:  queue.NewGrowable[eventRow](cfg.BatchSize),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Subscribe registers journal handlers for the membership events. Handlers
// only enqueue; all database work happens on the writer's own goroutines.
func (w *PresenceWriter) Subscribe(reg *dispatch.Registry) {
	for _, evt := range journaledEvents {
		w.removes = append(w.removes, reg.On(evt, w.enqueue))
	}
}

// Start begins consuming rows and writing to the database.
func (w *PresenceWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("presence writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop detaches from the registry and shuts the writer down, flushing
// whatever is still buffered.
func (w *PresenceWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping presence writer")

	for _, remove := range w.removes {
		remove()
	}
	w.removes = nil
	w.input.Close()

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("presence writer stopped")
	case <-ctx.Done():
		w.logger.Warn("presence writer stop timed out")
	}

	// Pick up rows still queued, then final flush. w.ctx is canceled by
	// now, so the flush runs on the caller's context.
	for _, row := range w.input.Drain(0) {
		w.batchMu.Lock()
		w.batch = append(w.batch, row)
		w.batchMu.Unlock()
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *PresenceWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// enqueue transforms a dispatched event into a row. Runs on the delivery
// goroutine, so it must stay cheap and never touch the database.
func (w *PresenceWriter) enqueue(evt model.EventType, payload json.RawMessage, sess session.Snapshot) {
	row, ok := w.transform(evt, payload, sess)
	if !ok {
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		return
	}
	w.input.Push(row)
}

// transform converts a membership frame into an eventRow.
func (w *PresenceWriter) transform(evt model.EventType, payload json.RawMessage, sess session.Snapshot) (eventRow, bool) {
	var frame membershipFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		w.logger.Debug("undecodable membership frame", "event", evt, "error", err)
		return eventRow{}, false
	}
	if frame.User.ID == "" {
		return eventRow{}, false
	}

	return eventRow{
		Time:     time.Now().UTC(),
		RoomID:   sess.Auth.RoomID,
		UserID:   frame.User.ID,
		Username: model.NormalizeUsername(frame.User.Username),
		Event:    evt.String(),
		X:        frame.Position.X,
		Y:        frame.Position.Y,
		Z:        frame.Position.Z,
		Facing:   frame.Position.Facing,
	}, true
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *PresenceWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			row, ok := w.input.TryPop()
			if !ok {
				// Queue empty, wait a bit before trying again
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleRow(row)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *PresenceWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleRow adds a row to the batch, flushing when the batch fills.
func (w *PresenceWriter) handleRow(row eventRow) {
	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *PresenceWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed presence events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *PresenceWriter) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO presence_events (time, room_id, user_id, username, event, x, y, z, facing)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (time, room_id, user_id, event) DO NOTHING
		`, r.Time, r.RoomID, r.UserID, r.Username, r.Event, r.X, r.Y, r.Z, r.Facing)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
