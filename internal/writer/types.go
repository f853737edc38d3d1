package writer

import (
	"time"
)

// WriterConfig contains configuration for the journal writer.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     200,
		FlushInterval: 5 * time.Second,
	}
}

// eventRow represents a row to be inserted into the presence_events table.
type eventRow struct {
	Time     time.Time // receipt time, the dedup key together with room/user/event
	RoomID   string
	UserID   string
	Username string
	Event    string
	X        float64
	Y        float64
	Z        float64
	Facing   float64
}

// WriterMetrics holds counters for the journal writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64 // frames that could not be decoded into a row
}
