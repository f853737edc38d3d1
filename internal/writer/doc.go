// Package writer implements the batched presence journal.
//
// PresenceWriter subscribes to membership events on the dispatch registry,
// transforms each frame into a presence_events row, and flushes batches to
// Postgres on a ticker or when a batch fills. Inserts are append-only with
// ON CONFLICT DO NOTHING, so redelivered frames never duplicate rows.
package writer
