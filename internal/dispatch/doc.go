// Package dispatch fans stream events out to registered handlers.
//
// A Registry holds handlers keyed by event type plus a wildcard set that
// receives every event. Dispatch runs handlers synchronously on the
// caller's goroutine, so registration order is delivery order and a
// handler sees the session state as of the frame that produced the event.
package dispatch
