// Package router turns raw gateway frames into typed events and drives
// their three downstream effects: session identity updates on the
// handshake, synchronous handler dispatch, and roster cache mutations
// for membership events.
//
// Ordering is part of the contract. For each frame the router applies
// handshake identity before any handler observes the event, and applies
// cache mutations only after dispatch returns, so handlers always see
// the roster as it was when the frame arrived. Frames without a _type
// tag and frames with tags outside the known vocabulary are dropped
// without error; the gateway feed is treated as lossy and extensible.
package router
