// Package poller reconciles the occupancy cache against the REST roster.
//
// Membership frames are lossy: the gateway can drop frames under load and
// a reconnect replays nothing between sessions. The poller heals that
// drift by reloading the full roster on a jittered interval, skipping
// cycles while the gateway session is down.
package poller
