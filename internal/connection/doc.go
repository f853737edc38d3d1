// Package connection implements the gateway connection supervisor.
//
// The supervisor:
//   - Owns the single WebSocket session to the Atria gateway
//   - Validates credentials before any dial (token, room id, event set)
//   - Sends a KeepaliveRequest frame every heartbeat interval
//   - Recovers from transport loss with a fixed-delay reconnect
//   - Delivers inbound frames, in arrival order, to a FrameHandler
package connection
