// Package session holds the per-client authentication context and the
// server-assigned session identity.
//
// Exactly one State exists per client. The connection supervisor owns all
// writes; collaborators read through value snapshots so business code can
// never mutate live session state.
package session
