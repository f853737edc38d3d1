// Package database provides connection pool management for the presence
// journal PostgreSQL database.
//
// The journal is optional: when database.enabled is false in config the
// daemon runs without a pool and membership events are not persisted.
package database
