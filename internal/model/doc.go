// Package model defines shared data types used across the Atria presence stack.
//
// Conventions:
//   - Positions: float64 world units on three axes plus a facing angle in radians
//   - IDs: opaque strings assigned by the platform (user, room, connection)
//   - Event tags: PascalCase strings matching the gateway wire vocabulary
package model
