package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Position is a user's location within a room: three world-unit axes plus
// the direction the user faces, in radians.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Facing float64 `json:"facing"`
}

// User is one room occupant as tracked by the presence cache.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Position Position `json:"position"`
}

// RoomInfo is the room metadata delivered by the session handshake.
type RoomInfo struct {
	RoomName string `json:"room_name"`
	OwnerID  string `json:"owner_id"`
}

// NormalizeUsername canonicalizes a display name for storage and comparison.
// Gateway payloads carry names as users typed them; composed and decomposed
// Unicode forms of the same name must collapse to one cache entry.
func NormalizeUsername(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
