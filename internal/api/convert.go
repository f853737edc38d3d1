package api

import (
	"github.com/atria-live/presence/internal/model"
)

// ToUser converts an API roster entry to the domain type. Usernames are
// normalized so roster loads and gateway frames agree on cache keys.
func ToUser(u APIUser) model.User {
	return model.User{
		ID:       u.ID,
		Username: model.NormalizeUsername(u.Username),
		Position: model.Position{
			X:      u.Position.X,
			Y:      u.Position.Y,
			Z:      u.Position.Z,
			Facing: u.Position.Facing,
		},
	}
}

// ToRoomInfo converts API room metadata to the handshake-equivalent shape.
func ToRoomInfo(r APIRoom) model.RoomInfo {
	return model.RoomInfo{
		RoomName: r.Name,
		OwnerID:  r.OwnerID,
	}
}
