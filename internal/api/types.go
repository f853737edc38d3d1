package api

// RoomResponse from GET /rooms/{id}
type RoomResponse struct {
	Room APIRoom `json:"room"`
}

// APIRoom represents a room from the Atria API.
type APIRoom struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	UserCount int    `json:"user_count"`
	CreatedAt string `json:"created_at"`
}

// RoomUsersResponse from GET /rooms/{id}/users
type RoomUsersResponse struct {
	Users  []APIUser `json:"users"`
	Cursor string    `json:"cursor"`
}

// APIUser represents a room occupant from the Atria API.
type APIUser struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Position APIPosition `json:"position"`
}

// APIPosition mirrors the gateway position payload.
type APIPosition struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Facing float64 `json:"facing"`
}

// GetRoomUsersOptions filters a roster page request.
type GetRoomUsersOptions struct {
	Limit  int
	Cursor string
}
