package session

import "sync"

// Credential shape enforced before any connection attempt.
const (
	// TokenLength is the exact length of a valid Atria API token.
	TokenLength = 64

	// RoomIDLength is the exact length of a valid room id.
	RoomIDLength = 24
)

// Auth carries the credential and target-room identity required to
// establish a gateway session. RoomName is empty until a handshake names
// the room.
type Auth struct {
	Token    string
	RoomID   string
	RoomName string
}

// TokenValid reports whether the token satisfies the length invariant.
func (a Auth) TokenValid() bool { return len(a.Token) == TokenLength }

// RoomValid reports whether the room id satisfies the length invariant.
func (a Auth) RoomValid() bool { return len(a.RoomID) == RoomIDLength }

// Info is the session identity assigned by the server. All fields are
// empty until the handshake populates them and are cleared on teardown.
type Info struct {
	UserID       string
	OwnerID      string
	ConnectionID string
}

// Populated reports whether a handshake has established this session.
func (i Info) Populated() bool { return i.ConnectionID != "" }

// Snapshot is an immutable copy of the full session state, handed to
// handler dispatch and status endpoints.
type Snapshot struct {
	Auth Auth
	Info Info
}

// State is the single mutable holder for Auth and Info.
type State struct {
	mu   sync.RWMutex
	auth Auth
	info Info
}

// NewState creates session state for one client.
func NewState(token, roomID string) *State {
	return &State{auth: Auth{Token: token, RoomID: roomID}}
}

// Auth returns a copy of the current auth context.
func (s *State) Auth() Auth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// Info returns a copy of the current session identity.
func (s *State) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Snapshot returns a copy of the full session state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Auth: s.auth, Info: s.info}
}

// RoomID returns the current target room id.
func (s *State) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.RoomID
}

// SetRoom retargets the client at a different room. The room name is
// cleared; the next handshake names the new room.
func (s *State) SetRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth.RoomID = roomID
	s.auth.RoomName = ""
}

// ApplyHandshake records the identity delivered by a SessionMetadata frame.
// Missing fields arrive as empty strings and overwrite previous values;
// each handshake fully restates the session.
func (s *State) ApplyHandshake(userID, ownerID, connectionID, roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = Info{UserID: userID, OwnerID: ownerID, ConnectionID: connectionID}
	s.auth.RoomName = roomName
}

// ClearInfo erases the session identity. Called on every teardown and
// before a reconnect attempt so stale identity never outlives its
// connection.
func (s *State) ClearInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = Info{}
}

// Reset erases both identity and credentials. Used by Destroy when the
// client is being decommissioned, not reused.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = Auth{}
	s.info = Info{}
}
