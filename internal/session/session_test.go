package session

import (
	"strings"
	"testing"
)

func validToken() string { return strings.Repeat("t", TokenLength) }
func validRoom() string  { return strings.Repeat("r", RoomIDLength) }

func TestAuthValidation(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		roomID    string
		tokenOK   bool
		roomValid bool
	}{
		{"valid", validToken(), validRoom(), true, true},
		{"token too short", strings.Repeat("t", 63), validRoom(), false, true},
		{"token too long", strings.Repeat("t", 65), validRoom(), false, true},
		{"empty token", "", validRoom(), false, true},
		{"room too short", validToken(), strings.Repeat("r", 23), true, false},
		{"room too long", validToken(), strings.Repeat("r", 25), true, false},
		{"empty room", validToken(), "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Auth{Token: tt.token, RoomID: tt.roomID}
			if got := a.TokenValid(); got != tt.tokenOK {
				t.Errorf("TokenValid() = %v, want %v", got, tt.tokenOK)
			}
			if got := a.RoomValid(); got != tt.roomValid {
				t.Errorf("RoomValid() = %v, want %v", got, tt.roomValid)
			}
		})
	}
}

func TestApplyHandshake(t *testing.T) {
	s := NewState(validToken(), validRoom())

	if s.Info().Populated() {
		t.Fatal("fresh state should have no session identity")
	}

	s.ApplyHandshake("user-1", "owner-1", "conn-abc", "lobby")

	info := s.Info()
	if info.UserID != "user-1" || info.OwnerID != "owner-1" || info.ConnectionID != "conn-abc" {
		t.Errorf("Info() = %+v, want populated identity", info)
	}
	if !info.Populated() {
		t.Error("Populated() = false after handshake")
	}
	if got := s.Auth().RoomName; got != "lobby" {
		t.Errorf("RoomName = %q, want %q", got, "lobby")
	}

	// A later handshake restates everything, including absent fields.
	s.ApplyHandshake("user-2", "", "conn-def", "")
	info = s.Info()
	if info.UserID != "user-2" || info.OwnerID != "" || info.ConnectionID != "conn-def" {
		t.Errorf("Info() after second handshake = %+v", info)
	}
	if got := s.Auth().RoomName; got != "" {
		t.Errorf("RoomName = %q, want empty after handshake without room_info", got)
	}
}

func TestClearInfoKeepsAuth(t *testing.T) {
	s := NewState(validToken(), validRoom())
	s.ApplyHandshake("user-1", "owner-1", "conn-abc", "lobby")

	s.ClearInfo()

	if s.Info() != (Info{}) {
		t.Errorf("Info() = %+v, want zero", s.Info())
	}
	a := s.Auth()
	if a.Token != validToken() || a.RoomID != validRoom() {
		t.Errorf("Auth() = %+v, credentials must survive ClearInfo", a)
	}
	if a.RoomName != "lobby" {
		t.Errorf("RoomName = %q, want %q (ClearInfo does not touch auth)", a.RoomName, "lobby")
	}
}

func TestResetErasesEverything(t *testing.T) {
	s := NewState(validToken(), validRoom())
	s.ApplyHandshake("user-1", "owner-1", "conn-abc", "lobby")

	s.Reset()

	if s.Auth() != (Auth{}) {
		t.Errorf("Auth() = %+v, want zero", s.Auth())
	}
	if s.Info() != (Info{}) {
		t.Errorf("Info() = %+v, want zero", s.Info())
	}
}

func TestSetRoomClearsName(t *testing.T) {
	s := NewState(validToken(), validRoom())
	s.ApplyHandshake("user-1", "owner-1", "conn-abc", "lobby")

	next := strings.Repeat("q", RoomIDLength)
	s.SetRoom(next)

	a := s.Auth()
	if a.RoomID != next {
		t.Errorf("RoomID = %q, want %q", a.RoomID, next)
	}
	if a.RoomName != "" {
		t.Errorf("RoomName = %q, want empty until next handshake", a.RoomName)
	}
	if a.Token != validToken() {
		t.Error("SetRoom must not touch the token")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewState(validToken(), validRoom())
	snap := s.Snapshot()

	s.ApplyHandshake("user-1", "owner-1", "conn-abc", "lobby")

	if snap.Info.Populated() {
		t.Error("snapshot taken before handshake must not observe later writes")
	}
	if got := s.Snapshot().Info.ConnectionID; got != "conn-abc" {
		t.Errorf("fresh snapshot ConnectionID = %q, want %q", got, "conn-abc")
	}
}
