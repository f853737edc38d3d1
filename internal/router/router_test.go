package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/atria-live/presence/internal/cache"
	"github.com/atria-live/presence/internal/dispatch"
	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/session"
)

const (
	handshakeFrame = `{"_type":"SessionMetadata","room_info":{"room_name":"The Lounge","owner_id":"owner-1"},"user_id":"user-9","connection_id":"conn-42"}`
	joinFrame      = `{"_type":"UserJoined","user":{"id":"u1","username":"ada"},"position":{"x":1,"y":2,"z":3,"facing":0.5}}`
	moveFrame      = `{"_type":"UserMoved","user":{"id":"u1"},"position":{"x":9,"y":8,"z":7,"facing":1.5}}`
	leaveFrame     = `{"_type":"UserLeft","user":{"id":"u1"}}`
)

func newTestRouter(users cache.UserCache) (Router, *dispatch.Registry, *session.State) {
	reg := dispatch.NewRegistry(nil)
	sess := session.NewState(
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		"roomroomroomroomroomroom",
	)
	r := NewRouter(DefaultRouterConfig(), reg, users, sess, nil)
	return r, reg, sess
}

func TestHandleFrameDropsUntaggedFrames(t *testing.T) {
	r, reg, _ := newTestRouter(nil)

	dispatched := 0
	reg.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {
		dispatched++
	})

	r.HandleFrame([]byte(`{"user":{"id":"u1"}}`))
	r.HandleFrame([]byte(`{"_type":""}`))

	if dispatched != 0 {
		t.Errorf("dispatched %d events for untagged frames, want 0", dispatched)
	}
	if got := r.Stats().FramesDropped; got != 2 {
		t.Errorf("FramesDropped = %d, want 2", got)
	}
}

func TestHandleFrameDropsUnknownTags(t *testing.T) {
	r, reg, _ := newTestRouter(nil)

	dispatched := 0
	reg.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {
		dispatched++
	})

	r.HandleFrame([]byte(`{"_type":"ServerGossip"}`))
	r.HandleFrame([]byte(`{"_type":"userjoined"}`)) // case matters

	if dispatched != 0 {
		t.Errorf("dispatched %d events for unknown tags, want 0", dispatched)
	}
	stats := r.Stats()
	if stats.FramesDropped != 2 {
		t.Errorf("FramesDropped = %d, want 2", stats.FramesDropped)
	}
	if stats.FramesDispatched != 0 {
		t.Errorf("FramesDispatched = %d, want 0", stats.FramesDispatched)
	}
}

func TestHandleFrameCountsParseErrors(t *testing.T) {
	r, reg, _ := newTestRouter(nil)

	dispatched := 0
	reg.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {
		dispatched++
	})

	r.HandleFrame([]byte(`{not json`))

	if dispatched != 0 {
		t.Errorf("dispatched %d events for malformed frame, want 0", dispatched)
	}
	if got := r.Stats().ParseErrors; got != 1 {
		t.Errorf("ParseErrors = %d, want 1", got)
	}
}

func TestHandshakePopulatesIdentityBeforeDispatch(t *testing.T) {
	r, reg, sess := newTestRouter(nil)

	if sess.Info().Populated() {
		t.Fatal("session info should start empty")
	}

	var seen session.Snapshot
	reg.On(model.EventSessionMetadata, func(_ model.EventType, _ json.RawMessage, s session.Snapshot) {
		seen = s
	})

	r.HandleFrame([]byte(handshakeFrame))

	if seen.Info.ConnectionID != "conn-42" {
		t.Errorf("handler saw connection id %q, want conn-42", seen.Info.ConnectionID)
	}
	if seen.Info.UserID != "user-9" || seen.Info.OwnerID != "owner-1" {
		t.Errorf("handler saw identity %+v, want user-9/owner-1", seen.Info)
	}
	if seen.Auth.RoomName != "The Lounge" {
		t.Errorf("handler saw room name %q, want The Lounge", seen.Auth.RoomName)
	}
	if got := sess.Info().ConnectionID; got != "conn-42" {
		t.Errorf("session connection id = %q, want conn-42", got)
	}
}

func TestHandshakeWithMissingFieldsStillApplies(t *testing.T) {
	r, _, sess := newTestRouter(nil)

	r.HandleFrame([]byte(`{"_type":"SessionMetadata","connection_id":"conn-7"}`))

	info := sess.Info()
	if info.ConnectionID != "conn-7" {
		t.Errorf("connection id = %q, want conn-7", info.ConnectionID)
	}
	if info.UserID != "" || info.OwnerID != "" {
		t.Errorf("missing fields should stay empty, got %+v", info)
	}
}

func TestHandshakeFetchesRosterOncePerFrame(t *testing.T) {
	fetches := 0
	loader := func(ctx context.Context) ([]model.User, error) {
		fetches++
		return []model.User{{ID: "u1", Username: "ada"}}, nil
	}
	users := cache.NewMemory(loader, nil)
	r, _, _ := newTestRouter(users)

	r.HandleFrame([]byte(handshakeFrame))
	if fetches != 1 {
		t.Fatalf("roster fetched %d times after one handshake, want 1", fetches)
	}

	r.HandleFrame([]byte(handshakeFrame))
	if fetches != 2 {
		t.Errorf("roster fetched %d times after two handshakes, want 2", fetches)
	}
}

func TestMembershipLifecycleMutatesCache(t *testing.T) {
	users := cache.NewMemory(nil, nil)
	r, _, _ := newTestRouter(users)

	r.HandleFrame([]byte(joinFrame))
	u, ok := users.User("u1")
	if !ok {
		t.Fatal("user missing from roster after join")
	}
	if u.Username != "ada" {
		t.Errorf("username = %q, want ada", u.Username)
	}
	if u.Position.X != 1 || u.Position.Facing != 0.5 {
		t.Errorf("join position = %+v, want x=1 facing=0.5", u.Position)
	}

	r.HandleFrame([]byte(moveFrame))
	u, ok = users.User("u1")
	if !ok {
		t.Fatal("user missing from roster after move")
	}
	if u.Position.X != 9 || u.Position.Z != 7 || u.Position.Facing != 1.5 {
		t.Errorf("moved position = %+v, want x=9 z=7 facing=1.5", u.Position)
	}
	if u.Username != "ada" {
		t.Errorf("move clobbered username, got %q", u.Username)
	}

	r.HandleFrame([]byte(leaveFrame))
	if _, ok := users.User("u1"); ok {
		t.Error("user still in roster after leave")
	}
}

func TestDispatchObservesPreMutationRoster(t *testing.T) {
	users := cache.NewMemory(nil, nil)
	r, reg, _ := newTestRouter(users)

	var inRosterAtDispatch bool
	reg.On(model.EventUserJoined, func(model.EventType, json.RawMessage, session.Snapshot) {
		_, inRosterAtDispatch = users.User("u1")
	})

	r.HandleFrame([]byte(joinFrame))

	if inRosterAtDispatch {
		t.Error("handler observed the join already applied, dispatch must precede cache mutation")
	}
	if _, ok := users.User("u1"); !ok {
		t.Error("join was never applied to the roster")
	}
}

func TestMoveForUnknownUserIsNotAnError(t *testing.T) {
	users := cache.NewMemory(nil, nil)
	r, _, _ := newTestRouter(users)

	r.HandleFrame([]byte(moveFrame))

	if got := r.Stats().CacheErrors; got != 0 {
		t.Errorf("CacheErrors = %d, want 0 for move targeting unknown user", got)
	}
}

func TestMembershipFrameWithoutUserIDSkipsCache(t *testing.T) {
	users := cache.NewMemory(nil, nil)
	r, reg, _ := newTestRouter(users)

	dispatched := 0
	reg.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {
		dispatched++
	})

	r.HandleFrame([]byte(`{"_type":"UserJoined","position":{"x":1}}`))

	if dispatched != 1 {
		t.Errorf("dispatched = %d, want 1; missing user id only skips the cache", dispatched)
	}
	if got := len(users.Users()); got != 0 {
		t.Errorf("roster has %d entries, want 0", got)
	}
}

func TestNilCacheDisablesRosterEffects(t *testing.T) {
	r, reg, _ := newTestRouter(nil)

	dispatched := 0
	reg.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {
		dispatched++
	})

	r.HandleFrame([]byte(handshakeFrame))
	r.HandleFrame([]byte(joinFrame))
	r.HandleFrame([]byte(moveFrame))
	r.HandleFrame([]byte(leaveFrame))

	if dispatched != 4 {
		t.Errorf("dispatched = %d, want 4", dispatched)
	}
}

func TestDispatchOnlyEventsLeaveRosterAlone(t *testing.T) {
	users := cache.NewMemory(nil, nil)
	r, reg, _ := newTestRouter(users)

	var got model.EventType
	reg.On(model.EventChatMessage, func(evt model.EventType, _ json.RawMessage, _ session.Snapshot) {
		got = evt
	})

	r.HandleFrame([]byte(`{"_type":"ChatMessage","user":{"id":"u1","username":"ada"},"text":"hi"}`))

	if got != model.EventChatMessage {
		t.Errorf("dispatched event = %q, want ChatMessage", got)
	}
	if n := len(users.Users()); n != 0 {
		t.Errorf("chat frame mutated the roster, %d entries", n)
	}
}

func TestJoinNormalizesUsername(t *testing.T) {
	users := cache.NewMemory(nil, nil)
	r, _, _ := newTestRouter(users)

	r.HandleFrame([]byte(`{"_type":"UserJoined","user":{"id":"u2","username":"  bób  "},"position":{}}`))

	u, ok := users.User("u2")
	if !ok {
		t.Fatal("user missing from roster")
	}
	if u.Username != "bób" {
		t.Errorf("username = %q, want composed trimmed form %q", u.Username, "bób")
	}
}

func TestStatsAccumulate(t *testing.T) {
	r, _, _ := newTestRouter(nil)

	r.HandleFrame([]byte(joinFrame))
	r.HandleFrame([]byte(`{"_type":"Mystery"}`))
	r.HandleFrame([]byte(`broken`))

	stats := r.Stats()
	if stats.FramesReceived != 3 {
		t.Errorf("FramesReceived = %d, want 3", stats.FramesReceived)
	}
	if stats.FramesDispatched != 1 {
		t.Errorf("FramesDispatched = %d, want 1", stats.FramesDispatched)
	}
	if stats.FramesDropped != 1 {
		t.Errorf("FramesDropped = %d, want 1", stats.FramesDropped)
	}
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
}
