package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/atria-live/presence/internal/model"
	"github.com/atria-live/presence/internal/session"
)

func TestDispatchOrdering(t *testing.T) {
	r := NewRegistry(nil)

	var order []string
	r.On(model.EventUserJoined, func(model.EventType, json.RawMessage, session.Snapshot) {
		order = append(order, "exact-1")
	})
	r.On(model.EventUserJoined, func(model.EventType, json.RawMessage, session.Snapshot) {
		order = append(order, "exact-2")
	})
	r.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {
		order = append(order, "any")
	})

	n := r.Dispatch(model.EventUserJoined, nil, session.Snapshot{})
	if n != 3 {
		t.Fatalf("Dispatch returned %d, want 3", n)
	}

	want := []string{"exact-1", "exact-2", "any"}
	if len(order) != len(want) {
		t.Fatalf("got %d invocations, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestDispatchSkipsOtherTypes(t *testing.T) {
	r := NewRegistry(nil)

	called := false
	r.On(model.EventUserLeft, func(model.EventType, json.RawMessage, session.Snapshot) {
		called = true
	})

	if n := r.Dispatch(model.EventUserJoined, nil, session.Snapshot{}); n != 0 {
		t.Errorf("Dispatch returned %d, want 0", n)
	}
	if called {
		t.Error("handler for UserLeft fired on UserJoined")
	}
}

func TestDispatchPassesPayloadAndSession(t *testing.T) {
	r := NewRegistry(nil)

	payload := json.RawMessage(`{"_type":"ChatMessage","text":"hi"}`)
	sess := session.Snapshot{
		Info: session.Info{UserID: "u1", OwnerID: "o1", ConnectionID: "c1"},
	}

	var gotEvt model.EventType
	var gotPayload json.RawMessage
	var gotSess session.Snapshot
	r.On(model.EventChatMessage, func(evt model.EventType, p json.RawMessage, s session.Snapshot) {
		gotEvt, gotPayload, gotSess = evt, p, s
	})

	r.Dispatch(model.EventChatMessage, payload, sess)

	if gotEvt != model.EventChatMessage {
		t.Errorf("event = %q, want %q", gotEvt, model.EventChatMessage)
	}
	if string(gotPayload) != string(payload) {
		t.Errorf("payload = %s, want %s", gotPayload, payload)
	}
	if gotSess.Info.ConnectionID != "c1" {
		t.Errorf("session connection id = %q, want c1", gotSess.Info.ConnectionID)
	}
}

func TestRemoveHandler(t *testing.T) {
	r := NewRegistry(nil)

	calls := 0
	remove := r.On(model.EventUserMoved, func(model.EventType, json.RawMessage, session.Snapshot) {
		calls++
	})

	r.Dispatch(model.EventUserMoved, nil, session.Snapshot{})
	remove()
	r.Dispatch(model.EventUserMoved, nil, session.Snapshot{})

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if got := r.HandlerCount(model.EventUserMoved); got != 0 {
		t.Errorf("HandlerCount = %d, want 0", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	removeA := r.On(model.EventUserJoined, func(model.EventType, json.RawMessage, session.Snapshot) {})
	removeB := r.OnAny(func(model.EventType, json.RawMessage, session.Snapshot) {})

	removeA()
	removeA()
	removeB()
	removeB()

	if got := r.HandlerCount(model.EventUserJoined); got != 0 {
		t.Errorf("HandlerCount after double remove = %d, want 0", got)
	}
}

func TestRemoveOnlyDropsOwnHandler(t *testing.T) {
	r := NewRegistry(nil)

	var order []string
	removeA := r.On(model.EventUserJoined, func(model.EventType, json.RawMessage, session.Snapshot) {
		order = append(order, "a")
	})
	r.On(model.EventUserJoined, func(model.EventType, json.RawMessage, session.Snapshot) {
		order = append(order, "b")
	})

	removeA()
	r.Dispatch(model.EventUserJoined, nil, session.Snapshot{})

	if len(order) != 1 || order[0] != "b" {
		t.Errorf("invocations = %v, want [b]", order)
	}
}
