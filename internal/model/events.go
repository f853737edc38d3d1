package model

// EventType is the `_type` discriminator tag carried by every gateway frame.
type EventType string

// Gateway event vocabulary. Frames with any other tag are dropped by the
// router without error; the transport is extensible and lossy by contract.
const (
	// EventSessionMetadata is the handshake: the first server frame after a
	// connection opens, establishing session identity.
	EventSessionMetadata EventType = "SessionMetadata"

	EventUserJoined  EventType = "UserJoined"
	EventUserLeft    EventType = "UserLeft"
	EventUserMoved   EventType = "UserMoved"
	EventChatMessage EventType = "ChatMessage"
	EventRoomUpdated EventType = "RoomUpdated"
)

var knownEvents = map[EventType]struct{}{
	EventSessionMetadata: {},
	EventUserJoined:      {},
	EventUserLeft:        {},
	EventUserMoved:       {},
	EventChatMessage:     {},
	EventRoomUpdated:     {},
}

// Known reports whether t is part of the gateway vocabulary.
func (t EventType) Known() bool {
	_, ok := knownEvents[t]
	return ok
}

// String returns the wire tag.
func (t EventType) String() string { return string(t) }

// KnownEvents returns the full vocabulary in stable order.
func KnownEvents() []EventType {
	return []EventType{
		EventSessionMetadata,
		EventUserJoined,
		EventUserLeft,
		EventUserMoved,
		EventChatMessage,
		EventRoomUpdated,
	}
}

// SubscribableEvents returns the tags a client may request from the gateway
// stream endpoint. The handshake is always delivered and is not part of the
// subscription set.
func SubscribableEvents() []EventType {
	return []EventType{
		EventUserJoined,
		EventUserLeft,
		EventUserMoved,
		EventChatMessage,
		EventRoomUpdated,
	}
}
