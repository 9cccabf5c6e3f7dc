package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRegistered confirms a registration to the registering client.
	EventRegistered EventKind = iota
	// EventUserJoined notifies other clients that an identity connected.
	EventUserJoined
	// EventUserLeft notifies remaining clients that an identity disconnected.
	EventUserLeft
	// EventMessage delivers a chat message.
	EventMessage
	// EventError notifies a client about a protocol or domain error.
	EventError

	// Call signaling events
	// EventCallOffer delivers an offer plus the new call id to the callee.
	EventCallOffer
	// EventCallAnswer delivers the answer back to the original caller.
	EventCallAnswer
	// EventIceCandidate is a pass-through candidate from the remote peer.
	EventIceCandidate
	// EventCallRejected notifies the caller the callee declined.
	EventCallRejected
	// EventCallEnded notifies a participant the call is over.
	EventCallEnded
	// EventCallFailed notifies the caller the attempt never rang.
	EventCallFailed
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	User    string // registered/joined/left username
	Message Message
	Call    *CallEvent // non-nil for call events
	Error   *CoreError
}

// CallEvent holds data specific to call signaling events.
type CallEvent struct {
	CallID  string
	From    string
	To      string
	IsGroup bool
	Payload json.RawMessage // offer, answer or candidate, relayed opaque
	Reason  string          // for ended/failed events
}
