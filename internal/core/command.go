package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegister binds (or re-binds) the client's identity in the registry.
	CommandRegister CommandKind = iota
	// CommandSendChat routes a chat message to its recipients.
	CommandSendChat
	// CommandCallOffer starts a call attempt toward another identity.
	CommandCallOffer
	// CommandCallAnswer accepts a ringing call.
	CommandCallAnswer
	// CommandIceCandidate relays a connectivity candidate to the peer.
	CommandIceCandidate
	// CommandCallReject declines a ringing call.
	CommandCallReject
	// CommandCallEnd hangs up an established or ringing call.
	CommandCallEnd
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Username string // for CommandRegister
	Message  Message
	Call     CallRequest
}

// CallRequest carries the call-signaling fields of a command.
type CallRequest struct {
	To      string
	CallID  string
	IsGroup bool
	Payload json.RawMessage
}
