package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeRegister     = "register"
	InboundTypeChat         = "chat"
	InboundTypeCallOffer    = "call-offer"
	InboundTypeCallAnswer   = "call-answer"
	InboundTypeIceCandidate = "ice-candidate"
	InboundTypeCallReject   = "call-reject"
	InboundTypeCallEnd      = "call-end"

	OutboundTypeRegistered   = "registered"
	OutboundTypeUserJoined   = "user-joined"
	OutboundTypeUserLeft     = "user-left"
	OutboundTypeMessage      = "message"
	OutboundTypeCallOffer    = "call-offer"
	OutboundTypeCallAnswer   = "call-answer"
	OutboundTypeIceCandidate = "ice-candidate"
	OutboundTypeCallRejected = "call-rejected"
	OutboundTypeCallEnded    = "call-ended"
	OutboundTypeCallFailed   = "call-failed"
	OutboundTypeError        = "error"
)

// RegisterData introduces the client; must be the first frame on a connection.
type RegisterData struct {
	Username string `json:"username"`
	Protocol int    `json:"protocol,omitempty"`
}

// ChatData is a chat message from the client. Kind defaults to "text";
// voice notes carry base64-encoded audio in Audio.
type ChatData struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	IsGroup bool   `json:"isGroup"`
	Kind    string `json:"kind,omitempty"`
	Audio   string `json:"audio,omitempty"`
}

// CallOfferData carries the caller's session description to the callee.
type CallOfferData struct {
	To      string          `json:"to"`
	Offer   json.RawMessage `json:"offer"`
	IsGroup bool            `json:"isGroup,omitempty"`
}

// CallAnswerData carries the callee's session description back.
type CallAnswerData struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
	CallID string          `json:"callId"`
}

// IceCandidateData is relayed as-is; the server never inspects candidates.
type IceCandidateData struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallControlData covers reject and end frames.
type CallControlData struct {
	To     string `json:"to"`
	CallID string `json:"callId"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RegisteredData confirms a successful registration.
type RegisteredData struct {
	Username string `json:"username"`
}

// PresenceData notifies that a user joined or left.
type PresenceData struct {
	Username string `json:"username"`
}

// MessageData is a delivered chat message. TS is the server-side
// timestamp in unix milliseconds; clients render it over their own guess.
type MessageData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Body    string `json:"body"`
	IsGroup bool   `json:"isGroup"`
	Kind    string `json:"kind"`
	Audio   string `json:"audio,omitempty"`
	TS      int64  `json:"ts"`
}

// CallOfferEvent is delivered to the callee with the freshly minted call id.
type CallOfferEvent struct {
	From    string          `json:"from"`
	Offer   json.RawMessage `json:"offer"`
	CallID  string          `json:"callId"`
	IsGroup bool            `json:"isGroup,omitempty"`
}

// CallAnswerEvent is delivered to the original caller.
type CallAnswerEvent struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
	CallID string          `json:"callId"`
}

// IceCandidateEvent is a pass-through candidate from the remote peer.
type IceCandidateEvent struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallRejectedEvent notifies the caller the callee declined.
type CallRejectedEvent struct {
	From string `json:"from"`
}

// CallEndedEvent notifies a participant the call is over.
type CallEndedEvent struct {
	From   string `json:"from"`
	Reason string `json:"reason"`
}

// CallFailedEvent notifies the caller the attempt never rang.
type CallFailedEvent struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
