package core

import "time"

// Message kinds carried by the router.
const (
	KindText      = "text"
	KindVoice     = "voice"
	KindCallEvent = "call-event"
)

// Message is the domain model for a chat message. It is immutable once
// the hub has stamped From and CreatedAt; the core hands it to the router
// and the history store and does not retain it after dispatch.
type Message struct {
	From      string
	To        string
	Body      string
	IsGroup   bool
	Kind      string
	Audio     string // base64 payload for voice notes
	CreatedAt time.Time
}
