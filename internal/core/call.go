package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CallState is the lifecycle state of one call attempt.
type CallState string

const (
	CallRinging   CallState = "ringing"
	CallConnected CallState = "connected"
	CallEnded     CallState = "ended"
	CallRejected  CallState = "rejected"
	CallFailed    CallState = "failed"
)

// CallSession is the stateful record of one call-setup attempt between
// exactly two identities, fixed at creation. Terminal states are never
// re-entered; a new attempt always mints a new call id.
type CallSession struct {
	ID        string
	Caller    string
	Callee    string
	State     CallState
	CreatedAt time.Time
}

func (s *CallSession) peer(username string) string {
	if s.Caller == username {
		return s.Callee
	}
	return s.Caller
}

// NewCallID derives a call id from the participants and creation time,
// matching the caller_callee_unixms shape clients already parse.
func NewCallID(caller, callee string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", caller, callee, at.UnixMilli())
}

// CallTable owns every live call session, keyed by call id. Like the
// registry it is confined to the hub goroutine; transitions and the
// disconnect sweep serialize there, so an answer racing a disconnect for
// the same call id resolves deterministically.
type CallTable struct {
	registry *Registry
	log      *zerolog.Logger
	sessions map[string]*CallSession
}

// NewCallTable creates an empty call table.
func NewCallTable(registry *Registry, logger *zerolog.Logger) *CallTable {
	return &CallTable{
		registry: registry,
		log:      logger,
		sessions: make(map[string]*CallSession),
	}
}

// Offer starts a call attempt. If the callee is offline no session is
// created and the caller gets a synthesized call-failed, so it is never
// left waiting. Otherwise a ringing session is created and the offer is
// relayed to the callee together with the new call id.
func (t *CallTable) Offer(from string, req CallRequest) (string, bool) {
	if _, online := t.registry.Lookup(req.To); !online {
		t.registry.Send(from, &Event{
			Kind: EventCallFailed,
			Call: &CallEvent{From: from, To: req.To, Reason: ReasonUserUnavailable},
		})
		t.log.Info().Str("caller", from).Str("callee", req.To).Msg("call failed, callee unavailable")
		return "", false
	}

	now := time.Now()
	session := &CallSession{
		ID:        NewCallID(from, req.To, now),
		Caller:    from,
		Callee:    req.To,
		State:     CallRinging,
		CreatedAt: now,
	}
	t.sessions[session.ID] = session

	delivered := t.registry.Send(req.To, &Event{
		Kind: EventCallOffer,
		Call: &CallEvent{CallID: session.ID, From: from, To: req.To, IsGroup: req.IsGroup, Payload: req.Payload},
	})
	if !delivered {
		// The write failed between lookup and send; same as offline.
		delete(t.sessions, session.ID)
		t.registry.Send(from, &Event{
			Kind: EventCallFailed,
			Call: &CallEvent{From: from, To: req.To, Reason: ReasonUserUnavailable},
		})
		return "", false
	}

	t.log.Info().Str("call_id", session.ID).Str("caller", from).Str("callee", req.To).Msg("call ringing")
	return session.ID, true
}

// Answer transitions a ringing session to connected and relays the
// answer to the original caller. An unknown call id is a benign race
// with a disconnect or timeout, not an error.
func (t *CallTable) Answer(from string, req CallRequest) {
	session, ok := t.sessions[req.CallID]
	if !ok || session.State != CallRinging {
		t.log.Debug().Str("call_id", req.CallID).Msg("answer for stale session ignored")
		return
	}
	session.State = CallConnected

	t.registry.Send(session.Caller, &Event{
		Kind: EventCallAnswer,
		Call: &CallEvent{CallID: session.ID, From: from, To: session.Caller, Payload: req.Payload},
	})
	t.log.Info().Str("call_id", session.ID).Msg("call connected")
}

// Candidate relays a connectivity candidate to its target. The relay
// never buffers candidates: it cannot know whether the remote description
// has been applied, so queueing ahead of it belongs to the receiving
// endpoint.
func (t *CallTable) Candidate(from string, req CallRequest) {
	t.registry.Send(req.To, &Event{
		Kind: EventIceCandidate,
		Call: &CallEvent{From: from, To: req.To, Payload: req.Payload},
	})
}

// Reject declines a ringing call, notifies the caller and destroys the
// session.
func (t *CallTable) Reject(from string, req CallRequest) {
	session, ok := t.sessions[req.CallID]
	if !ok {
		return
	}
	session.State = CallRejected
	delete(t.sessions, session.ID)

	t.registry.Send(session.Caller, &Event{
		Kind: EventCallRejected,
		Call: &CallEvent{CallID: session.ID, From: from, To: session.Caller},
	})
	t.log.Info().Str("call_id", session.ID).Str("by", from).Msg("call rejected")
}

// End hangs up a call, notifies the other participant and destroys the
// session. Ending an already-destroyed session is a no-op.
func (t *CallTable) End(from string, req CallRequest) {
	session, ok := t.sessions[req.CallID]
	if !ok {
		return
	}
	session.State = CallEnded
	delete(t.sessions, session.ID)

	t.registry.Send(session.peer(from), &Event{
		Kind: EventCallEnded,
		Call: &CallEvent{CallID: session.ID, From: from, Reason: ReasonCallEnded},
	})
	t.log.Info().Str("call_id", session.ID).Str("by", from).Msg("call ended")
}

// DropParticipant tears down every session the identity participates in,
// notifying the remaining peer. Invoked on unregister, it guarantees no
// session outlives both its participants' connections.
func (t *CallTable) DropParticipant(username string) {
	for id, session := range t.sessions {
		if session.Caller != username && session.Callee != username {
			continue
		}
		session.State = CallEnded
		delete(t.sessions, id)

		t.registry.Send(session.peer(username), &Event{
			Kind: EventCallEnded,
			Call: &CallEvent{CallID: id, From: username, Reason: ReasonUserDisconnected},
		})
		t.log.Info().Str("call_id", id).Str("username", username).Msg("call torn down on disconnect")
	}
}

// ExpireRing fails a session that is still ringing when its timer fires.
// Sessions already answered, rejected or torn down are left alone.
func (t *CallTable) ExpireRing(callID string) {
	session, ok := t.sessions[callID]
	if !ok || session.State != CallRinging {
		return
	}
	session.State = CallFailed
	delete(t.sessions, callID)

	t.registry.Send(session.Caller, &Event{
		Kind: EventCallFailed,
		Call: &CallEvent{CallID: callID, From: session.Caller, To: session.Callee, Reason: ReasonNoAnswer},
	})
	t.registry.Send(session.Callee, &Event{
		Kind: EventCallEnded,
		Call: &CallEvent{CallID: callID, From: session.Caller, Reason: ReasonRingTimeout},
	})
	t.log.Info().Str("call_id", callID).Msg("ringing call expired")
}

// Session returns the live session for a call id, if any.
func (t *CallTable) Session(callID string) (*CallSession, bool) {
	s, ok := t.sessions[callID]
	return s, ok
}

// ActiveSessions returns the number of live sessions.
func (t *CallTable) ActiveSessions() int {
	return len(t.sessions)
}
