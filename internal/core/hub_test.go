package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T, ringTimeout time.Duration) *Hub {
	t.Helper()

	hub := NewHub(&memHistory{}, ringTimeout, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, username string) *Client {
	t.Helper()

	c := NewClient(username+"-conn", username)
	hub.RegisterClient(c)
	mustEvent(t, c.Events, EventRegistered)
	return c
}

func TestHubChatRoundTrip(t *testing.T) {
	hub := startHub(t, 0)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	mustEvent(t, alice.Events, EventUserJoined)

	alice.Commands <- &Command{
		Kind:    CommandSendChat,
		Message: Message{To: "bob", Body: "hello"},
	}

	ev := mustEvent(t, bob.Events, EventMessage)
	if ev.Message.From != "alice" || ev.Message.Body != "hello" {
		t.Fatalf("unexpected message: %+v", ev.Message)
	}
	if ev.Message.CreatedAt.IsZero() {
		t.Fatalf("hub must stamp the server timestamp")
	}
	// Sender echo carries the same authoritative message.
	echo := mustEvent(t, alice.Events, EventMessage)
	if echo.Message.Body != "hello" {
		t.Fatalf("unexpected echo: %+v", echo.Message)
	}
}

func TestHubCallSignalingRoundTrip(t *testing.T) {
	hub := startHub(t, 0)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	alice.Commands <- &Command{
		Kind: CommandCallOffer,
		Call: CallRequest{To: "bob", Payload: json.RawMessage(`{"sdp":"offer"}`)},
	}

	offer := mustEvent(t, bob.Events, EventCallOffer)
	callID := offer.Call.CallID
	if callID == "" {
		t.Fatalf("offer must carry a call id")
	}

	bob.Commands <- &Command{
		Kind: CommandCallAnswer,
		Call: CallRequest{CallID: callID, Payload: json.RawMessage(`{"sdp":"answer"}`)},
	}
	mustEvent(t, alice.Events, EventCallAnswer)

	bob.Commands <- &Command{
		Kind: CommandIceCandidate,
		Call: CallRequest{To: "alice", Payload: json.RawMessage(`{"candidate":"c0"}`)},
	}
	mustEvent(t, alice.Events, EventIceCandidate)

	alice.Commands <- &Command{Kind: CommandCallEnd, Call: CallRequest{To: "bob", CallID: callID}}
	ended := mustEvent(t, bob.Events, EventCallEnded)
	if ended.Call.Reason != ReasonCallEnded {
		t.Fatalf("unexpected reason: %s", ended.Call.Reason)
	}
}

func TestHubDisconnectMidRingTearsDownCall(t *testing.T) {
	hub := startHub(t, 0)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	alice.Commands <- &Command{
		Kind: CommandCallOffer,
		Call: CallRequest{To: "bob", Payload: json.RawMessage(`{"sdp":"offer"}`)},
	}
	mustEvent(t, bob.Events, EventCallOffer)

	hub.UnregisterClient(alice)

	// Teardown precedes the leave notice: the first event bob observes is
	// the call ending, then the disconnect broadcast.
	ended := mustEvent(t, bob.Events, EventCallEnded)
	if ended.Call.Reason != ReasonUserDisconnected {
		t.Fatalf("unexpected reason: %s", ended.Call.Reason)
	}
	left := mustEvent(t, bob.Events, EventUserLeft)
	if left.User != "alice" {
		t.Fatalf("unexpected leave user: %s", left.User)
	}
}

func TestHubRebindToNewNameTearsDownCallsBeforeLeave(t *testing.T) {
	hub := startHub(t, 0)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	alice.Commands <- &Command{
		Kind: CommandCallOffer,
		Call: CallRequest{To: "bob", Payload: json.RawMessage(`{"sdp":"offer"}`)},
	}
	mustEvent(t, bob.Events, EventCallOffer)

	// Re-registering under a new name releases the old identity the same
	// way a disconnect would.
	alice.Commands <- &Command{Kind: CommandRegister, Username: "alice2"}

	ended := mustEvent(t, bob.Events, EventCallEnded)
	if ended.Call.Reason != ReasonUserDisconnected {
		t.Fatalf("unexpected reason: %s", ended.Call.Reason)
	}
	left := mustEvent(t, bob.Events, EventUserLeft)
	if left.User != "alice" {
		t.Fatalf("unexpected leave user: %s", left.User)
	}
	joined := mustEvent(t, bob.Events, EventUserJoined)
	if joined.User != "alice2" {
		t.Fatalf("unexpected join user: %s", joined.User)
	}
}

func TestHubRingTimeoutExpiresPendingCall(t *testing.T) {
	hub := startHub(t, 30*time.Millisecond)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	alice.Commands <- &Command{
		Kind: CommandCallOffer,
		Call: CallRequest{To: "bob", Payload: json.RawMessage(`{"sdp":"offer"}`)},
	}
	mustEvent(t, bob.Events, EventCallOffer)

	failed := mustEvent(t, alice.Events, EventCallFailed)
	if failed.Call.Reason != ReasonNoAnswer {
		t.Fatalf("unexpected reason: %s", failed.Call.Reason)
	}
	timedOut := mustEvent(t, bob.Events, EventCallEnded)
	if timedOut.Call.Reason != ReasonRingTimeout {
		t.Fatalf("unexpected reason: %s", timedOut.Call.Reason)
	}
}

func TestHubAnsweredCallSurvivesRingTimer(t *testing.T) {
	hub := startHub(t, 40*time.Millisecond)

	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	alice.Commands <- &Command{
		Kind: CommandCallOffer,
		Call: CallRequest{To: "bob", Payload: json.RawMessage(`{"sdp":"offer"}`)},
	}
	offer := mustEvent(t, bob.Events, EventCallOffer)

	bob.Commands <- &Command{
		Kind: CommandCallAnswer,
		Call: CallRequest{CallID: offer.Call.CallID, Payload: json.RawMessage(`{"sdp":"answer"}`)},
	}
	mustEvent(t, alice.Events, EventCallAnswer)

	// Let the ring timer fire on the connected call; nothing should happen.
	expectNoEvent(t, alice.Events, EventCallFailed, 100*time.Millisecond)
	expectNoEvent(t, bob.Events, EventCallEnded, 30*time.Millisecond)
}

func TestHubDuplicateRegisterFrames(t *testing.T) {
	hub := startHub(t, 0)

	watcher := connect(t, hub, "watcher")
	alice := connect(t, hub, "alice")
	mustEvent(t, watcher.Events, EventUserJoined)

	// A repeated register frame re-announces rather than deduplicating.
	alice.Commands <- &Command{Kind: CommandRegister, Username: "alice"}
	mustEvent(t, alice.Events, EventRegistered)
	mustEvent(t, watcher.Events, EventUserJoined)
}

func TestHubReplacedConnectionDisconnectKeepsNewMapping(t *testing.T) {
	hub := startHub(t, 0)

	watcher := connect(t, hub, "watcher")

	oldConn := connect(t, hub, "alice")
	newConn := connect(t, hub, "alice")
	mustEvent(t, watcher.Events, EventUserJoined)
	mustEvent(t, watcher.Events, EventUserJoined)

	// The superseded transport closes; the new mapping must survive and
	// no user-left may be announced.
	hub.UnregisterClient(oldConn)
	expectNoEvent(t, watcher.Events, EventUserLeft, 80*time.Millisecond)

	// Traffic still reaches alice via the new connection.
	watcher.Commands <- &Command{
		Kind:    CommandSendChat,
		Message: Message{To: "alice", Body: "still there?"},
	}
	mustEvent(t, newConn.Events, EventMessage)
}
