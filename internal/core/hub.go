package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/store"
)

type opKind int

const (
	opRegister opKind = iota
	opCommand
	opUnregister
	opRingExpired
	opAnnounce
)

type envelope struct {
	op       opKind
	client   *Client
	cmd      *Command
	callID   string
	username string
}

// Hub owns the registry, router and call table and serializes every
// mutation on its run loop: registrations, routing decisions and call
// transitions are each one critical section. Per-client pumps preserve
// inbound-frame order per connection; frames from different connections
// interleave arbitrarily.
type Hub struct {
	log         *zerolog.Logger
	registry    *Registry
	router      *Router
	calls       *CallTable
	ringTimeout time.Duration

	inbox chan envelope
	done  chan struct{}
}

// NewHub wires a hub with its registry, router and call table.
// ringTimeout bounds how long a session may stay ringing; zero disables
// expiry.
func NewHub(history store.HistoryStore, ringTimeout time.Duration, logger *zerolog.Logger) *Hub {
	registry := NewRegistry(logger)
	return &Hub{
		log:         logger,
		registry:    registry,
		router:      NewRouter(registry, history, logger),
		calls:       NewCallTable(registry, logger),
		ringTimeout: ringTimeout,
		inbox:       make(chan envelope, 256),
		done:        make(chan struct{}),
	}
}

// RegisterClient hands a connection to the hub and starts pumping its
// commands into the run loop. The pump emits the unregister op itself
// once the client's command stream closes, so a connection's frames are
// always processed before its teardown.
func (h *Hub) RegisterClient(c *Client) {
	go func() {
		h.post(envelope{op: opRegister, client: c})
		for cmd := range c.Commands {
			h.post(envelope{op: opCommand, client: c, cmd: cmd})
		}
		h.post(envelope{op: opUnregister, client: c})
	}()
}

// UnregisterClient closes the client's command stream; the pump then
// drains remaining commands and posts the unregister op in order.
func (h *Hub) UnregisterClient(c *Client) {
	c.Close()
}

// AnnounceUser broadcasts a join notice for an identity registered
// through the directory API rather than a live socket.
func (h *Hub) AnnounceUser(username string) {
	h.post(envelope{op: opAnnounce, username: username})
}

// Run processes hub operations until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.inbox:
			h.dispatch(ctx, env)
		}
	}
}

func (h *Hub) post(env envelope) {
	select {
	case h.inbox <- env:
	case <-h.done:
	}
}

func (h *Hub) dispatch(ctx context.Context, env envelope) {
	switch env.op {
	case opRegister:
		h.registry.Register(env.client)
	case opUnregister:
		h.dropClient(env.client)
	case opRingExpired:
		h.calls.ExpireRing(env.callID)
	case opAnnounce:
		h.registry.Broadcast(&Event{Kind: EventUserJoined, User: env.username}, env.username)
	case opCommand:
		h.handleCommand(ctx, env.client, env.cmd)
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandRegister:
		h.rebind(c, cmd.Username)
	case CommandSendChat:
		msg := cmd.Message
		msg.From = c.Username
		msg.CreatedAt = time.Now()
		h.router.Route(ctx, msg)
	case CommandCallOffer:
		callID, created := h.calls.Offer(c.Username, cmd.Call)
		if created && h.ringTimeout > 0 {
			time.AfterFunc(h.ringTimeout, func() {
				h.post(envelope{op: opRingExpired, callID: callID})
			})
		}
	case CommandCallAnswer:
		h.calls.Answer(c.Username, cmd.Call)
	case CommandIceCandidate:
		h.calls.Candidate(c.Username, cmd.Call)
	case CommandCallReject:
		h.calls.Reject(c.Username, cmd.Call)
	case CommandCallEnd:
		h.calls.End(c.Username, cmd.Call)
	default:
		c.deliver(&Event{Kind: EventError, Error: &CoreError{
			Code:    ErrCodeBadRequest,
			Message: "unknown command",
		}})
	}
}

// rebind handles a register frame arriving on an already-registered
// connection. Same name: re-register in place, which re-announces the
// join. New name: release the old binding first, then register under the
// new identity.
func (h *Hub) rebind(c *Client, username string) {
	if username == "" || username == c.Username {
		h.registry.Register(c)
		return
	}
	h.dropClient(c)
	c.Username = username
	h.registry.Register(c)
}

// dropClient releases the client's registry binding. Call teardown goes
// out before the leave notice, so a peer in a call always learns the call
// ended before it learns the user left.
func (h *Hub) dropClient(c *Client) {
	if !h.registry.Unregister(c) {
		return
	}
	h.calls.DropParticipant(c.Username)
	h.registry.Broadcast(&Event{Kind: EventUserLeft, User: c.Username}, "")
}
