package core

import (
	"github.com/rs/zerolog"
)

// Registry is the live-connection directory keyed by username. It is
// confined to the hub goroutine: every mutation and read happens on the
// hub's run loop, so the maps need no locking.
type Registry struct {
	log     *zerolog.Logger
	clients map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		log:     logger,
		clients: make(map[string]*Client),
	}
}

// Register installs or replaces the mapping for the client's username,
// acks the client, and announces the join to every other registered
// identity. A replaced connection is not closed here; it simply stops
// being addressable and tears itself down when its transport drops.
func (r *Registry) Register(c *Client) {
	if prev, ok := r.clients[c.Username]; ok && prev != c {
		r.log.Info().Str("username", c.Username).Msg("registration superseded by newer connection")
	}
	r.clients[c.Username] = c

	c.deliver(&Event{Kind: EventRegistered, User: c.Username})
	r.Broadcast(&Event{Kind: EventUserJoined, User: c.Username}, c.Username)

	r.log.Info().Str("username", c.Username).Int("online", len(r.clients)).Msg("client registered")
}

// Lookup returns the live connection for an identity. Absence is not an
// error; it is the normal signal that the target is offline.
func (r *Registry) Lookup(username string) (*Client, bool) {
	c, ok := r.clients[username]
	return c, ok
}

// Unregister removes the mapping only if it still points at this client,
// guarding against tearing down a mapping already replaced by a newer
// registration for the same name. Returns true if the mapping was removed.
// The leave notice is not broadcast here: the hub sweeps the identity's
// call sessions first, so peers see the call teardown before the leave.
func (r *Registry) Unregister(c *Client) bool {
	current, ok := r.clients[c.Username]
	if !ok || current != c {
		return false
	}
	delete(r.clients, c.Username)

	r.log.Info().Str("username", c.Username).Int("online", len(r.clients)).Msg("client unregistered")
	return true
}

// Broadcast fans an event out to every registered connection except the
// excluded identity. Delivery is best effort: a peer with a full buffer
// is logged and skipped, never retried.
func (r *Registry) Broadcast(ev *Event, excluding string) {
	for username, c := range r.clients {
		if username == excluding {
			continue
		}
		if !c.deliver(ev) {
			r.log.Warn().Str("username", username).Msg("dropped event for slow peer")
		}
	}
}

// Send delivers an event to one identity if it is online. Returns false
// when the target is offline or its buffer is full; both degrade to the
// same offline handling.
func (r *Registry) Send(username string, ev *Event) bool {
	c, ok := r.clients[username]
	if !ok {
		return false
	}
	if !c.deliver(ev) {
		r.log.Warn().Str("username", username).Msg("dropped event for slow peer")
		return false
	}
	return true
}

// Usernames returns the identities currently online.
func (r *Registry) Usernames() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// Size returns the number of live connections.
func (r *Registry) Size() int {
	return len(r.clients)
}
