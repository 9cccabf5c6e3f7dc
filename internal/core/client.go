package core

import "sync"

// Client is one live connection as seen by the core layer. The Events
// channel is the connection's outbound write handle; the registry entry
// for the client's username owns it exclusively.
type Client struct {
	ID       string
	Username string
	Commands chan *Command
	Events   chan *Event

	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id, username string) *Client {
	return &Client{
		ID:       id,
		Username: username,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}

// Close marks the end of the client's inbound stream. Safe to call more
// than once; the hub unregisters the client after draining its commands.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Commands)
	})
}

// deliver attempts a non-blocking send on the client's event channel.
// A full buffer means a slow or broken peer; the event is dropped and the
// peer treated as offline for this delivery.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
