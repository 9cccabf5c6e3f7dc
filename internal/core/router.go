package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/store"
)

const persistTimeout = 2 * time.Second

// Router delivers chat messages to the correct live recipients and
// triggers persistence. Delivery favors liveness over durability: a
// failed append is logged and the message still goes out.
type Router struct {
	registry *Registry
	history  store.HistoryStore
	log      *zerolog.Logger
}

// NewRouter builds a router on top of the registry and history store.
func NewRouter(registry *Registry, history store.HistoryStore, logger *zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		history:  history,
		log:      logger,
	}
}

// Route persists the message and delivers it. Group messages fan out to
// every connected identity, sender included; direct messages go to the
// recipient and are echoed to the sender independently, so the sender's
// UI converges on the authoritative server timestamp. An offline
// recipient is a normal branch, not an error; nothing is queued.
func (rt *Router) Route(ctx context.Context, msg Message) {
	if msg.Kind == "" {
		msg.Kind = KindText
	}

	if rt.history != nil {
		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		if err := rt.history.AppendMessage(pctx, &store.Message{
			From:      msg.From,
			To:        msg.To,
			Body:      msg.Body,
			IsGroup:   msg.IsGroup,
			Kind:      msg.Kind,
			Audio:     msg.Audio,
			CreatedAt: msg.CreatedAt,
		}); err != nil {
			rt.log.Error().Err(err).Str("from", msg.From).Str("to", msg.To).Msg("persist message")
		}
		cancel()
	}

	ev := &Event{Kind: EventMessage, Message: msg}

	if msg.IsGroup {
		// Membership is implicit: a group message reaches everyone online.
		rt.registry.Broadcast(ev, "")
		return
	}

	if !rt.registry.Send(msg.To, ev) {
		rt.log.Debug().Str("to", msg.To).Msg("recipient offline, message not delivered live")
	}
	if msg.From != msg.To {
		rt.registry.Send(msg.From, ev)
	}
}
