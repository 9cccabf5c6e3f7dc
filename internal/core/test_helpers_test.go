package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func expectNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, within time.Duration) {
	t.Helper()

	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// memHistory is an in-memory HistoryStore for router tests.
type memHistory struct {
	appended []*store.Message
	failErr  error
}

func (m *memHistory) AppendMessage(_ context.Context, msg *store.Message) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.appended = append(m.appended, msg)
	return nil
}

func (m *memHistory) ListConversation(_ context.Context, target, requester string, isGroup bool, limit int) ([]*store.Message, error) {
	key := store.ConversationKey(requester, target, isGroup)
	var out []*store.Message
	for _, msg := range m.appended {
		if store.ConversationKey(msg.From, msg.To, msg.IsGroup) == key {
			out = append(out, msg)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var errHistoryDown = errors.New("history store down")
