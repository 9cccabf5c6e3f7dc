package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatme/relay-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 2 {
		if err := s.RegisterUser(ctx, "alice"); err != nil {
			t.Fatalf("register user: %v", err)
		}
	}
	if err := s.RegisterUser(ctx, "bob"); err != nil {
		t.Fatalf("register user: %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("unexpected users: %v", users)
	}
}

func TestCreateGroupRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "devs"); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := s.CreateGroup(ctx, "devs"); !errors.Is(err, store.ErrGroupExists) {
		t.Fatalf("expected ErrGroupExists, got %v", err)
	}

	groups, err := s.ListGroups(ctx)
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(groups) != 1 || groups[0] != "devs" {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestConversationHistoryIsSymmetric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	msgs := []*store.Message{
		{From: "alice", To: "bob", Body: "hi", CreatedAt: base},
		{From: "bob", To: "alice", Body: "hey", CreatedAt: base.Add(time.Second)},
		{From: "alice", To: "carol", Body: "other thread", CreatedAt: base},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Both participants query the same bucket regardless of direction.
	fromAlice, err := s.ListConversation(ctx, "bob", "alice", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	fromBob, err := s.ListConversation(ctx, "alice", "bob", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(fromAlice) != 2 || len(fromBob) != 2 {
		t.Fatalf("expected 2 messages each way, got %d and %d", len(fromAlice), len(fromBob))
	}
	if fromAlice[0].Body != "hi" || fromAlice[1].Body != "hey" {
		t.Fatalf("messages out of order: %+v", fromAlice)
	}
}

func TestGroupHistoryKeyedByGroupName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendMessage(ctx, &store.Message{
		From: "alice", To: "devs", Body: "standup", IsGroup: true,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Any requester sees the group bucket.
	msgs, err := s.ListConversation(ctx, "devs", "bob", true, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "standup" || !msgs[0].IsGroup {
		t.Fatalf("unexpected group history: %+v", msgs)
	}
}

func TestVoiceMessagePersistsAudioAndKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendMessage(ctx, &store.Message{
		From: "alice", To: "bob", Body: "[voice note]", Kind: "voice", Audio: "YXVkaW8=",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := s.ListConversation(ctx, "alice", "bob", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Kind != "voice" || msgs[0].Audio != "YXVkaW8=" {
		t.Fatalf("voice payload lost: %+v", msgs[0])
	}
}

func TestListConversationHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.AppendMessage(ctx, &store.Message{From: "alice", To: "bob", Body: "m"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	msgs, err := s.ListConversation(ctx, "bob", "alice", false, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
}
