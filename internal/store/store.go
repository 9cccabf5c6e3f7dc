package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Message is a persisted chat message.
type Message struct {
	ID        int64
	From      string
	To        string
	Body      string
	IsGroup   bool
	Kind      string
	Audio     string
	CreatedAt time.Time
}

// ErrGroupExists is returned when creating a group whose name is taken.
var ErrGroupExists = errors.New("group already exists")

// ConversationKey computes the history bucket for a message: the group
// name for group traffic, otherwise the sorted username pair, so both
// directions of a direct conversation share one key.
func ConversationKey(from, to string, isGroup bool) string {
	if isGroup {
		return to
	}
	if from > to {
		from, to = to, from
	}
	return from + "_" + to
}

// HistoryStore persists chat messages and serves history queries.
// Appends are fire-and-forget from the router's perspective; queries are
// issued fresh each time.
type HistoryStore interface {
	// AppendMessage persists one message.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListConversation returns up to limit messages for a target as seen
	// by the requester, oldest first.
	ListConversation(ctx context.Context, target, requester string, isGroup bool, limit int) ([]*Message, error)
}

// DirectoryStore is the persistent user/group directory, distinct from
// the live-connection registry: it remembers every identity and group
// ever registered, not who is connected right now.
type DirectoryStore interface {
	// RegisterUser records a username. Registering an existing name is a no-op.
	RegisterUser(ctx context.Context, username string) error

	// CreateGroup records a group name; ErrGroupExists if taken.
	CreateGroup(ctx context.Context, name string) error

	// ListUsers returns all registered usernames, sorted.
	ListUsers(ctx context.Context) ([]string, error)

	// ListGroups returns all group names, sorted.
	ListGroups(ctx context.Context) ([]string, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	HistoryStore
	DirectoryStore

	// Close closes the underlying database connection.
	Close() error
}

// ValidName reports whether a username or group name is acceptable.
func ValidName(name string) bool {
	return strings.TrimSpace(name) != ""
}
