package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chatme/relay-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	conv_key   TEXT NOT NULL,
	sender     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	body       TEXT NOT NULL,
	is_group   BOOLEAN NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'text',
	audio      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conv_key, id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a store and runs an extra setup function after the
// schema. Useful for tests that seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== DirectoryStore implementation ====

// RegisterUser records a username; registering an existing name is a no-op.
func (s *SQLiteStore) RegisterUser(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username) VALUES (?)`, username)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// CreateGroup records a group name.
func (s *SQLiteStore) CreateGroup(ctx context.Context, name string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chat_groups WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if exists > 0 {
		return store.ErrGroupExists
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_groups (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

// ListUsers returns all registered usernames, sorted.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]string, error) {
	return s.listNames(ctx, `SELECT username FROM users ORDER BY username`)
}

// ListGroups returns all group names, sorted.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]string, error) {
	return s.listNames(ctx, `SELECT name FROM chat_groups ORDER BY name`)
}

func (s *SQLiteStore) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ==== HistoryStore implementation ====

// AppendMessage persists one message under its conversation key.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	key := store.ConversationKey(msg.From, msg.To, msg.IsGroup)
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	kind := msg.Kind
	if kind == "" {
		kind = "text"
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (conv_key, sender, recipient, body, is_group, kind, audio, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, msg.From, msg.To, msg.Body, msg.IsGroup, kind, msg.Audio, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// ListConversation returns up to limit messages for a conversation as
// seen by the requester, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, target, requester string, isGroup bool, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	key := store.ConversationKey(requester, target, isGroup)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, recipient, body, is_group, kind, audio, created_at
		FROM messages
		WHERE conv_key = ?
		ORDER BY id
		LIMIT ?`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := []*store.Message{}
	for rows.Next() {
		var (
			msg store.Message
			ts  int64
		)
		if err := rows.Scan(&msg.ID, &msg.From, &msg.To, &msg.Body, &msg.IsGroup, &msg.Kind, &msg.Audio, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(ts)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
