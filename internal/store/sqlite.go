// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			avatar_ref TEXT NOT NULL DEFAULT '',
			is_online INTEGER NOT NULL DEFAULT 0,
			last_seen_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			is_group INTEGER NOT NULL,
			pair_key TEXT,
			last_activity_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		-- At most one private conversation per unordered user pair. The key
		-- is NULL for group conversations, which the partial index ignores.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair_key
			ON conversations(pair_key) WHERE pair_key IS NOT NULL;

		CREATE INDEX IF NOT EXISTS idx_conversations_activity
			ON conversations(last_activity_at);

		CREATE TABLE IF NOT EXISTS participants (
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			PRIMARY KEY (conversation_id, user_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_participants_user
			ON participants(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			author_id TEXT,
			content TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (author_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// Timestamps are stored as RFC3339 with nanoseconds; message ordering within
// a conversation depends on sub-second resolution.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// UpsertUser inserts or replaces a user record
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, display_name, avatar_ref, is_online, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			avatar_ref = excluded.avatar_ref,
			is_online = excluded.is_online,
			last_seen_at = excluded.last_seen_at
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.DisplayName,
		user.AvatarRef,
		boolToInt(user.Online),
		formatTime(user.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, display_name, avatar_ref, is_online, last_seen_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// ListUsers returns all users ordered by display name
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, display_name, avatar_ref, is_online, last_seen_at
		FROM users
		ORDER BY display_name, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	return scanUserRows(rows)
}

// SetUserPresence updates a user's online flag and last-seen timestamp.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	query := `UPDATE users SET is_online = ?, last_seen_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, boolToInt(online), formatTime(lastSeen), id)
	if err != nil {
		return fmt.Errorf("updating presence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating presence: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateConversation creates a new conversation. For private conversations,
// pairKey must be the canonical PairKey of the two participants; if another
// conversation already holds that key, ErrDuplicateConversation is returned.
// Pass an empty pairKey for group conversations.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation, pairKey string) error {
	query := `
		INSERT INTO conversations (id, display_name, is_group, pair_key, last_activity_at, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.DisplayName,
		boolToInt(conv.IsGroup),
		pairKey,
		formatTime(conv.LastActivityAt),
		formatTime(conv.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "is_group", conv.IsGroup)
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, display_name, is_group, last_activity_at, created_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetConversationByPairKey retrieves the private conversation for an
// unordered user pair. Returns ErrNotFound if none exists.
func (s *SQLiteStore) GetConversationByPairKey(ctx context.Context, pairKey string) (*Conversation, error) {
	query := `
		SELECT id, display_name, is_group, last_activity_at, created_at
		FROM conversations
		WHERE pair_key = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, pairKey))
}

// ListConversationsByMember returns the conversations the user participates
// in, most recently active first.
func (s *SQLiteStore) ListConversationsByMember(ctx context.Context, userID string) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.display_name, c.is_group, c.last_activity_at, c.created_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.last_activity_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// AddMember attaches a membership edge.
// Returns ErrAlreadyMember if the user is already a participant.
func (s *SQLiteStore) AddMember(ctx context.Context, conversationID, userID string, joinedAt time.Time) error {
	query := `
		INSERT INTO participants (conversation_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, conversationID, userID, formatTime(joinedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyMember
		}
		return fmt.Errorf("inserting membership: %w", err)
	}

	s.logger.Debug("added member", "conversation_id", conversationID, "user_id", userID)
	return nil
}

// RemoveMember removes a membership edge.
// Returns ErrNotFound if the user was not a participant.
func (s *SQLiteStore) RemoveMember(ctx context.Context, conversationID, userID string) error {
	query := `DELETE FROM participants WHERE conversation_id = ? AND user_id = ?`

	res, err := s.db.ExecContext(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed member", "conversation_id", conversationID, "user_id", userID)
	return nil
}

// ListMembers returns a conversation's participants in insertion order.
func (s *SQLiteStore) ListMembers(ctx context.Context, conversationID string) ([]*User, error) {
	query := `
		SELECT u.id, u.display_name, u.avatar_ref, u.is_online, u.last_seen_at
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = ?
		ORDER BY p.rowid
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	return scanUserRows(rows)
}

// IsMember reports whether the user currently participates in the conversation.
func (s *SQLiteStore) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	query := `SELECT 1 FROM participants WHERE conversation_id = ? AND user_id = ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying membership: %w", err)
	}
	return true, nil
}

// AppendMessage persists a message and bumps the conversation's
// last_activity_at in one transaction. The store assigns msg.CreatedAt:
// strictly after the conversation's current last_activity_at, so ordering
// stays monotonic per conversation even when the wall clock moves backwards.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var lastActivityStr string
	err = tx.QueryRowContext(ctx,
		`SELECT last_activity_at FROM conversations WHERE id = ?`,
		msg.ConversationID,
	).Scan(&lastActivityStr)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying conversation: %w", err)
	}

	lastActivity, err := parseTime(lastActivityStr)
	if err != nil {
		return fmt.Errorf("parsing last_activity_at: %w", err)
	}

	ts := time.Now().UTC()
	if !ts.After(lastActivity) {
		ts = lastActivity.Add(time.Nanosecond)
	}
	msg.CreatedAt = ts

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, author_id, content, read, created_at)
		 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)`,
		msg.ID,
		msg.ConversationID,
		msg.AuthorID,
		msg.Content,
		boolToInt(msg.Read),
		formatTime(ts),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at = ? WHERE id = ?`,
		formatTime(ts),
		msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("updating last_activity_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("appended message",
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"system", msg.System())
	return nil
}

// ListRecentMessages returns up to limit of the conversation's newest
// messages, oldest first.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, author_id, content, read, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	return scanMessageRows(rows)
}

// ListMessagesAfter returns the conversation's messages created strictly
// after the given timestamp, oldest first. Used by clients reconciling
// after a live-channel reconnect.
func (s *SQLiteStore) ListMessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, author_id, content, read, created_at
		FROM messages
		WHERE conversation_id = ? AND created_at > ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, formatTime(after))
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	return scanMessageRows(rows)
}

// LatestMessage returns the conversation's most recent message.
// Returns ErrNotFound if the conversation has no messages.
func (s *SQLiteStore) LatestMessage(ctx context.Context, conversationID string) (*Message, error) {
	query := `
		SELECT id, conversation_id, author_id, content, read, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := s.db.QueryRowContext(ctx, query, conversationID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest message: %w", err)
	}
	return msg, nil
}

// MarkMessagesRead flips the read flag on every unread message in the
// conversation authored by someone other than readerID. System messages are
// never marked. Idempotent: returns the number of messages transitioned,
// which is zero when nothing was unread.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	query := `
		UPDATE messages
		SET read = 1
		WHERE conversation_id = ?
		  AND author_id IS NOT NULL
		  AND author_id != ?
		  AND read = 0
	`

	res, err := s.db.ExecContext(ctx, query, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	if n > 0 {
		s.logger.Debug("marked messages read",
			"conversation_id", conversationID,
			"reader_id", readerID,
			"count", n)
	}
	return n, nil
}

// scanUser scans a single user row.
// Returns ErrNotFound for sql.ErrNoRows.
func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var online int
	var lastSeenStr string

	err := row.Scan(&user.ID, &user.DisplayName, &user.AvatarRef, &online, &lastSeenStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	user.Online = online != 0
	user.LastSeenAt, err = parseTime(lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen_at: %w", err)
	}
	return &user, nil
}

func scanUserRows(rows *sql.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		var user User
		var online int
		var lastSeenStr string

		if err := rows.Scan(&user.ID, &user.DisplayName, &user.AvatarRef, &online, &lastSeenStr); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		user.Online = online != 0

		var err error
		user.LastSeenAt, err = parseTime(lastSeenStr)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen_at: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// scanConversation scans a single conversation row.
// Returns ErrNotFound for sql.ErrNoRows.
func (s *SQLiteStore) scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var isGroup int
	var lastActivityStr, createdStr string

	err := row.Scan(&conv.ID, &conv.DisplayName, &isGroup, &lastActivityStr, &createdStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	conv.IsGroup = isGroup != 0
	if conv.LastActivityAt, err = parseTime(lastActivityStr); err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}
	if conv.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &conv, nil
}

func scanConversationRow(rows *sql.Rows) (*Conversation, error) {
	var conv Conversation
	var isGroup int
	var lastActivityStr, createdStr string

	if err := rows.Scan(&conv.ID, &conv.DisplayName, &isGroup, &lastActivityStr, &createdStr); err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	conv.IsGroup = isGroup != 0
	var err error
	if conv.LastActivityAt, err = parseTime(lastActivityStr); err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}
	if conv.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &conv, nil
}

func scanMessage(row *sql.Row) (*Message, error) {
	var msg Message
	var author sql.NullString
	var read int
	var createdStr string

	err := row.Scan(&msg.ID, &msg.ConversationID, &author, &msg.Content, &read, &createdStr)
	if err != nil {
		return nil, err
	}

	msg.AuthorID = author.String
	msg.Read = read != 0
	msg.CreatedAt, err = parseTime(createdStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &msg, nil
}

func scanMessageRows(rows *sql.Rows) ([]*Message, error) {
	var msgs []*Message
	for rows.Next() {
		var msg Message
		var author sql.NullString
		var read int
		var createdStr string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &author, &msg.Content, &read, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.AuthorID = author.String
		msg.Read = read != 0

		var err error
		msg.CreatedAt, err = parseTime(createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
