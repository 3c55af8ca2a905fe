// ABOUTME: SQLite implementation of the snapshot cache using modernc.org/sqlite
// ABOUTME: Creates its schema on open and upgrades older cache files in place

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pethome/pethome-inbox/internal/client"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the cache at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pragmas are per connection; keep a single one
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

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

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Debug("snapshot cache opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			user_id INTEGER PRIMARY KEY,
			unread_total INTEGER NOT NULL DEFAULT 0,
			saved_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			user_id INTEGER NOT NULL,
			pet_id INTEGER NOT NULL,
			peer_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			pet_name TEXT NOT NULL DEFAULT '',
			peer_name TEXT NOT NULL DEFAULT '',
			peer_image TEXT NOT NULL DEFAULT '',
			last_message TEXT NOT NULL DEFAULT '',
			last_message_time TEXT,
			unread_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, pet_id, peer_id),
			FOREIGN KEY (user_id) REFERENCES snapshots(user_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_position
			ON conversations(user_id, position);

		CREATE TABLE IF NOT EXISTS messages (
			user_id INTEGER NOT NULL,
			id INTEGER NOT NULL,
			pet_id INTEGER NOT NULL,
			peer_id INTEGER NOT NULL,
			sender_id INTEGER NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			receiver_id INTEGER NOT NULL,
			receiver_name TEXT NOT NULL DEFAULT '',
			pet_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			timestamp TEXT,
			read INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(user_id, pet_id, peer_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies column additions for cache files written by older
// versions. Idempotent.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "messages",
			column: "sender_profile_image",
			apply:  `ALTER TABLE messages ADD COLUMN sender_profile_image TEXT NOT NULL DEFAULT ''`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking column %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", m.table, m.column, err)
		}
		s.logger.Info("migrated cache schema", "table", m.table, "column", m.column)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveConversations replaces the viewer's conversation snapshot
func (s *SQLiteStore) SaveConversations(ctx context.Context, userID int64, convs []client.Conversation, unreadTotal int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (user_id, unread_total, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET unread_total = excluded.unread_total, saved_at = excluded.saved_at
	`, userID, unreadTotal, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing conversations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (
			user_id, pet_id, peer_id, position, pet_name, peer_name, peer_image,
			last_message, last_message_time, unread_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, pet_id, peer_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range convs {
		_, err := stmt.ExecContext(ctx,
			userID, c.PetID, c.OtherUserID, i, c.PetName, c.OtherUserName, c.OtherUserProfileImage,
			c.LastMessage, nullableTime(c.LastMessageTime.Time), c.UnreadCount,
		)
		if err != nil {
			return fmt.Errorf("saving conversation pet=%d peer=%d: %w", c.PetID, c.OtherUserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// GetConversations loads the viewer's conversation snapshot
func (s *SQLiteStore) GetConversations(ctx context.Context, userID int64) (*Snapshot, error) {
	snap := &Snapshot{UserID: userID}
	var savedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT unread_total, saved_at FROM snapshots WHERE user_id = ?`, userID,
	).Scan(&snap.UnreadTotal, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	snap.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT pet_id, peer_id, pet_name, peer_name, peer_image, last_message, last_message_time, unread_count
		FROM conversations
		WHERE user_id = ?
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c        client.Conversation
			lastTime sql.NullString
		)
		if err := rows.Scan(&c.PetID, &c.OtherUserID, &c.PetName, &c.OtherUserName,
			&c.OtherUserProfileImage, &c.LastMessage, &lastTime, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.LastMessageTime = client.NewTime(parseTime(lastTime))
		snap.Conversations = append(snap.Conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return snap, nil
}

// SaveMessages upserts messages for the viewer
func (s *SQLiteStore) SaveMessages(ctx context.Context, userID int64, msgs []client.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (
			user_id, id, pet_id, peer_id, sender_id, sender_name, sender_profile_image,
			receiver_id, receiver_name, pet_name, content, timestamp, read
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			content = excluded.content,
			timestamp = excluded.timestamp,
			read = MAX(messages.read, excluded.read)
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		_, err := stmt.ExecContext(ctx,
			userID, m.ID, m.PetID, m.Peer(userID), m.SenderID, m.SenderName, m.SenderProfileImage,
			m.ReceiverID, m.ReceiverName, m.PetName, m.Content, nullableTime(m.Timestamp.Time), boolToInt(m.Read),
		)
		if err != nil {
			return fmt.Errorf("saving message %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}
	return nil
}

// GetMessages returns one conversation's cached messages
func (s *SQLiteStore) GetMessages(ctx context.Context, userID, petID, peerID int64) ([]client.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pet_id, sender_id, sender_name, sender_profile_image, receiver_id, receiver_name,
			pet_name, content, timestamp, read
		FROM messages
		WHERE user_id = ? AND pet_id = ? AND peer_id = ?
		ORDER BY timestamp ASC, id ASC
	`, userID, petID, peerID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []client.Message
	for rows.Next() {
		var (
			m    client.Message
			ts   sql.NullString
			read int
		)
		if err := rows.Scan(&m.ID, &m.PetID, &m.SenderID, &m.SenderName, &m.SenderProfileImage,
			&m.ReceiverID, &m.ReceiverName, &m.PetName, &m.Content, &ts, &read); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp = client.NewTime(parseTime(ts))
		m.Read = read != 0
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// Clear removes the viewer's snapshot and messages
func (s *SQLiteStore) Clear(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// conversations cascade from snapshots
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	return tx.Commit()
}

// formatTime stores times as sortable UTC RFC 3339 with fixed-width nanos.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
