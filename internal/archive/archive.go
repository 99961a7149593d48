// Package archive keeps a local SQLite copy of message history. Unlike the
// snapshot cache, the archive survives schema-version resets, so history is
// preserved across incompatible directory changes. Writes are best effort.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is the archive database handle.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (and migrates) the archive database at path.
func Open(path string, busyTimeoutMs int) (*Store, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path, busyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate archive database: %w", err)
	}

	return &Store{
		db:     db,
		logger: logging.Component("archive"),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one message under its conversation. Inserting the same
// message ID again is a no-op.
func (s *Store) Append(ctx context.Context, conversationID string, message *models.Message) error {
	if message == nil {
		return nil
	}

	var attachments, reactions []byte
	var err error
	if len(message.Attachments) > 0 {
		if attachments, err = json.Marshal(message.Attachments); err != nil {
			return fmt.Errorf("failed to marshal attachments: %w", err)
		}
	}
	if len(message.Reactions) > 0 {
		if reactions, err = json.Marshal(message.Reactions); err != nil {
			return fmt.Errorf("failed to marshal reactions: %w", err)
		}
	}

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO messages (
				id, conversation_id, sender_id, sender_name, sender_avatar,
				body, sent_at, attachments_json, reactions_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			message.ID,
			conversationID,
			message.SenderID,
			message.SenderName,
			message.SenderAvatar,
			message.Text,
			message.Timestamp.UTC().Format(time.RFC3339Nano),
			nullIfEmpty(attachments),
			nullIfEmpty(reactions),
		)
		return err
	})
}

// Conversations lists the distinct conversation IDs holding archived
// messages.
func (s *Store) Conversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT conversation_id FROM messages ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive query error: %w", err)
	}
	return ids, nil
}

// List returns the conversation's archived messages oldest first, up to
// limit (0 = no limit).
func (s *Store) List(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, sender_name, sender_avatar, body, sent_at,
		       attachments_json, reactions_json
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at ASC`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var (
			message     models.Message
			sentRaw     string
			attachments sql.NullString
			reactions   sql.NullString
		)
		if err := rows.Scan(
			&message.ID,
			&message.SenderID,
			&message.SenderName,
			&message.SenderAvatar,
			&message.Text,
			&sentRaw,
			&attachments,
			&reactions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, sentRaw); err == nil {
			message.Timestamp = parsed
		}
		if attachments.Valid {
			_ = json.Unmarshal([]byte(attachments.String), &message.Attachments)
		}
		if reactions.Valid {
			_ = json.Unmarshal([]byte(reactions.String), &message.Reactions)
		}
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive query error: %w", err)
	}

	return messages, nil
}

func nullIfEmpty(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}
	return string(payload)
}
