package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"szenai/internal/migrations"
	"szenai/internal/models"
	"szenai/internal/retry"
	"szenai/internal/security"
)

// Database stores the sent-message log in SQLite.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
	backoff   *retry.Backoff
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. A non-empty encryptionSecret enables at-rest encryption of chat ids
// and message text.
func New(dbPath, encryptionSecret string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	enc, err := newEncryptor(encryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (close error: %v)", err, closeErr)
		}
		return nil, err
	}

	return &Database{db: db, encryptor: enc, backoff: defaultBackoff()}, nil
}

func initSchema(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	scripts, err := migrations.All()
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	for _, script := range scripts {
		if _, err := db.Exec(script); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports whether the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// SaveSentMessage appends msg to the log and sets its ID.
func (d *Database) SaveSentMessage(ctx context.Context, msg *models.SentMessage) error {
	chatID, err := d.encryptor.Encrypt(msg.ChatID)
	if err != nil {
		return fmt.Errorf("failed to encrypt chat ID: %w", err)
	}
	text, err := d.encryptor.Encrypt(msg.Text)
	if err != nil {
		return fmt.Errorf("failed to encrypt text: %w", err)
	}

	return retryableDBOperationNoReturn(ctx, d.backoff, func() error {
		res, err := d.db.ExecContext(ctx, InsertSentMessageQuery,
			chatID,
			d.encryptor.LookupHash(msg.ChatID),
			msg.MessageID,
			text,
			msg.SentAt.Unix(),
		)
		if err != nil {
			return err
		}
		msg.ID, err = res.LastInsertId()
		return err
	}, "save sent message")
}

// ListSentMessages returns the newest limit entries for chatID.
func (d *Database) ListSentMessages(ctx context.Context, chatID string, limit int) ([]models.SentMessage, error) {
	rows, err := d.db.QueryContext(ctx, SelectSentMessagesByChatQuery, d.encryptor.LookupHash(chatID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent messages: %w", err)
	}
	defer rows.Close()

	messages := []models.SentMessage{}
	for rows.Next() {
		var m models.SentMessage
		var sentAt, createdAt int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.MessageID, &m.Text, &sentAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent message: %w", err)
		}
		if m.ChatID, err = d.encryptor.Decrypt(m.ChatID); err != nil {
			return nil, fmt.Errorf("failed to decrypt chat ID: %w", err)
		}
		if m.Text, err = d.encryptor.Decrypt(m.Text); err != nil {
			return nil, fmt.Errorf("failed to decrypt text: %w", err)
		}
		m.SentAt = time.Unix(sentAt, 0).UTC()
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sent messages: %w", err)
	}
	return messages, nil
}

// DeleteOlderThan removes entries recorded before cutoff.
func (d *Database) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := retryableDBOperationNoReturn(ctx, d.backoff, func() error {
		res, err := d.db.ExecContext(ctx, DeleteSentMessagesBeforeQuery, cutoff.Unix())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	}, "delete old sent messages")
	return deleted, err
}
