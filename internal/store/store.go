package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists message and consent records in Postgres. It shares the
// database configured for the WhatsApp session datastore.
type Store struct {
	db *sql.DB
}

func Open(driver string, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err = ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS wa_messages (
			message_id TEXT PRIMARY KEY,
			phone TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			image_base64 TEXT NOT NULL DEFAULT '',
			ack INTEGER NOT NULL DEFAULT 0,
			ack_text TEXT NOT NULL DEFAULT '',
			ack_date TIMESTAMPTZ,
			date TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wa_messages_phone_date ON wa_messages (phone, date DESC)`,
		`CREATE TABLE IF NOT EXISTS wa_consents (
			chat_id TEXT PRIMARY KEY,
			pending_consent BOOLEAN NOT NULL DEFAULT FALSE,
			last_consent_message TEXT NOT NULL DEFAULT '',
			consent TEXT NOT NULL DEFAULT 'unset',
			date TIMESTAMPTZ
		)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

// SaveSentMessage inserts a message record keyed on its external message id.
// The id may already be present when the dispatcher insert and the
// outbound-observed hook race for the same message; the insert is then a
// no-op and the method reports inserted=false.
func (s *Store) SaveSentMessage(ctx context.Context, rec *MessageRecord) (bool, error) {
	if rec == nil || rec.MessageID == "" {
		return false, errors.New("message record requires a message id")
	}
	date := rec.Date
	if date.IsZero() {
		date = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO wa_messages (message_id, phone, chat_id, content, image_url, image_base64, ack, ack_text, ack_date, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id) DO NOTHING
	`, rec.MessageID, rec.Phone, rec.ChatID, rec.Content, rec.ImageURL, rec.ImageBase64, rec.Ack, rec.AckText, rec.AckDate, date)
	if err != nil {
		return false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

// UpdateMessageAck overwrites the acknowledgement fields for the matching
// record. A missing record is not an error; the update affects nothing.
func (s *Store) UpdateMessageAck(ctx context.Context, messageID string, ack int, ackText string, ackDate time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wa_messages
		SET ack = $2, ack_text = $3, ack_date = $4
		WHERE message_id = $1
	`, messageID, ack, ackText, ackDate)
	return err
}

// MessagesByPhone returns the phone's records newest first, capped at limit.
func (s *Store) MessagesByPhone(ctx context.Context, phone string, limit int) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, phone, chat_id, content, image_url, image_base64, ack, ack_text, ack_date, date
		FROM wa_messages
		WHERE phone = $1
		ORDER BY date DESC
		LIMIT $2
	`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]MessageRecord, 0)
	for rows.Next() {
		var rec MessageRecord
		err := rows.Scan(&rec.MessageID, &rec.Phone, &rec.ChatID, &rec.Content, &rec.ImageURL, &rec.ImageBase64, &rec.Ack, &rec.AckText, &rec.AckDate, &rec.Date)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkConsentPending upserts the chat's consent record with the prompt text
// before the prompt is sent, so a record of intent survives delivery failure.
func (s *Store) MarkConsentPending(ctx context.Context, chatID string, prompt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wa_consents (chat_id, pending_consent, last_consent_message)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (chat_id) DO UPDATE
		SET pending_consent = TRUE, last_consent_message = EXCLUDED.last_consent_message
	`, chatID, prompt)
	return err
}

// ConsentByChatID returns the chat's consent record, or nil when none exists.
func (s *Store) ConsentByChatID(ctx context.Context, chatID string) (*ConsentRecord, error) {
	var rec ConsentRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT chat_id, pending_consent, last_consent_message, consent, date
		FROM wa_consents
		WHERE chat_id = $1
	`, chatID).Scan(&rec.ChatID, &rec.PendingConsent, &rec.LastConsentMessage, &rec.Consent, &rec.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ResolveConsent records the chat's decision and clears the pending flag.
func (s *Store) ResolveConsent(ctx context.Context, chatID string, decision Consent, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wa_consents (chat_id, pending_consent, consent, date)
		VALUES ($1, FALSE, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE
		SET pending_consent = FALSE, consent = EXCLUDED.consent, date = EXCLUDED.date
	`, chatID, decision, at)
	return err
}
