package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // database/sql driver

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
)

const (
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 1
)

const schema = `
CREATE TABLE IF NOT EXISTS contact_submissions (
	id TEXT PRIMARY KEY,
	received_at DATETIME NOT NULL,
	nome TEXT NOT NULL,
	email TEXT NOT NULL,
	telefone TEXT,
	cpf_cnpj TEXT,
	cidade_estado TEXT NOT NULL,
	tipo_contato TEXT NOT NULL,
	outro_contato TEXT,
	assunto TEXT NOT NULL,
	descricao TEXT NOT NULL,
	canal_resposta TEXT NOT NULL,
	lgpd_consentimento INTEGER NOT NULL,
	receber_informativos INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_received_at ON contact_submissions(received_at);`

const columns = `id, received_at, nome, email, telefone, cpf_cnpj, cidade_estado, tipo_contato,
	outro_contato, assunto, descricao, canal_resposta, lgpd_consentimento, receber_informativos`

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db           *sql.DB
	path         string
	busyTimeout  time.Duration
	maxOpenConns int
}

// NewSQLiteStore opens (creating when needed) the database at path.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:         path,
		busyTimeout:  defaultBusyTimeout,
		maxOpenConns: defaultMaxOpenConns,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	s.db = db
	return s, nil
}

// Name identifies the store as a delivery sink.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Deliver saves the message; it lets the store act as a worker sink.
func (s *SQLiteStore) Deliver(ctx context.Context, m contact.Message) error { //nolint:gocritic // hugeParam
	return s.Save(ctx, m)
}

// Save stores a message.
func (s *SQLiteStore) Save(ctx context.Context, m contact.Message) error { //nolint:gocritic // hugeParam
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_submissions(`+columns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.ReceivedAt.UTC(), m.Name, m.Email, m.Phone, m.Document, m.CityState, m.Kind,
		m.OtherKind, m.Subject, m.Description, m.Channel, m.Consent, m.Newsletter,
	)
	if err != nil {
		return fmt.Errorf("insert contact %s: %w", m.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (contact.Message, error) {
	var m contact.Message
	var phone, doc, other sql.NullString
	err := row.Scan(&m.ID, &m.ReceivedAt, &m.Name, &m.Email, &phone, &doc, &m.CityState, &m.Kind,
		&other, &m.Subject, &m.Description, &m.Channel, &m.Consent, &m.Newsletter)
	if err != nil {
		return contact.Message{}, err
	}
	m.Phone, m.Document, m.OtherKind = phone.String, doc.String, other.String
	return m, nil
}

// Get returns one message by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (contact.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM contact_submissions WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contact.Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return contact.Message{}, fmt.Errorf("query contact %s: %w", id, err)
	}
	return m, nil
}

// Count returns the number of stored messages.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
