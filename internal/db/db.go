package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	conn, err := sql.Open("postgres", parsedURL.String())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(20)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

const createTablesSQL = `
    CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        email TEXT NOT NULL,
        first_name TEXT,
        last_name TEXT,
        profile_image TEXT,
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
        payout_methods JSONB NOT NULL DEFAULT '[]',
        default_payout_method TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE TABLE IF NOT EXISTS payout_requests (
        id UUID PRIMARY KEY,
        affiliate_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        amount NUMERIC(12,2) NOT NULL,
        method TEXT NOT NULL,
        details JSONB NOT NULL DEFAULT '{}',
        status TEXT NOT NULL DEFAULT 'requested' CHECK (status IN ('requested', 'approved', 'rejected')),
        note TEXT,
        processed_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE TABLE IF NOT EXISTS leads (
        id UUID PRIMARY KEY,
        affiliate_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        full_name TEXT NOT NULL,
        email TEXT NOT NULL,
        phone TEXT,
        website TEXT,
        program TEXT NOT NULL,
        lead_note TEXT,
        status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
        price NUMERIC(12,2),
        paid BOOLEAN NOT NULL DEFAULT FALSE,
        call_requested BOOLEAN NOT NULL DEFAULT FALSE,
        call_meeting_link TEXT,
        admin_note TEXT,
        payout_request_id UUID REFERENCES payout_requests(id) ON DELETE SET NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT leads_paid_only_when_approved CHECK (NOT paid OR status = 'approved')
    );
`

// Idempotent column additions for databases created by older versions.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "users.is_suspended",
		sql:  `ALTER TABLE users ADD COLUMN IF NOT EXISTS is_suspended BOOLEAN NOT NULL DEFAULT FALSE;`,
	},
	{
		name: "users.payout_methods",
		sql:  `ALTER TABLE users ADD COLUMN IF NOT EXISTS payout_methods JSONB NOT NULL DEFAULT '[]';`,
	},
	{
		name: "users.default_payout_method",
		sql:  `ALTER TABLE users ADD COLUMN IF NOT EXISTS default_payout_method TEXT;`,
	},
	{
		name: "leads.call_fields",
		sql: `ALTER TABLE leads
              ADD COLUMN IF NOT EXISTS call_requested BOOLEAN NOT NULL DEFAULT FALSE,
              ADD COLUMN IF NOT EXISTS call_meeting_link TEXT;`,
	},
	{
		name: "leads.payout_request_id",
		sql:  `ALTER TABLE leads ADD COLUMN IF NOT EXISTS payout_request_id UUID;`,
	},
	{
		name: "payout_requests.processed_at",
		sql:  `ALTER TABLE payout_requests ADD COLUMN IF NOT EXISTS processed_at TIMESTAMPTZ;`,
	},
}

const createIndexesSQL = `
    CREATE INDEX IF NOT EXISTS idx_leads_affiliate_status ON leads(affiliate_id, status, paid);
    CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
    CREATE INDEX IF NOT EXISTS idx_payout_requests_affiliate ON payout_requests(affiliate_id);
    CREATE INDEX IF NOT EXISTS idx_payout_requests_status ON payout_requests(status);
`

// Migrate creates tables, applies column migrations and creates indexes.
func Migrate(ctx context.Context, conn *sql.DB, log logrus.FieldLogger) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	for _, m := range migrations {
		if _, err = tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
		log.WithField("migration", m.name).Debug("migration applied")
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, errIdx := conn.ExecContext(ctx, stmt); errIdx != nil {
			log.WithError(errIdx).WithField("statement", stmt).Warn("index creation failed")
		}
	}
	log.Info("database schema is up to date")
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// PostgresStore implements Store on top of database/sql.
type PostgresStore struct {
	db   *sql.DB
	q    querier
	log  logrus.FieldLogger
	inTx bool
}

func NewPostgresStore(conn *sql.DB, log logrus.FieldLogger) *PostgresStore {
	return &PostgresStore{db: conn, q: conn, log: log.WithField("store", "postgres")}
}

// WithinTx runs fn against a store bound to one transaction. The transaction
// is committed when fn returns nil and rolled back otherwise.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: s.db, q: tx, log: s.log, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

func (s *PostgresStore) Probe(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, `SELECT 1 FROM users LIMIT 1`)
	return mapError("probe", err)
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
