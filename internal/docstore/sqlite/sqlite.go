// Package sqlite implements docstore.Store on top of SQLite.
// Documents are stored as JSON text and identified by xid strings.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/xid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/starquake/quizstore/internal/docstore"
	"github.com/starquake/quizstore/internal/migrations"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// SQL statements used by the store. Exported for tests.
const (
	InsertCollectionSQL = `INSERT INTO collections (name, created_at) VALUES (?, ?)`
	InsertDocumentSQL   = `INSERT INTO documents (id, collection, body, created_at) VALUES (?, ?, ?, ?)`
	FindDocumentsSQL    = `SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid`
	FindDocumentSQL     = `SELECT body FROM documents WHERE collection = ? AND id = ?`
)

// Config holds the connection settings for the store.
type Config struct {
	URI             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a docstore.Store backed by SQLite.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

var _ docstore.Store = (*Store)(nil)

// New creates a Store. Nothing is opened until Connect is called.
func New(cfg Config, logger *slog.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// FromDB wraps an already opened and migrated connection. The returned store counts as connected.
func FromDB(conn *sql.DB, logger *slog.Logger) *Store {
	return &Store{logger: logger, db: conn}
}

// Connect opens the database, verifies it with a ping and applies the migrations.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	conn, err := sql.Open(DriverName, s.cfg.URI)
	if err != nil {
		return fmt.Errorf("%w: error opening database: %w", docstore.ErrConnection, err)
	}

	if err = conn.PingContext(ctx); err != nil {
		closeConn(conn, s.logger)

		return fmt.Errorf("%w: error pinging database: %w", docstore.ErrConnection, err)
	}

	if s.cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(s.cfg.MaxOpenConns)
	}
	if s.cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(s.cfg.MaxIdleConns)
	}
	if s.cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	if err = Migrate(ctx, conn); err != nil {
		closeConn(conn, s.logger)

		return fmt.Errorf("%w: %w", docstore.ErrConnection, err)
	}

	s.db = conn

	return nil
}

// Migrate applies the embedded migrations to conn.
func Migrate(ctx context.Context, conn *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrations.FS)
	if err != nil {
		return fmt.Errorf("error creating migration provider: %w", err)
	}
	if _, err = provider.Up(ctx); err != nil {
		return fmt.Errorf("error running migrations: %w", err)
	}

	return nil
}

// EnsureCollection registers the collection. An existing collection is logged and otherwise ignored.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	err := s.createCollection(ctx, name)
	if errors.Is(err, docstore.ErrCollectionExists) {
		s.logger.InfoContext(ctx, "collection already exists", slog.String("collection", name))

		return nil
	}
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "created collection", slog.String("collection", name))

	return nil
}

func (s *Store) createCollection(ctx context.Context, name string) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx, InsertCollectionSQL, name, time.Now().UnixMilli())
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("%w: %s", docstore.ErrCollectionExists, name)
		}

		return fmt.Errorf("error creating collection %q: %w", name, err)
	}

	return nil
}

// Collection returns a handle to the named collection.
//
//nolint:ireturn // The interface is the contract shared by every backend.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{store: s, name: name}
}

// Connected reports whether the store holds an open connection.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db != nil
}

// Ping verifies the connection to the database.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	if err = conn.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the connection. Calling Close on a closed store is a no-op.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("error closing database: %w", err)
	}

	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, docstore.ErrNotConnected
	}

	return s.db, nil
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) InsertOne(ctx context.Context, doc []byte) (string, error) {
	body, err := compactObject(doc)
	if err != nil {
		return "", err
	}

	conn, err := c.store.conn()
	if err != nil {
		return "", err
	}

	id := xid.New().String()
	_, err = conn.ExecContext(ctx, InsertDocumentSQL, id, c.name, string(body), time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("error inserting document into %q: %w", c.name, err)
	}

	return id, nil
}

func (c *collection) Find(ctx context.Context) ([][]byte, error) {
	conn, err := c.store.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, FindDocumentsSQL, c.name)
	if err != nil {
		return nil, fmt.Errorf("error querying documents in %q: %w", c.name, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			c.store.logger.ErrorContext(ctx, "error closing rows", slog.Any("err", closeErr))
		}
	}()

	docs := make([][]byte, 0)
	for rows.Next() {
		var id, body string
		if err = rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}
		doc, withErr := withID(id, []byte(body))
		if withErr != nil {
			return nil, fmt.Errorf("error reading document %q: %w", id, withErr)
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents in %q: %w", c.name, err)
	}

	return docs, nil
}

func (c *collection) FindByID(ctx context.Context, id string) ([]byte, error) {
	if _, err := xid.FromString(id); err != nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidID, id)
	}

	conn, err := c.store.conn()
	if err != nil {
		return nil, err
	}

	var body string
	err = conn.QueryRowContext(ctx, FindDocumentSQL, c.name, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", docstore.ErrNotFound, id)
		}

		return nil, fmt.Errorf("error finding document %q: %w", id, err)
	}

	return withID(id, []byte(body))
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func compactObject(doc []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, docstore.ErrInvalidDocument
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %w", docstore.ErrInvalidDocument, err)
	}

	return buf.Bytes(), nil
}

// withID returns body with the id member prepended.
func withID(id string, body []byte) ([]byte, error) {
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, docstore.ErrInvalidDocument
	}

	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("error encoding id: %w", err)
	}

	rest := bytes.TrimSpace(body[1:])
	out := make([]byte, 0, len(body)+len(idJSON)+len(docstore.IDField)+4)
	out = append(out, `{"`+docstore.IDField+`":`...)
	out = append(out, idJSON...)
	if len(rest) > 0 && rest[0] != '}' {
		out = append(out, ',')
	}
	out = append(out, rest...)

	return out, nil
}

func closeConn(conn *sql.DB, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Error("error closing database connection", slog.Any("err", err))
	}
}
