package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/knowsee/knowsee/pkg/models"
)

// PostgresStore implements the Store interface using PostgreSQL.
// Session state and event parts are stored as JSONB.
type PostgresStore struct {
	db *sql.DB

	// Prepared statements for performance
	stmtCreateSession *sql.Stmt
	stmtGetSession    *sql.Stmt
	stmtUpdateSession *sql.Stmt
	stmtDeleteSession *sql.Stmt
	stmtListSessions  *sql.Stmt
	stmtAppendEvent   *sql.Stmt
	stmtGetEvents     *sql.Stmt
}

// PostgresConfig holds configuration for the PostgreSQL connection.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns default configuration.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "knowsee",
		Password:        "",
		Database:        "knowsee",
		SSLMode:         "disable",
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStore creates a store from config.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)
	return newPostgresStoreWithDSN(dsn, config)
}

// NewPostgresStoreFromDSN creates a store from a raw DSN/URL.
func NewPostgresStoreFromDSN(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}
	return newPostgresStoreWithDSN(dsn, config)
}

func newPostgresStoreWithDSN(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

// DB exposes the underlying connection for related stores (teams,
// analyst) that share the same database.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) prepareStatements() error {
	var err error

	s.stmtCreateSession, err = s.db.Prepare(`
		INSERT INTO sessions (id, app_name, user_id, title, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare create session: %w", err)
	}

	s.stmtGetSession, err = s.db.Prepare(`
		SELECT id, app_name, user_id, title, state, created_at, updated_at
		FROM sessions WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get session: %w", err)
	}

	s.stmtUpdateSession, err = s.db.Prepare(`
		UPDATE sessions SET title = $1, state = $2, updated_at = $3
		WHERE id = $4
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update session: %w", err)
	}

	s.stmtDeleteSession, err = s.db.Prepare(`
		DELETE FROM sessions WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete session: %w", err)
	}

	s.stmtListSessions, err = s.db.Prepare(`
		SELECT id, app_name, user_id, title, state, created_at, updated_at
		FROM sessions WHERE app_name = $1 AND user_id = $2
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list sessions: %w", err)
	}

	s.stmtAppendEvent, err = s.db.Prepare(`
		INSERT INTO events (id, session_id, invocation_id, author, parts, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append event: %w", err)
	}

	s.stmtGetEvents, err = s.db.Prepare(`
		SELECT id, session_id, invocation_id, author, parts, timestamp
		FROM events WHERE session_id = $1
		ORDER BY timestamp ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get events: %w", err)
	}

	return nil
}

// Close closes prepared statements and the database connection.
func (s *PostgresStore) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{
		s.stmtCreateSession,
		s.stmtGetSession,
		s.stmtUpdateSession,
		s.stmtDeleteSession,
		s.stmtListSessions,
		s.stmtAppendEvent,
		s.stmtGetEvents,
	} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing store: %v", errs)
	}
	return nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	state, err := json.Marshal(session.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.stmtCreateSession.ExecContext(ctx,
		session.ID,
		session.AppName,
		session.UserID,
		session.Title,
		state,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := scanSession(s.stmtGetSession.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, session *models.Session) error {
	state, err := json.Marshal(session.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	session.UpdatedAt = time.Now()
	result, err := s.stmtUpdateSession.ExecContext(ctx,
		session.Title,
		state,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store. Events are removed by the ON DELETE CASCADE
// on the events table.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.stmtDeleteSession.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, appName, userID string, opts ListOptions) ([]*models.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.stmtListSessions.QueryContext(ctx, appName, userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

// AppendEvent implements Store.
func (s *PostgresStore) AppendEvent(ctx context.Context, event *models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	parts, err := json.Marshal(event.Parts)
	if err != nil {
		return fmt.Errorf("failed to marshal parts: %w", err)
	}

	_, err = s.stmtAppendEvent.ExecContext(ctx,
		event.ID,
		event.SessionID,
		event.InvocationID,
		event.Author,
		parts,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = $1 WHERE id = $2", event.Timestamp, event.SessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Events implements Store.
func (s *PostgresStore) Events(ctx context.Context, sessionID string) ([]*models.Event, error) {
	rows, err := s.stmtGetEvents.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		event := &models.Event{}
		var partsJSON []byte
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.InvocationID,
			&event.Author,
			&partsJSON,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(partsJSON) > 0 {
			if err := json.Unmarshal(partsJSON, &event.Parts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal parts: %w", err)
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	var stateJSON []byte

	err := row.Scan(
		&session.ID,
		&session.AppName,
		&session.UserID,
		&session.Title,
		&stateJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &session.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
	}
	return session, nil
}
