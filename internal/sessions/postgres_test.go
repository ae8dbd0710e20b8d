package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/knowsee/knowsee/pkg/models"
)

func setupPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectPrepare("INSERT INTO sessions")
	mock.ExpectPrepare("SELECT id, app_name, user_id, title, state, created_at, updated_at\\s+FROM sessions WHERE id")
	mock.ExpectPrepare("UPDATE sessions SET title")
	mock.ExpectPrepare("DELETE FROM sessions")
	mock.ExpectPrepare("FROM sessions WHERE app_name")
	mock.ExpectPrepare("INSERT INTO events")
	mock.ExpectPrepare("FROM events WHERE session_id")

	store := &PostgresStore{db: db}
	if err := store.prepareStatements(); err != nil {
		t.Fatalf("prepareStatements: %v", err)
	}
	return store, mock
}

func TestPostgresCreateSession(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s-1", "knowsee", "alice@example.com", "", []byte(`{"k":"v"}`),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Create(context.Background(), &models.Session{
		ID:      "s-1",
		AppName: "knowsee",
		UserID:  "alice@example.com",
		State:   map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateRequiresID(t *testing.T) {
	store, _ := setupPostgresStore(t)

	if err := store.Create(context.Background(), &models.Session{}); err == nil {
		t.Error("expected error for missing session ID")
	}
}

func TestPostgresGetSession(t *testing.T) {
	store, mock := setupPostgresStore(t)

	now := time.Now()
	mock.ExpectQuery("FROM sessions WHERE id").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "app_name", "user_id", "title", "state", "created_at", "updated_at"}).
			AddRow("s-1", "knowsee", "alice@example.com", "Trip Stats", []byte(`{"title":"Trip Stats"}`), now, now))

	got, err := store.Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Trip Stats" || got.State["title"] != "Trip Stats" {
		t.Errorf("session = %+v", got)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery("FROM sessions WHERE id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestPostgresUpdateNotFound(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectExec("UPDATE sessions SET title").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), &models.Session{ID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update = %v, want ErrNotFound", err)
	}
}

func TestPostgresDeleteSession(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectExec("DELETE FROM sessions").
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestPostgresAppendEventTouchesSession(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectExec("INSERT INTO events").
		WithArgs("e-1", "s-1", "inv-1", "knowsee_agent", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sessions SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.AppendEvent(context.Background(), &models.Event{
		ID:           "e-1",
		SessionID:    "s-1",
		InvocationID: "inv-1",
		Author:       "knowsee_agent",
		Parts:        []models.ResponsePart{{Text: "answer"}},
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresEvents(t *testing.T) {
	store, mock := setupPostgresStore(t)

	now := time.Now()
	mock.ExpectQuery("FROM events WHERE session_id").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "session_id", "invocation_id", "author", "parts", "timestamp"}).
			AddRow("e-1", "s-1", "inv-1", "user", []byte(`[{"text":"hello"}]`), now).
			AddRow("e-2", "s-1", "inv-1", "knowsee_agent", []byte(`[{"text":"hi"}]`), now.Add(time.Second)))

	got, err := store.Events(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Parts[0].Text != "hello" || got[1].Author != "knowsee_agent" {
		t.Errorf("events = %+v, %+v", got[0], got[1])
	}
}
