package teams

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUserTeamsNormalizesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT team_id FROM user_teams").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"team_id"}).
			AddRow("data-eng").
			AddRow("platform"))

	svc := NewPostgresMembership(db)
	teams, err := svc.UserTeams(context.Background(), "  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("UserTeams: %v", err)
	}
	if len(teams) != 2 || teams[0] != "data-eng" {
		t.Errorf("teams = %v", teams)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIsUserInTeam(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT 1 FROM user_teams").
		WithArgs("bob@example.com", "data-eng").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM user_teams").
		WithArgs("bob@example.com", "platform").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	svc := NewPostgresMembership(db)
	in, err := svc.IsUserInTeam(context.Background(), "bob@example.com", "data-eng")
	if err != nil || !in {
		t.Errorf("IsUserInTeam(data-eng) = %v, %v", in, err)
	}
	in, err = svc.IsUserInTeam(context.Background(), "bob@example.com", "platform")
	if err != nil || in {
		t.Errorf("IsUserInTeam(platform) = %v, %v", in, err)
	}
}

func TestCorpusNamesForTeams(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT corpus_name FROM team_corpora").
		WillReturnRows(sqlmock.NewRows([]string{"corpus_name"}).
			AddRow("corpora/data-eng-docs").
			AddRow("corpora/platform-runbooks"))

	reg := NewCorpusRegistry(db)
	names, err := reg.CorpusNamesForTeams(context.Background(), []string{"data-eng", "platform"})
	if err != nil {
		t.Fatalf("CorpusNamesForTeams: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("names = %v", names)
	}
}

func TestCorpusNamesEmptyTeams(t *testing.T) {
	reg := NewCorpusRegistry(nil)
	names, err := reg.CorpusNamesForTeams(context.Background(), nil)
	if err != nil {
		t.Fatalf("CorpusNamesForTeams: %v", err)
	}
	if names != nil {
		t.Errorf("names = %v, want nil", names)
	}
}

type stubMembership struct {
	teams []string
	err   error
}

func (s *stubMembership) UserTeams(ctx context.Context, userID string) ([]string, error) {
	return s.teams, s.err
}

func (s *stubMembership) IsUserInTeam(ctx context.Context, userID, teamID string) (bool, error) {
	return false, s.err
}

func TestResolveDegradesOnError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := NewResolver(&stubMembership{err: errors.New("db down")}, NewCorpusRegistry(nil), logger)

	got := r.Resolve(context.Background(), "carol@example.com")
	if len(got.Teams) != 0 || len(got.Corpora) != 0 {
		t.Errorf("context = %+v, want empty", got)
	}
	if got.UserID != "carol@example.com" {
		t.Errorf("UserID = %q", got.UserID)
	}
}

func TestResolveLoadsCorpora(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT corpus_name FROM team_corpora").
		WillReturnRows(sqlmock.NewRows([]string{"corpus_name"}).AddRow("corpora/docs"))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := NewResolver(&stubMembership{teams: []string{"docs"}}, NewCorpusRegistry(db), logger)

	got := r.Resolve(context.Background(), "dave@example.com")
	if len(got.Corpora) != 1 || got.Corpora[0] != "corpora/docs" {
		t.Errorf("corpora = %v", got.Corpora)
	}
}

func TestResolveEmptyUser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := NewResolver(&stubMembership{}, NewCorpusRegistry(nil), logger)

	got := r.Resolve(context.Background(), "")
	if len(got.Teams) != 0 || len(got.Corpora) != 0 {
		t.Errorf("context = %+v, want empty", got)
	}
}
