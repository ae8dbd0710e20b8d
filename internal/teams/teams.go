// Package teams resolves user team membership and the document corpora
// those teams can search. Mappings are read-only here; membership and
// corpus assignment are managed out of band.
package teams

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
)

// MembershipService answers read-only team membership questions.
// Implementations may back onto the local database or an external
// identity provider.
type MembershipService interface {
	// UserTeams returns the team IDs the user belongs to.
	UserTeams(ctx context.Context, userID string) ([]string, error)

	// IsUserInTeam reports whether the user is a member of the team.
	IsUserInTeam(ctx context.Context, userID, teamID string) (bool, error)
}

// PostgresMembership reads membership from the user_teams table. User
// IDs are matched case-insensitively since they are typically emails.
type PostgresMembership struct {
	db *sql.DB
}

// NewPostgresMembership creates a membership service backed by db.
func NewPostgresMembership(db *sql.DB) *PostgresMembership {
	return &PostgresMembership{db: db}
}

// UserTeams implements MembershipService.
func (s *PostgresMembership) UserTeams(ctx context.Context, userID string) ([]string, error) {
	normalized := strings.ToLower(strings.TrimSpace(userID))

	rows, err := s.db.QueryContext(ctx,
		"SELECT team_id FROM user_teams WHERE LOWER(user_id) = $1", normalized)
	if err != nil {
		return nil, fmt.Errorf("query user teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var teamID string
		if err := rows.Scan(&teamID); err != nil {
			return nil, fmt.Errorf("scan team id: %w", err)
		}
		teams = append(teams, teamID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user teams: %w", err)
	}
	return teams, nil
}

// IsUserInTeam implements MembershipService.
func (s *PostgresMembership) IsUserInTeam(ctx context.Context, userID, teamID string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(userID))

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_teams WHERE LOWER(user_id) = $1 AND team_id = $2",
		normalized, teamID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query team membership: %w", err)
	}
	return true, nil
}

// CorpusRegistry maps teams to their document corpus resource names.
type CorpusRegistry struct {
	db *sql.DB
}

// NewCorpusRegistry creates a registry backed by db.
func NewCorpusRegistry(db *sql.DB) *CorpusRegistry {
	return &CorpusRegistry{db: db}
}

// CorpusNamesForTeams returns the corpus resource names accessible to
// the given teams. An empty team list short-circuits to no corpora.
func (r *CorpusRegistry) CorpusNamesForTeams(ctx context.Context, teamIDs []string) ([]string, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT corpus_name FROM team_corpora WHERE team_id = ANY($1)", pq.Array(teamIDs))
	if err != nil {
		return nil, fmt.Errorf("query team corpora: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan corpus name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team corpora: %w", err)
	}
	return names, nil
}

// UserContext is the access-control snapshot loaded before a run:
// which teams the user is in and which corpora those teams unlock.
type UserContext struct {
	UserID  string
	Teams   []string
	Corpora []string
}

// Resolver loads UserContext from the membership service and registry.
type Resolver struct {
	membership MembershipService
	registry   *CorpusRegistry
	logger     *slog.Logger
}

// NewResolver creates a resolver. If logger is nil, slog.Default() is used.
func NewResolver(membership MembershipService, registry *CorpusRegistry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		membership: membership,
		registry:   registry,
		logger:     logger.With("component", "teams"),
	}
}

// Resolve loads the user's teams and corpora. Lookup failures degrade
// to an empty context rather than failing the run: a user with no
// resolvable teams simply searches no team corpora.
func (r *Resolver) Resolve(ctx context.Context, userID string) UserContext {
	out := UserContext{UserID: userID, Teams: []string{}, Corpora: []string{}}
	if userID == "" {
		return out
	}

	teams, err := r.membership.UserTeams(ctx, userID)
	if err != nil {
		r.logger.Warn("failed to load user teams", "user_id", userID, "error", err)
		return out
	}
	out.Teams = teams
	if len(teams) == 0 {
		r.logger.Debug("user has no team memberships", "user_id", userID)
		return out
	}

	corpora, err := r.registry.CorpusNamesForTeams(ctx, teams)
	if err != nil {
		r.logger.Warn("failed to load team corpora", "user_id", userID, "error", err)
		return out
	}
	out.Corpora = corpora

	r.logger.Debug("resolved user context",
		"user_id", userID, "teams", len(teams), "corpora", len(corpora))
	return out
}
