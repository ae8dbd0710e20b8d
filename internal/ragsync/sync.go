// Package ragsync keeps retrieval corpora in step with their source
// folders. Syncs run on a schedule, on source-folder changes, and on
// demand via the internal API.
package ragsync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Status of a corpus sync operation, persisted on team_corpora.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Corpus is one registered corpus and its source folder.
type Corpus struct {
	ID         string
	TeamID     string
	CorpusName string
	SourceType string
	FolderURL  string
}

// SyncResult reports one corpus sync.
type SyncResult struct {
	TeamID          string  `json:"team_id"`
	CorpusName      string  `json:"corpus_name"`
	Status          Status  `json:"status"`
	FileCount       int     `json:"file_count"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SyncAllResult summarizes a full sync pass.
type SyncAllResult struct {
	Total           int          `json:"total"`
	Succeeded       int          `json:"succeeded"`
	Failed          int          `json:"failed"`
	Results         []SyncResult `json:"results"`
	DurationSeconds float64      `json:"duration_seconds"`
}

// Importer loads files from a source folder into a corpus. Imports are
// idempotent on the retrieval side; unchanged files are skipped there.
type Importer interface {
	ImportFiles(ctx context.Context, corpusName, folderURL string) (int, error)
}

// Service syncs registered corpora with their source folders.
type Service struct {
	db       *sql.DB
	importer Importer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a sync service over the corpus registry database.
func NewService(db *sql.DB, importer Importer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		importer: importer,
		logger:   logger.With("component", "ragsync"),
		now:      time.Now,
	}
}

// SyncCorpus syncs a single corpus and records the outcome on its
// registry row.
func (s *Service) SyncCorpus(ctx context.Context, corpus Corpus) SyncResult {
	s.logger.Info("syncing corpus", "team_id", corpus.TeamID, "corpus", corpus.CorpusName)
	start := s.now()

	s.updateStatus(ctx, corpus.TeamID, StatusInProgress, nil)

	fileCount, err := s.importer.ImportFiles(ctx, corpus.CorpusName, corpus.FolderURL)
	duration := s.now().Sub(start).Seconds()
	if err != nil {
		s.logger.Error("corpus sync failed", "team_id", corpus.TeamID, "error", err)
		s.updateStatus(ctx, corpus.TeamID, StatusFailed, nil)
		return SyncResult{
			TeamID:          corpus.TeamID,
			CorpusName:      corpus.CorpusName,
			Status:          StatusFailed,
			Error:           err.Error(),
			DurationSeconds: duration,
		}
	}

	s.updateStatus(ctx, corpus.TeamID, StatusCompleted, &fileCount)
	s.logger.Info("corpus sync completed",
		"team_id", corpus.TeamID,
		"files", fileCount,
		"duration_seconds", duration)

	return SyncResult{
		TeamID:          corpus.TeamID,
		CorpusName:      corpus.CorpusName,
		Status:          StatusCompleted,
		FileCount:       fileCount,
		DurationSeconds: duration,
	}
}

// SyncAll syncs every registered corpus sequentially to stay under
// retrieval-side rate limits.
func (s *Service) SyncAll(ctx context.Context) (SyncAllResult, error) {
	start := s.now()

	corpora, err := s.listCorpora(ctx)
	if err != nil {
		return SyncAllResult{}, fmt.Errorf("list corpora: %w", err)
	}
	if len(corpora) == 0 {
		s.logger.Info("no corpora configured, nothing to sync")
		return SyncAllResult{Results: []SyncResult{}}, nil
	}

	s.logger.Info("starting sync", "corpora", len(corpora))

	results := make([]SyncResult, 0, len(corpora))
	succeeded, failed := 0, 0
	for _, corpus := range corpora {
		result := s.SyncCorpus(ctx, corpus)
		results = append(results, result)
		switch result.Status {
		case StatusCompleted:
			succeeded++
		case StatusFailed:
			failed++
		}
	}

	duration := s.now().Sub(start).Seconds()
	s.logger.Info("sync complete",
		"succeeded", succeeded,
		"failed", failed,
		"total", len(corpora),
		"duration_seconds", duration)

	return SyncAllResult{
		Total:           len(corpora),
		Succeeded:       succeeded,
		Failed:          failed,
		Results:         results,
		DurationSeconds: duration,
	}, nil
}

// CorpusForTeam looks up the registered corpus for a team. Used to
// resolve watch-folder config entries, which name teams rather than
// corpus rows.
func (s *Service) CorpusForTeam(ctx context.Context, teamID string) (Corpus, error) {
	var c Corpus
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, corpus_name, source_type, folder_url
		 FROM team_corpora WHERE team_id = $1`,
		teamID).Scan(&c.ID, &c.TeamID, &c.CorpusName, &c.SourceType, &c.FolderURL)
	if err != nil {
		return Corpus{}, fmt.Errorf("corpus for team %s: %w", teamID, err)
	}
	return c, nil
}

func (s *Service) listCorpora(ctx context.Context) ([]Corpus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, corpus_name, source_type, folder_url FROM team_corpora`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var corpora []Corpus
	for rows.Next() {
		var c Corpus
		if err := rows.Scan(&c.ID, &c.TeamID, &c.CorpusName, &c.SourceType, &c.FolderURL); err != nil {
			return nil, err
		}
		corpora = append(corpora, c)
	}
	return corpora, rows.Err()
}

// updateStatus is best effort; a bookkeeping failure must not fail the
// sync itself.
func (s *Service) updateStatus(ctx context.Context, teamID string, status Status, fileCount *int) {
	var err error
	if fileCount != nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE team_corpora
			 SET last_sync_status = $1, last_sync_at = $2, file_count = $3, updated_at = NOW()
			 WHERE team_id = $4`,
			string(status), s.now().UTC(), *fileCount, teamID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE team_corpora
			 SET last_sync_status = $1, last_sync_at = $2, updated_at = NOW()
			 WHERE team_id = $3`,
			string(status), s.now().UTC(), teamID)
	}
	if err != nil {
		s.logger.Warn("failed to update sync status", "team_id", teamID, "error", err)
	}
}
