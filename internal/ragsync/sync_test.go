package ragsync

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

type stubImporter struct {
	fileCounts map[string]int
	errs       map[string]error
	calls      []string
}

func (s *stubImporter) ImportFiles(ctx context.Context, corpusName, folderURL string) (int, error) {
	s.calls = append(s.calls, corpusName)
	if err := s.errs[corpusName]; err != nil {
		return 0, err
	}
	return s.fileCounts[corpusName], nil
}

func expectStatusUpdate(mock sqlmock.Sqlmock, withCount bool) {
	query := `UPDATE team_corpora SET last_sync_status = \$1, last_sync_at = \$2, updated_at = NOW\(\) WHERE team_id = \$3`
	if withCount {
		query = `UPDATE team_corpora SET last_sync_status = \$1, last_sync_at = \$2, file_count = \$3, updated_at = NOW\(\) WHERE team_id = \$4`
	}
	mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestSyncAllMixedResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, team_id, corpus_name, source_type, folder_url FROM team_corpora`)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "team_id", "corpus_name", "source_type", "folder_url"}).
			AddRow("1", "team-a", "corpus-a", "gdrive", "https://drive/a").
			AddRow("2", "team-b", "corpus-b", "gdrive", "https://drive/b"))

	// team-a: in_progress then completed with count.
	expectStatusUpdate(mock, false)
	expectStatusUpdate(mock, true)
	// team-b: in_progress then failed.
	expectStatusUpdate(mock, false)
	expectStatusUpdate(mock, false)

	importer := &stubImporter{
		fileCounts: map[string]int{"corpus-a": 12},
		errs:       map[string]error{"corpus-b": errors.New("folder unreachable")},
	}
	service := NewService(db, importer, nil)

	result, err := service.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if result.Total != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("summary = %d/%d/%d, want total 2 succeeded 1 failed 1",
			result.Total, result.Succeeded, result.Failed)
	}
	if got := result.Results[0]; got.Status != StatusCompleted || got.FileCount != 12 {
		t.Errorf("first result = %+v, want completed with 12 files", got)
	}
	if got := result.Results[1]; got.Status != StatusFailed || got.Error != "folder unreachable" {
		t.Errorf("second result = %+v, want failed with importer error", got)
	}
	if len(importer.calls) != 2 {
		t.Errorf("importer calls = %v, want both corpora", importer.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncAllNoCorpora(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, team_id, corpus_name, source_type, folder_url FROM team_corpora`)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "team_id", "corpus_name", "source_type", "folder_url"}))

	service := NewService(db, &stubImporter{}, nil)
	result, err := service.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if result.Total != 0 || len(result.Results) != 0 {
		t.Errorf("result = %+v, want empty summary", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncCorpusStatusUpdateFailureDoesNotFailSync(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE team_corpora`).WillReturnError(errors.New("db down"))
	mock.ExpectExec(`UPDATE team_corpora`).WillReturnError(errors.New("db down"))

	importer := &stubImporter{fileCounts: map[string]int{"corpus-a": 3}}
	service := NewService(db, importer, nil)

	result := service.SyncCorpus(context.Background(), Corpus{
		TeamID: "team-a", CorpusName: "corpus-a", FolderURL: "https://drive/a",
	})
	if result.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", result.Status, StatusCompleted)
	}
	if result.FileCount != 3 {
		t.Errorf("FileCount = %d, want 3", result.FileCount)
	}
}
