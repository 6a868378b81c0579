package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"legal-backend/internal/analysis"
)

var documentColumns = []string{"id", "file_name", "file_size", "content_type", "location", "status", "analysis", "uploaded_at", "processed_at"}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	doc := seedDocument("doc-1", baseTime)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.FileName,
			doc.FileSize,
			doc.ContentType,
			doc.Location,
			string(StatusProcessing),
			nil, // analysis
			doc.UploadedAt,
			nil, // processed_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesAnalysis(t *testing.T) {
	repo, mock := newMockRepo(t)
	processed := baseTime.Add(time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(documentColumns).AddRow(
			"doc-1", "nda.pdf", int64(42), ContentTypePDF, "documents/nda.pdf", "completed",
			`{"confidenceScore":77,"processedAt":"2025-03-01T12:01:00Z"}`, baseTime, processed,
		))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != StatusCompleted || doc.Analysis == nil || doc.Analysis.ConfidenceScore != 77 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.ProcessedAt == nil || !doc.ProcessedAt.Equal(processed) {
		t.Fatalf("expected processedAt %v, got %v", processed, doc.ProcessedAt)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(documentColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM documents\\s+ORDER BY uploaded_at DESC").
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("b", "b.txt", int64(1), ContentTypeText, "documents/b", "processing", nil, baseTime.Add(time.Minute), nil).
			AddRow("a", "a.txt", int64(1), ContentTypeText, "documents/a", "failed", nil, baseTime, nil))

	docs, err := repo.List(context.Background(), 500, -3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" || docs[1].Status != StatusFailed {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)
	result := analysis.Fallback(baseTime)
	processed := baseTime.Add(time.Minute)

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "completed", sqlmock.AnyArg(), processed, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "doc-1", Update{Status: StatusCompleted, Analysis: &result, ProcessedAt: &processed})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", "failed", nil, nil, "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), "missing", Update{Status: StatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoConditionalUpdateConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "failed", nil, nil, "processing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err := repo.Update(context.Background(), "doc-1", Update{Status: StatusFailed, ExpectStatus: StatusProcessing})
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
