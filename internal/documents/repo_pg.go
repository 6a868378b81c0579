package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"legal-backend/internal/analysis"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, file_name, file_size, content_type, location, status, analysis, uploaded_at, processed_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    file_name,
    file_size,
    content_type,
    location,
    status,
    analysis,
    uploaded_at,
    processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	payload, err := marshalAnalysis(doc.Analysis)
	if err != nil {
		return err
	}
	var processedAt sql.NullTime
	if doc.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: *doc.ProcessedAt, Valid: true}
	}
	_, err = r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.FileName,
		doc.FileSize,
		doc.ContentType,
		doc.Location,
		string(doc.Status),
		payload,
		doc.UploadedAt,
		processedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List lists documents ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + selectColumns + `
FROM documents
ORDER BY uploaded_at DESC, id
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Update applies a partial update. Moving to failed nulls the analysis column.
func (r *PGRepo) Update(ctx context.Context, id string, upd Update) error {
	const query = `
UPDATE documents
SET status = $2,
    analysis = CASE WHEN $2 = 'failed' THEN NULL ELSE COALESCE($3::jsonb, analysis) END,
    processed_at = COALESCE($4, processed_at),
    updated_at = now()
WHERE id = $1 AND ($5 = '' OR status = $5)`

	payload, err := marshalAnalysis(upd.Analysis)
	if err != nil {
		return err
	}
	var processedAt sql.NullTime
	if upd.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: *upd.ProcessedAt, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query, id, string(upd.Status), payload, processedAt, string(upd.ExpectStatus))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if upd.ExpectStatus == "" {
		return ErrNotFound
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrStatusConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var payload sql.NullString
	var processedAt sql.NullTime
	if err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.FileSize,
		&doc.ContentType,
		&doc.Location,
		&status,
		&payload,
		&doc.UploadedAt,
		&processedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Status = Status(status)
	if payload.Valid && payload.String != "" {
		var result analysis.Result
		if err := json.Unmarshal([]byte(payload.String), &result); err != nil {
			return Document{}, fmt.Errorf("decode analysis id=%s: %w", doc.ID, err)
		}
		doc.Analysis = &result
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}
	return doc, nil
}

func marshalAnalysis(result *analysis.Result) (sql.NullString, error) {
	if result == nil {
		return sql.NullString{}, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode analysis: %w", err)
	}
	return sql.NullString{String: string(payload), Valid: true}, nil
}

var _ Repo = (*PGRepo)(nil)
