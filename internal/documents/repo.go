package documents

import (
	"context"
	"time"

	"legal-backend/internal/analysis"
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	List(ctx context.Context, limit, offset int) ([]Document, error)
	Update(ctx context.Context, id string, upd Update) error
}

// Update is a partial write of the lifecycle fields. Nil fields are left as
// they are, except that moving to StatusFailed always clears Analysis.
// A non-empty ExpectStatus makes the write conditional on the stored status;
// a mismatch yields ErrStatusConflict.
type Update struct {
	Status       Status
	Analysis     *analysis.Result
	ProcessedAt  *time.Time
	ExpectStatus Status
}

func (u Update) apply(doc *Document) {
	doc.Status = u.Status
	if u.Status == StatusFailed {
		doc.Analysis = nil
	} else if u.Analysis != nil {
		result := *u.Analysis
		doc.Analysis = &result
	}
	if u.ProcessedAt != nil {
		processedAt := *u.ProcessedAt
		doc.ProcessedAt = &processedAt
	}
}
