package documents

import (
	"time"

	"legal-backend/internal/analysis"
)

// Status is the lifecycle state of a document's analysis.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeText = "text/plain"
)

// MaxFileSize is the upload ceiling in bytes.
const MaxFileSize = 10 << 20

// Document is the persisted record for one uploaded file. Analysis is only set
// while Status is completed.
type Document struct {
	ID          string           `json:"id"`
	FileName    string           `json:"fileName"`
	FileSize    int64            `json:"fileSize"`
	ContentType string           `json:"contentType"`
	Location    string           `json:"location"`
	Status      Status           `json:"status"`
	Analysis    *analysis.Result `json:"analysis,omitempty"`
	UploadedAt  time.Time        `json:"uploadedAt"`
	ProcessedAt *time.Time       `json:"processedAt,omitempty"`
}

// IsPlainText reports whether the document can be read without OCR.
func (d Document) IsPlainText() bool {
	return BaseContentType(d.ContentType) == ContentTypeText
}
