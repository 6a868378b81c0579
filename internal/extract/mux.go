package extract

import (
	"context"
	"fmt"

	"legal-backend/internal/documents"
)

// Mux picks an OCR backend by the document's content type.
type Mux struct {
	PDF  OCR
	DOCX OCR
}

func (m *Mux) DetectLines(ctx context.Context, doc documents.Document) ([]string, error) {
	var backend OCR
	switch documents.BaseContentType(doc.ContentType) {
	case documents.ContentTypePDF:
		backend = m.PDF
	case documents.ContentTypeDOCX:
		backend = m.DOCX
	}
	if backend == nil {
		return nil, fmt.Errorf("no ocr backend for content type %s", doc.ContentType)
	}
	return backend.DetectLines(ctx, doc)
}

var _ OCR = (*Mux)(nil)
