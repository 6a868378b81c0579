package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"

	"legal-backend/internal/documents"
	"legal-backend/internal/shared/storage/object"
)

// Local extracts text in-process: PDFs through ledongthuc/pdf, DOCX through docconv.
type Local struct {
	Store object.ObjectStore
}

func (l *Local) DetectLines(ctx context.Context, doc documents.Document) ([]string, error) {
	data, err := readObject(ctx, l.Store, doc.Location)
	if err != nil {
		return nil, err
	}

	var text string
	switch documents.BaseContentType(doc.ContentType) {
	case documents.ContentTypePDF:
		text, err = extractPDF(data)
	case documents.ContentTypeDOCX:
		text, err = extractDOCX(data)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", doc.ContentType)
	}
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), documents.ContentTypeDOCX, false)
	if err != nil {
		return "", fmt.Errorf("convert docx: %w", err)
	}
	return res.Body, nil
}

var _ OCR = (*Local)(nil)
