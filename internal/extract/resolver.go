package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"legal-backend/internal/documents"
	"legal-backend/internal/shared/storage/object"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// OCR returns the line-level text blocks of a stored document in reading order.
type OCR interface {
	DetectLines(ctx context.Context, doc documents.Document) ([]string, error)
}

// Resolver turns a stored document into raw UTF-8 text.
type Resolver struct {
	Store object.ObjectStore
	OCR   OCR
}

// Resolve reads plain text documents directly and sends everything else to OCR.
// It makes exactly one attempt; errors are returned to the caller unchanged in kind.
func (r *Resolver) Resolve(ctx context.Context, doc documents.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if doc.IsPlainText() {
		return r.readPlainText(ctx, doc)
	}
	if r.OCR == nil {
		return "", fmt.Errorf("no ocr backend for content type %s", doc.ContentType)
	}
	lines, err := r.OCR.DetectLines(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("ocr key=%s: %w", doc.Location, err)
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Resolver) readPlainText(ctx context.Context, doc documents.Document) (string, error) {
	data, err := readObject(ctx, r.Store, doc.Location)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return strings.ToValidUTF8(string(data), "�"), nil
}

func readObject(ctx context.Context, store object.ObjectStore, key string) ([]byte, error) {
	if store == nil {
		return nil, fmt.Errorf("no object store configured")
	}
	body, err := store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open key=%s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read key=%s: %w", key, err)
	}
	return data, nil
}

// splitLines breaks text on newlines and drops blank lines.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
