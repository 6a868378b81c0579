package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"legal-backend/internal/queue"
	"legal-backend/internal/shared/metrics"
	"legal-backend/internal/shared/storage/object"
	"legal-backend/internal/shared/telemetry"
)

// Service contains upload and read-side logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
	// Queue is optional; when set, every upload is enqueued for processing.
	Queue queue.Client
	Now   func() time.Time
}

// Upload validates and stores a file, then records it at StatusProcessing.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidInput, ErrTooLarge)
	}
	if len(data) == 0 {
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	contentType := DetectContentType(fileName, data)
	if contentType == "" {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidInput, ErrUnsupportedType)
	}

	location, size, _, err := s.Store.Save(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}

	doc := Document{
		ID:          uuid.NewString(),
		FileName:    fileName,
		FileSize:    size,
		ContentType: contentType,
		Location:    location,
		Status:      StatusProcessing,
		UploadedAt:  s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	metrics.IncDocumentsUploaded()

	s.enqueue(ctx, doc)
	return doc, nil
}

func (s *Service) enqueue(ctx context.Context, doc Document) {
	if s.Queue == nil {
		return
	}
	msg := queue.Message{
		DocumentID: doc.ID,
		RequestID:  telemetry.RequestIDFromContext(ctx),
		EnqueuedAt: s.now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		telemetry.Error("document.enqueue_failed", map[string]any{
			"request_id":  msg.RequestID,
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		return
	}
	telemetry.Info("document.enqueued", map[string]any{
		"request_id":  msg.RequestID,
		"document_id": doc.ID,
	})
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if strings.TrimSpace(id) == "" {
		return Document{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DetectContentType classifies an upload as PDF, DOCX or plain text by
// sniffing its bytes. It returns "" for anything else.
func DetectContentType(fileName string, data []byte) string {
	sniffed := BaseContentType(http.DetectContentType(data))
	ext := strings.ToLower(filepath.Ext(fileName))
	switch sniffed {
	case ContentTypePDF:
		return ContentTypePDF
	case "application/zip":
		if isWordprocessingZip(data) {
			return ContentTypeDOCX
		}
		return ""
	case ContentTypeText:
		if utf8.Valid(data) || ext == ".txt" {
			return ContentTypeText
		}
		return ""
	}
	// DetectContentType reports non-UTF-8 text as octet-stream.
	if ext == ".txt" && !bytes.ContainsRune(data, 0) {
		return ContentTypeText
	}
	return ""
}

// BaseContentType strips parameters such as charset and lowercases the media type.
func BaseContentType(raw string) string {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(raw, ";")[0]))
	}
	return mediaType
}

func isWordprocessingZip(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
