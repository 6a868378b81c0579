package documents_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/bootstrap"
	"legal-backend/internal/documents"
	"legal-backend/internal/llm"
	"legal-backend/internal/shared/config"
)

type cannedLLM struct {
	output string
}

func (c cannedLLM) Invoke(ctx context.Context, prompt string) (llm.Response, error) {
	return llm.Response{Segments: []string{c.output}}, nil
}

const cannedAnalysis = `{"keyTerms":[{"type":"party","value":"Acme","confidence":88,"location":"Preamble"}],
"riskAssessment":{"overallRisk":"low","risks":[],"totalScore":10},
"clauseAnalysis":[],
"complianceCheck":{"overallCompliance":95,"missingClauses":[],"nonStandardClauses":[],"recommendations":[]},
"executiveSummary":{"overview":"Short NDA","keyHighlights":[],"majorConcerns":[],"recommendation":"Sign"},
"confidenceScore":88}`

func newTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:              "0",
		Env:               "dev",
		CORSAllowOrigin:   []string{"http://localhost:5173"},
		ObjectStoreType:   "local",
		LocalStoreDir:     t.TempDir(),
		DocumentStore:     "memory",
		ProcessRatePerSec: 100,
		ProcessRateBurst:  100,
	}
	app, err := bootstrap.BuildWith(cfg, bootstrap.Overrides{LLM: cannedLLM{output: cannedAnalysis}})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func uploadRequest(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, body)
	}
	return payload.Error.Code
}

func TestUploadGetAndProcess(t *testing.T) {
	app := newTestApp(t)
	router := app.Router

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "nda.txt", []byte("This Non-Disclosure Agreement is made between Acme and Beta.")))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created documents.Document
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if created.ID == "" || created.Status != documents.StatusProcessing {
		t.Fatalf("unexpected upload response: %+v", created)
	}
	if created.ContentType != documents.ContentTypeText {
		t.Fatalf("expected text/plain, got %s", created.ContentType)
	}
	if created.Analysis != nil || created.ProcessedAt != nil {
		t.Fatalf("fresh upload must not carry analysis")
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+created.ID+"/process", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var processed documents.Document
	if err := json.Unmarshal(resp.Body.Bytes(), &processed); err != nil {
		t.Fatalf("decode process: %v", err)
	}
	if processed.Status != documents.StatusCompleted {
		t.Fatalf("expected completed, got %s", processed.Status)
	}
	if processed.Analysis == nil || processed.Analysis.ConfidenceScore != 88 {
		t.Fatalf("expected analysis with confidence 88, got %+v", processed.Analysis)
	}
	if processed.ProcessedAt == nil {
		t.Fatalf("expected processedAt")
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=5", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var listed struct {
		Documents []documents.Document `json:"documents"`
		Limit     int                  `json:"limit"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Documents) != 1 || listed.Limit != 5 {
		t.Fatalf("unexpected list: %+v", listed)
	}
}

func TestUploadRejections(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name     string
		fileName string
		content  []byte
		status   int
		code     string
	}{
		{name: "unsupported", fileName: "photo.png", content: []byte("\x89PNG\r\n\x1a\n0000"), status: http.StatusUnsupportedMediaType, code: "unsupported_type"},
		{name: "empty", fileName: "empty.txt", content: nil, status: http.StatusBadRequest, code: "validation_error"},
		{name: "too large", fileName: "big.txt", content: []byte(strings.Repeat("a", documents.MaxFileSize+1)), status: http.StatusRequestEntityTooLarge, code: "file_too_large"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			app.Router.ServeHTTP(resp, uploadRequest(t, tc.fileName, tc.content))
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if code := errorCode(t, resp.Body.Bytes()); code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
		})
	}
}

func TestUploadRequiresFile(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetUnknownDocument(t *testing.T) {
	app := newTestApp(t)

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if code := errorCode(t, resp.Body.Bytes()); code != "not_found" {
		t.Fatalf("expected not_found, got %s", code)
	}
}
