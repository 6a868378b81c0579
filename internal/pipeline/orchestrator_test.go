package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"legal-backend/internal/analysis"
	"legal-backend/internal/documents"
	"legal-backend/internal/llm"
)

var fixedNow = time.Date(2026, time.March, 2, 10, 30, 0, 0, time.UTC)

type stubText struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubText) Resolve(ctx context.Context, doc documents.Document) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

type stubLLM struct {
	output string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubLLM) Invoke(ctx context.Context, prompt string) (llm.Response, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Segments: []string{s.output}, Model: "stub"}, nil
}

// countingRepo wraps MemoryRepo and counts writes.
type countingRepo struct {
	*documents.MemoryRepo
	updates   atomic.Int32
	updateErr error
}

func (r *countingRepo) Update(ctx context.Context, id string, upd documents.Update) error {
	r.updates.Add(1)
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.MemoryRepo.Update(ctx, id, upd)
}

func modelOutput(confidence int) string {
	return fmt.Sprintf(`Analysis follows. {"keyTerms":[{"type":"party","value":"Acme","confidence":90,"location":"Preamble"}],
"riskAssessment":{"overallRisk":"high","risks":[],"totalScore":70},
"clauseAnalysis":[],
"complianceCheck":{"overallCompliance":80,"missingClauses":[],"nonStandardClauses":[],"recommendations":[]},
"executiveSummary":{"overview":"NDA","keyHighlights":[],"majorConcerns":[],"recommendation":"Sign"},
"confidenceScore":%d}`, confidence)
}

func seedRepo(t *testing.T) *countingRepo {
	t.Helper()
	repo := &countingRepo{MemoryRepo: documents.NewMemoryRepo()}
	err := repo.Create(context.Background(), documents.Document{
		ID:          "doc-1",
		FileName:    "nda.pdf",
		FileSize:    1024,
		ContentType: documents.ContentTypePDF,
		Location:    "documents/nda.pdf",
		Status:      documents.StatusProcessing,
		UploadedAt:  fixedNow.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return repo
}

func newOrchestrator(repo documents.Repo, text TextResolver, model llm.Client) *Orchestrator {
	return &Orchestrator{
		Docs:        repo,
		Text:        text,
		LLM:         model,
		Interpreter: &analysis.Interpreter{Now: func() time.Time { return fixedNow }},
		Now:         func() time.Time { return fixedNow },
	}
}

func TestProcessCompletesDocument(t *testing.T) {
	repo := seedRepo(t)
	o := newOrchestrator(repo, &stubText{text: "NDA text"}, &stubLLM{output: modelOutput(91)})

	result, err := o.Process(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.ConfidenceScore != 91 {
		t.Fatalf("unexpected confidence %v", result.ConfidenceScore)
	}

	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusCompleted {
		t.Fatalf("expected completed, got %s", doc.Status)
	}
	if doc.Analysis == nil || doc.Analysis.RiskAssessment.OverallRisk != analysis.SeverityHigh {
		t.Fatalf("expected analysis persisted, got %+v", doc.Analysis)
	}
	if doc.ProcessedAt == nil || !doc.ProcessedAt.Equal(fixedNow) {
		t.Fatalf("expected processedAt set, got %v", doc.ProcessedAt)
	}
	if doc.FileName != "nda.pdf" || doc.Location != "documents/nda.pdf" {
		t.Fatalf("update clobbered metadata: %+v", doc)
	}
}

func TestProcessUnparseableOutputUsesFallback(t *testing.T) {
	repo := seedRepo(t)
	o := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: "I cannot analyze this document."})

	result, err := o.Process(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.ConfidenceScore != 50 {
		t.Fatalf("expected fallback confidence 50, got %v", result.ConfidenceScore)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusCompleted || doc.Analysis == nil {
		t.Fatalf("expected completed with fallback analysis, got %+v", doc)
	}
}

func TestProcessUnknownIDWritesNothing(t *testing.T) {
	repo := seedRepo(t)
	text := &stubText{}
	model := &stubLLM{}
	o := newOrchestrator(repo, text, model)

	_, err := o.Process(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if repo.updates.Load() != 0 {
		t.Fatalf("expected no writes, got %d", repo.updates.Load())
	}
	if text.calls.Load() != 0 || model.calls.Load() != 0 {
		t.Fatalf("expected no downstream calls")
	}
}

func TestProcessModelFailureMarksFailed(t *testing.T) {
	repo := seedRepo(t)
	o := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{err: errors.New("openai http status 401")})

	_, err := o.Process(context.Background(), "doc-1")
	if !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("expected ErrModelInvocation, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusFailed {
		t.Fatalf("expected failed, got %s", doc.Status)
	}
	if doc.Analysis != nil {
		t.Fatalf("failed document must not carry an analysis")
	}
}

func TestProcessExtractionFailureMarksFailed(t *testing.T) {
	repo := seedRepo(t)
	model := &stubLLM{output: modelOutput(80)}
	o := newOrchestrator(repo, &stubText{err: errors.New("textract: unsupported document")}, model)

	_, err := o.Process(context.Background(), "doc-1")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if model.calls.Load() != 0 {
		t.Fatalf("model must not be called after extraction failure")
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusFailed || doc.Analysis != nil {
		t.Fatalf("unexpected document state %+v", doc)
	}
}

func TestProcessCallerTimeoutDrivesFailed(t *testing.T) {
	repo := seedRepo(t)
	o := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: modelOutput(80), delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Process(ctx, "doc-1")
	if !errors.Is(err, ErrModelInvocation) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected model invocation timeout, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusFailed {
		t.Fatalf("expected failed after timeout, got %s", doc.Status)
	}
}

func TestProcessPersistenceFailure(t *testing.T) {
	repo := seedRepo(t)
	repo.updateErr = errors.New("connection refused")
	o := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: modelOutput(80)})

	_, err := o.Process(context.Background(), "doc-1")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if repo.updates.Load() != 1 {
		t.Fatalf("expected a single write attempt, got %d", repo.updates.Load())
	}
	repo.updateErr = nil
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusProcessing {
		t.Fatalf("expected document left at processing, got %s", doc.Status)
	}
}

// lastWriterRepo serializes writes and remembers the confidence of the last one.
type lastWriterRepo struct {
	*documents.MemoryRepo
	mu        sync.Mutex
	lastScore float64
}

func (r *lastWriterRepo) Update(ctx context.Context, id string, upd documents.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.MemoryRepo.Update(ctx, id, upd); err != nil {
		return err
	}
	if upd.Analysis != nil {
		r.lastScore = upd.Analysis.ConfidenceScore
	}
	return nil
}

func TestConcurrentProcessLastWriterWins(t *testing.T) {
	base := seedRepo(t)
	repo := &lastWriterRepo{MemoryRepo: base.MemoryRepo}
	text := &stubText{text: "x"}
	fast := newOrchestrator(repo, text, &stubLLM{output: modelOutput(60), delay: 5 * time.Millisecond})
	slow := newOrchestrator(repo, text, &stubLLM{output: modelOutput(90), delay: 40 * time.Millisecond})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, o := range []*Orchestrator{fast, slow} {
		wg.Add(1)
		go func(i int, o *Orchestrator) {
			defer wg.Done()
			_, errs[i] = o.Process(context.Background(), "doc-1")
		}(i, o)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusCompleted || doc.Analysis == nil {
		t.Fatalf("expected completed document, got %+v", doc)
	}
	if doc.Analysis.ConfidenceScore != repo.lastScore {
		t.Fatalf("store holds %v but last write was %v", doc.Analysis.ConfidenceScore, repo.lastScore)
	}
	if doc.Analysis.ConfidenceScore != 90 {
		t.Fatalf("expected the slower attempt to win, got %v", doc.Analysis.ConfidenceScore)
	}
}

func TestConditionalWriteFirstAttemptWins(t *testing.T) {
	repo := seedRepo(t)
	first := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: modelOutput(60)})
	first.ConditionalWrite = true
	second := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: modelOutput(90)})
	second.ConditionalWrite = true

	if _, err := first.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := second.Process(context.Background(), "doc-1")
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, documents.ErrStatusConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Analysis == nil || doc.Analysis.ConfidenceScore != 60 {
		t.Fatalf("expected first result kept, got %+v", doc.Analysis)
	}
}

func TestConditionalWriteDoesNotFailCompletedDocument(t *testing.T) {
	repo := seedRepo(t)
	ok := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: modelOutput(60)})
	ok.ConditionalWrite = true
	if _, err := ok.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	broken := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{err: errors.New("boom")})
	broken.ConditionalWrite = true
	if _, err := broken.Process(context.Background(), "doc-1"); !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("expected model error, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc-1")
	if doc.Status != documents.StatusCompleted || doc.Analysis == nil {
		t.Fatalf("completed document must survive a later failed attempt, got %+v", doc)
	}
}

// Completed records always carry an in-domain analysis, whatever the model emits.
func TestCompletedRecordsAlwaysValid(t *testing.T) {
	outputs := []string{
		modelOutput(70),
		"no json here",
		`{"keyTerms":"oops","riskAssessment":{"overallRisk":"catastrophic","totalScore":"200%"}}`,
		`{"confidenceScore": -5, "executiveSummary": null}`,
		`{{{`,
		"",
	}
	for i, out := range outputs {
		repo := seedRepo(t)
		o := newOrchestrator(repo, &stubText{text: "x"}, &stubLLM{output: out})
		if _, err := o.Process(context.Background(), "doc-1"); err != nil {
			t.Fatalf("case %d: process: %v", i, err)
		}
		doc, _ := repo.GetByID(context.Background(), "doc-1")
		if doc.Status != documents.StatusCompleted || doc.Analysis == nil {
			t.Fatalf("case %d: expected completed with analysis", i)
		}
		if err := analysis.Validate(*doc.Analysis); err != nil {
			t.Fatalf("case %d: invalid analysis persisted: %v", i, err)
		}
	}
}
