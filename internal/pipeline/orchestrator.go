package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-backend/internal/analysis"
	"legal-backend/internal/documents"
	"legal-backend/internal/llm"
	"legal-backend/internal/shared/metrics"
	"legal-backend/internal/shared/telemetry"
	"legal-backend/internal/shared/util"
)

// TextResolver returns the raw text of a stored document.
type TextResolver interface {
	Resolve(ctx context.Context, doc documents.Document) (string, error)
}

// Orchestrator runs one analysis attempt for a document:
// load, extract, prompt, invoke, interpret, persist.
type Orchestrator struct {
	Docs        documents.Repo
	Text        TextResolver
	LLM         llm.Client
	Interpreter *analysis.Interpreter
	// ConditionalWrite makes every status write succeed only while the
	// document is still processing, so the first attempt to finish wins.
	ConditionalWrite bool
	Now              func() time.Time
}

type attempt struct {
	doc        documents.Document
	startedAt  time.Time
	promptHash string
}

// Process runs the pipeline for id and returns the persisted result.
//
// Unknown ids fail with ErrNotFound and nothing is written. Extraction and
// model failures move the document to failed and return ErrExtraction or
// ErrModelInvocation. A failed final write returns ErrPersistence and leaves the
// document at whatever status the store holds.
func (o *Orchestrator) Process(ctx context.Context, id string) (analysis.Result, error) {
	doc, err := o.Docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return analysis.Result{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		return analysis.Result{}, fmt.Errorf("%w: load id=%s: %w", ErrPersistence, id, err)
	}

	a := &attempt{doc: doc, startedAt: o.now()}
	metrics.IncPipelineStarted()
	o.logStatus(ctx, a, string(documents.StatusProcessing), "received->extracting", nil)

	text, err := o.Text.Resolve(ctx, doc)
	if err != nil {
		return analysis.Result{}, o.fail(ctx, a, ErrExtraction, err)
	}

	prompt := llm.BuildPrompt(text)
	a.promptHash = util.SHA256Hex(prompt)
	resp, err := o.LLM.Invoke(ctx, prompt)
	if err != nil {
		return analysis.Result{}, o.fail(ctx, a, ErrModelInvocation, err)
	}

	result, usedFallback := o.Interpreter.Interpret(resp.Text())
	if err := analysis.Validate(result); err != nil {
		telemetry.Error("analysis.invalid_result", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		result, usedFallback = analysis.Fallback(o.now()), true
	}

	processedAt := o.now().UTC()
	upd := documents.Update{
		Status:      documents.StatusCompleted,
		Analysis:    &result,
		ProcessedAt: &processedAt,
	}
	if o.ConditionalWrite {
		upd.ExpectStatus = documents.StatusProcessing
	}
	if err := o.Docs.Update(ctx, id, upd); err != nil {
		telemetry.Error("analysis.persist_failed", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"document_id": id,
			"error":       sanitizeError(err),
		})
		return analysis.Result{}, fmt.Errorf("%w: id=%s: %w", ErrPersistence, id, err)
	}

	metrics.IncPipelineCompleted()
	if usedFallback {
		metrics.IncPipelineFallback()
	}
	duration := durationMs(a.startedAt, processedAt)
	metrics.ObservePipelineDurationMs(duration)
	o.logStatus(ctx, a, string(documents.StatusCompleted), "processing->completed", map[string]any{
		"duration_ms":  duration,
		"fallback":     usedFallback,
		"model":        resp.Model,
		"stop_reason":  resp.StopReason,
		"confidence":   result.ConfidenceScore,
		"overall_risk": string(result.RiskAssessment.OverallRisk),
		"key_terms":    len(result.KeyTerms),
		"text_length":  len(text),
	})
	return result, nil
}

// fail records the failed status and returns kind wrapping cause. The write
// uses a background context so an expired caller deadline still lands it.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, kind, cause error) error {
	upd := documents.Update{Status: documents.StatusFailed}
	if o.ConditionalWrite {
		upd.ExpectStatus = documents.StatusProcessing
	}
	if err := o.Docs.Update(context.Background(), a.doc.ID, upd); err != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"document_id": a.doc.ID,
			"error":       sanitizeError(err),
		})
	}

	failedAt := o.now()
	duration := durationMs(a.startedAt, failedAt)
	metrics.IncPipelineFailed()
	metrics.ObservePipelineDurationMs(duration)
	o.logStatus(ctx, a, string(documents.StatusFailed), "processing->failed", map[string]any{
		"duration_ms": duration,
		"reason":      kind.Error(),
		"error":       sanitizeError(cause),
	})
	return fmt.Errorf("%w: id=%s: %w", kind, a.doc.ID, cause)
}

func (o *Orchestrator) logStatus(ctx context.Context, a *attempt, status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"document_id":       a.doc.ID,
		"content_type":      a.doc.ContentType,
		"status":            status,
		"status_transition": transition,
	}
	if a.promptHash != "" {
		fields["prompt_hash"] = a.promptHash
		fields["prompt_version"] = llm.PromptVersion
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
