package pipeline

import "errors"

// Sentinels for the pipeline failure taxonomy. Causes are wrapped, so match with errors.Is.
var (
	ErrNotFound        = errors.New("document not found")
	ErrExtraction      = errors.New("text extraction failed")
	ErrModelInvocation = errors.New("model invocation failed")
	ErrPersistence     = errors.New("persisting analysis failed")
)
