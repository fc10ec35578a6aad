package domain

import "time"

// Repositories (ports)

// AssessmentRepository is the narrow store contract the pipeline relies on. It
// never creates or deletes records.
type AssessmentRepository interface {
	FindByID(ctx Context, id string) (Assessment, error)
	Update(ctx Context, id string, upd AssessmentUpdate) error
}

// ConditionalUpdater is implemented by stores that can apply an update only if
// the record has not been modified since it was read. It returns ErrConflict
// when another writer got there first.
type ConditionalUpdater interface {
	UpdateIfUnmodified(ctx Context, id string, since time.Time, upd AssessmentUpdate) error
}

// StaleLockLister finds records still marked processing whose lock was taken
// before cutoff.
type StaleLockLister interface {
	ListStaleProcessing(ctx Context, cutoff time.Time, limit int) ([]Assessment, error)
}

// Queue (port)

type Queue interface {
	EnqueueAnalysis(ctx Context, task AnalysisTask) (string, error)
}

// ChatOptions tunes one completion request.
type ChatOptions struct {
	MaxTokens   int
	Temperature float32
	// Operation labels metrics and logs (e.g. "resume_analysis").
	Operation string
}

// AIClient (port)

type AIClient interface {
	// ChatJSON requests a single JSON-object completion and returns its text content.
	ChatJSON(ctx Context, systemPrompt, userPrompt string, opts ChatOptions) (string, error)
}

// OCRClient is the document text-detection capability.
type OCRClient interface {
	// DetectDocumentText runs dense document OCR over the first page of a PDF.
	DetectDocumentText(ctx Context, content []byte, mimeType string) (string, error)
	// DetectText runs text detection over an image.
	DetectText(ctx Context, content []byte) (string, error)
}

// TextExtractor (port)
// ExtractBytes extracts plain text from an in-memory document.
type TextExtractor interface {
	ExtractBytes(ctx Context, data []byte, mimeType string) (string, error)
}
