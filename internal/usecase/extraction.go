package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/pkg/textx"
)

// Extraction methods recorded on the result.
const (
	MethodOCRDocument = "ocr_document"
	MethodOCRImage    = "ocr_image"
	MethodTika        = "tika"
)

// Minimum cleaned-text lengths (exclusive) for each path.
const (
	minPDFOCRChars   = 50
	minTikaChars     = 10
	minImageOCRChars = 20
)

// DefaultMaxUploadBytes is the 15 MB upload cap.
const DefaultMaxUploadBytes int64 = 15 << 20

const mimePDF = "application/pdf"

var allowedMIME = map[string]bool{
	mimePDF:      true,
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ExtractionService turns an uploaded resume into cleaned text.
type ExtractionService struct {
	OCR      domain.OCRClient
	Fallback domain.TextExtractor
	MaxBytes int64
}

// NewExtractionService constructs an ExtractionService. fallback may be nil.
func NewExtractionService(ocr domain.OCRClient, fallback domain.TextExtractor, maxBytes int64) ExtractionService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return ExtractionService{OCR: ocr, Fallback: fallback, MaxBytes: maxBytes}
}

// NormalizeMIME lower-cases a declared type, strips parameters and sniffs the
// content when the declaration is missing or generic.
func NormalizeMIME(data []byte, declared string) string {
	m := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "" || m == "application/octet-stream" {
		m = mimetype.Detect(data).String()
		if i := strings.IndexByte(m, ';'); i >= 0 {
			m = m[:i]
		}
	}
	return m
}

// Validate checks size and type. It never touches the network.
func (s ExtractionService) Validate(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d MB limit", domain.ErrFileTooLarge, len(data), limit>>20)
	}
	m := NormalizeMIME(data, mimeType)
	if !allowedMIME[m] {
		return "", fmt.Errorf("%w: %q (allowed: pdf, png, jpeg, jpg, webp, gif)", domain.ErrUnsupportedMIME, m)
	}
	return m, nil
}

// Extract validates the file then runs OCR, falling back to whole-document
// extraction for PDFs. It fails rather than returning placeholder text.
func (s ExtractionService) Extract(ctx domain.Context, data []byte, mimeType string) (domain.ExtractedText, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ExtractionService.Extract")
	defer span.End()

	m, err := s.Validate(data, mimeType)
	if err != nil {
		return domain.ExtractedText{}, err
	}
	span.SetAttributes(attribute.String("file.mime", m), attribute.Int("file.size", len(data)))
	lg := observability.Logger(ctx)

	if m != mimePDF {
		text, err := s.ocrImage(ctx, data)
		if err != nil {
			observability.RecordExtraction(MethodOCRImage, "failed")
			return domain.ExtractedText{}, err
		}
		observability.RecordExtraction(MethodOCRImage, "ok")
		return domain.ExtractedText{Text: text, Method: MethodOCRImage, MIME: m}, nil
	}

	var failures []string
	if s.OCR != nil {
		text, err := s.ocrDocument(ctx, data, m)
		if err == nil {
			observability.RecordExtraction(MethodOCRDocument, "ok")
			return domain.ExtractedText{Text: text, Method: MethodOCRDocument, MIME: m, Pages: 1}, nil
		}
		// configuration errors are not a reason to try another extractor
		if errors.Is(err, domain.ErrConfig) {
			return domain.ExtractedText{}, err
		}
		observability.RecordExtraction(MethodOCRDocument, "failed")
		lg.Warn("pdf ocr failed, trying fallback extractor", slog.Any("error", err))
		failures = append(failures, "ocr: "+err.Error())
	}
	if s.Fallback != nil {
		raw, err := s.Fallback.ExtractBytes(ctx, data, m)
		if err == nil {
			text := textx.CleanExtractedText(raw)
			if len(text) > minTikaChars {
				observability.RecordExtraction(MethodTika, "ok")
				return domain.ExtractedText{Text: text, Method: MethodTika, MIME: m}, nil
			}
			err = fmt.Errorf("only %d characters extracted", len(text))
		}
		observability.RecordExtraction(MethodTika, "failed")
		failures = append(failures, "fallback: "+err.Error())
	}
	if len(failures) == 0 {
		return domain.ExtractedText{}, fmt.Errorf("%w: no extractor configured", domain.ErrConfig)
	}
	return domain.ExtractedText{}, fmt.Errorf("%w: %s", domain.ErrNoUsableText, strings.Join(failures, "; "))
}

func (s ExtractionService) ocrDocument(ctx domain.Context, data []byte, m string) (string, error) {
	raw, err := s.OCR.DetectDocumentText(ctx, data, m)
	if err != nil {
		return "", err
	}
	text := textx.CleanExtractedText(raw)
	if len(text) <= minPDFOCRChars {
		return "", fmt.Errorf("%w: only %d characters recognised on the first page", domain.ErrNoUsableText, len(text))
	}
	return text, nil
}

func (s ExtractionService) ocrImage(ctx domain.Context, data []byte) (string, error) {
	if s.OCR == nil {
		return "", fmt.Errorf("%w: OCR not configured", domain.ErrConfig)
	}
	raw, err := s.OCR.DetectText(ctx, data)
	if err != nil {
		return "", err
	}
	text := textx.CleanExtractedText(raw)
	if len(text) <= minImageOCRChars {
		return "", fmt.Errorf("%w: only %d characters recognised in the image", domain.ErrNoUsableText, len(text))
	}
	return text, nil
}
