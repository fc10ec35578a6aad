// Package vision implements domain.OCRClient on the Google Cloud Vision REST API.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const (
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"
	featureText         = "TEXT_DETECTION"
)

// Client wraps the generated Vision service.
type Client struct {
	svc *visionapi.Service
}

// New authenticates with an API key. An empty key is domain.ErrMissingAPIKey;
// endpoint overrides the API base URL when set.
func New(ctx context.Context, apiKey, endpoint string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: GOOGLE_VISION_API_KEY", domain.ErrMissingAPIKey)
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create vision service: %v", domain.ErrConfig, err)
	}
	return &Client{svc: svc}, nil
}

// DetectDocumentText runs dense OCR over the first page of a document.
func (c *Client) DetectDocumentText(ctx context.Context, content []byte, mimeType string) (string, error) {
	req := &visionapi.BatchAnnotateFilesRequest{
		Requests: []*visionapi.AnnotateFileRequest{{
			InputConfig: &visionapi.InputConfig{
				Content:  base64.StdEncoding.EncodeToString(content),
				MimeType: mimeType,
			},
			Features: []*visionapi.Feature{{Type: featureDocumentText}},
			Pages:    []int64{1},
		}},
	}
	resp, err := c.svc.Files.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", classify("files:annotate", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	file := resp.Responses[0]
	if file.Error != nil && file.Error.Code != 0 {
		return "", fmt.Errorf("op=vision.DetectDocumentText: %w: %s", domain.ErrExtraction, file.Error.Message)
	}
	var sb strings.Builder
	for _, page := range file.Responses {
		if page == nil {
			continue
		}
		if page.Error != nil && page.Error.Code != 0 {
			return "", fmt.Errorf("op=vision.DetectDocumentText: %w: %s", domain.ErrExtraction, page.Error.Message)
		}
		if page.FullTextAnnotation != nil {
			sb.WriteString(page.FullTextAnnotation.Text)
		}
	}
	return sb.String(), nil
}

// DetectText runs text detection over an image.
func (c *Client) DetectText(ctx context.Context, content []byte) (string, error) {
	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(content)},
			Features: []*visionapi.Feature{{Type: featureText}},
		}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", classify("images:annotate", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return "", fmt.Errorf("op=vision.DetectText: %w: %s", domain.ErrExtraction, r.Error.Message)
	}
	if r.FullTextAnnotation != nil && r.FullTextAnnotation.Text != "" {
		return r.FullTextAnnotation.Text, nil
	}
	// the first annotation holds the whole detected text
	if len(r.TextAnnotations) > 0 {
		return r.TextAnnotations[0].Description, nil
	}
	return "", nil
}

func classify(method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("op=vision.%s: %w: %v", method, domain.ErrUpstreamTimeout, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("op=vision.%s: %w: %v", method, domain.ErrUpstreamRateLimit, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("op=vision.%s: %w: %v", method, domain.ErrConfig, err)
		case http.StatusBadRequest:
			return fmt.Errorf("op=vision.%s: %w: %v", method, domain.ErrExtraction, err)
		}
	}
	return fmt.Errorf("op=vision.%s: %w: %v", method, domain.ErrUpstream, err)
}
