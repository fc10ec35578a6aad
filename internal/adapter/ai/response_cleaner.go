// Package ai provides the completion-provider adapters and the wrappers shared
// between them.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/career-readiness/internal/domain"
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// CleanJSON extracts the JSON object from a model response. It strips markdown
// fences and surrounding prose and removes trailing commas. Anything still not
// valid JSON is domain.ErrSchemaInvalid.
func CleanJSON(response string) (string, error) {
	s := strings.TrimSpace(response)
	if s == "" {
		return "", fmt.Errorf("%w: empty model response", domain.ErrSchemaInvalid)
	}
	s = removeMarkdownBlocks(s)
	s = extractObject(s)
	if !json.Valid([]byte(s)) {
		if fixed := trailingComma.ReplaceAllString(s, "$1"); json.Valid([]byte(fixed)) {
			return fixed, nil
		}
		return "", fmt.Errorf("%w: response is not valid JSON", domain.ErrSchemaInvalid)
	}
	return s, nil
}

func removeMarkdownBlocks(s string) string {
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// skip the language tag line
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = rest
	}
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced {...} in s, honouring string
// literals and escapes. s is returned unchanged when no object is found.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
