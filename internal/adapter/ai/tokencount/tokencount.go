// Package tokencount measures and trims prompt text in model tokens.
//
// Encodings come from tiktoken-go with the offline BPE loader, so counting
// never reaches the network. Models without a published encoding are counted
// with the closest OpenAI family.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	encodingO200K  = "o200k_base"
	encodingCL100K = "cl100k_base"

	// chat framing overhead per message plus the assistant primer
	tokensPerMessage = 4
	replyPrimer      = 3
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Usage is the token accounting for one completion.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
	Estimated        bool   `json:"estimated"`
}

// Counter caches one encoder per encoding name. Safe for concurrent use.
type Counter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{cache: make(map[string]*tiktoken.Tiktoken)}
}

// Default is shared by the AI adapters and the analyzer.
var Default = NewCounter()

// EncodingFor maps a provider model id to a tiktoken encoding name.
func EncodingFor(model string) string {
	m := strings.ToLower(model)
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return encodingO200K
	case strings.HasPrefix(m, "gemini"):
		// Gemini tokenizes with SentencePiece; o200k is the closer estimate.
		return encodingO200K
	default:
		return encodingCL100K
	}
}

func (c *Counter) encoder(model string) (*tiktoken.Tiktoken, error) {
	name := EncodingFor(model)

	c.mu.RLock()
	enc, ok := c.cache[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		slog.Debug("encoding unavailable, trying cl100k_base", slog.String("model", model), slog.String("encoding", name), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding(encodingCL100K)
		if err != nil {
			return nil, err
		}
	}
	c.cache[name] = enc
	return enc, nil
}

// Count returns the number of tokens text encodes to. On encoder failure it
// falls back to a four-characters-per-token estimate.
func (c *Counter) Count(text, model string) int {
	enc, err := c.encoder(model)
	if err != nil {
		return estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountChat counts a system plus user prompt including message framing.
func (c *Counter) CountChat(systemPrompt, userPrompt, model string) int {
	return 2*tokensPerMessage + c.Count(systemPrompt, model) + c.Count(userPrompt, model) + replyPrimer
}

// Usage estimates the accounting for a completion the provider did not report on.
func (c *Counter) Usage(systemPrompt, userPrompt, completion, model, provider string) Usage {
	p := c.CountChat(systemPrompt, userPrompt, model)
	cp := c.Count(completion, model)
	return Usage{
		PromptTokens:     p,
		CompletionTokens: cp,
		TotalTokens:      p + cp,
		Model:            model,
		Provider:         provider,
		Estimated:        true,
	}
}

// Truncate returns text cut to at most maxTokens tokens and whether it was cut.
// A non-positive budget leaves text unchanged.
func (c *Counter) Truncate(text, model string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || text == "" {
		return text, false
	}
	enc, err := c.encoder(model)
	if err != nil {
		limit := maxTokens * 4
		r := []rune(text)
		if len(r) <= limit {
			return text, false
		}
		return string(r[:limit]), true
	}
	toks := enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text, false
	}
	out := enc.Decode(toks[:maxTokens])
	// a cut can land inside a multi-byte rune
	for i := 0; i < utf8.UTFMax && !utf8.ValidString(out); i++ {
		out = out[:len(out)-1]
	}
	return out, true
}

func estimate(s string) int {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
