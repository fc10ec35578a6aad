package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/fairyhunter13/career-readiness/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "test",
		StoreBackend:       StoreMemory,
		AIProvider:         config.ProviderOpenAI,
		OpenAIModel:        "gpt-4o-mini",
		AIMaxTokens:        500,
		MaxUploadMB:        15,
		MaxRetryAttempts:   3,
		FormWeight:         60,
		ConcurrentLockTime: time.Minute,
		ProcessingTimeout:  2 * time.Minute,
		CORSAllowOrigins:   "*",
		HTTPWriteTimeout:   5 * time.Second,
	}
}

// withBackends points cfg at a miniredis instance, a fake OpenAI endpoint and
// a fake Tika server.
func withBackends(t *testing.T, cfg config.Config) config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.AIRateLimitPerMin = 60

	openai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(openai.Close)
	cfg.OpenAIAPIKey = "test-key"
	cfg.OpenAIBaseURL = openai.URL

	tika := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/version" {
			_, _ = w.Write([]byte("Apache Tika 2.9.0"))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(tika.Close)
	cfg.TikaURL = tika.URL
	return cfg
}
