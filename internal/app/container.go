package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/career-readiness/internal/adapter/ai"
	httpserver "github.com/fairyhunter13/career-readiness/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-readiness/internal/adapter/ocr/vision"
	"github.com/fairyhunter13/career-readiness/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/career-readiness/internal/adapter/repo/memory"
	"github.com/fairyhunter13/career-readiness/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/career-readiness/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/career-readiness/internal/analysis"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
	"github.com/fairyhunter13/career-readiness/internal/scoring/heuristic"
	"github.com/fairyhunter13/career-readiness/internal/service/ratelimiter"
	"github.com/fairyhunter13/career-readiness/internal/usecase"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Options select the optional parts of a Container.
type Options struct {
	// Queue connects the producer so triggers are enqueued instead of run inline.
	Queue bool
	// RequireAI fails Build when no completion client can be constructed.
	RequireAI bool
}

// Store is what the pipeline and the sweeper need from an assessment store.
type Store interface {
	domain.AssessmentRepository
	domain.StaleLockLister
}

// Container holds every adapter and service built from one Config. The server,
// the worker and the CLI share it.
type Container struct {
	Cfg config.Config

	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Limiter *ratelimiter.RedisLuaLimiter
	Store   Store
	// Memory is set when the in-process store backs the service.
	Memory   *memory.Store
	Producer *redpanda.Producer
	Tika     *tikaext.Client
	OCR      domain.OCRClient

	AI        domain.AIClient
	Analyzer  *analysis.Analyzer
	Heuristic *heuristic.Scorer
	Validator *scoring.Validator

	Processing *usecase.ProcessingService
	Trigger    usecase.TriggerService
	Status     usecase.StatusService
	Quick      usecase.QuickAnalysisService
	Extraction usecase.ExtractionService
	Resume     usecase.ResumeAnalysisService
	Cleanup    *postgres.CleanupService

	closers []func()
}

// Build connects the configured backends and wires the services. On error,
// everything opened so far is closed.
func Build(ctx context.Context, cfg config.Config, opts Options) (c *Container, err error) {
	c = &Container{Cfg: cfg}
	defer func() {
		if err != nil {
			c.Close()
			c = nil
		}
	}()

	if err := c.buildStore(ctx); err != nil {
		return nil, err
	}
	c.buildLimiter(ctx)

	h, err := heuristic.NewDefaultScorer()
	if err != nil {
		return nil, fmt.Errorf("op=app.build.heuristic: %w", err)
	}
	c.Heuristic = h
	c.Validator = scoring.NewValidator(nil)

	if err := c.buildAI(ctx, opts.RequireAI); err != nil {
		return nil, err
	}
	c.buildExtraction(ctx)

	if opts.Queue && len(cfg.KafkaBrokers) > 0 {
		p, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("op=app.build.producer: %w", err)
		}
		c.Producer = p
		c.closers = append(c.closers, p.Close)
	}

	c.wireServices()
	return c, nil
}

func (c *Container) buildStore(ctx context.Context) error {
	switch c.Cfg.StoreBackend {
	case StoreMemory:
		c.Memory = memory.New()
		c.Store = c.Memory
		slog.Warn("using in-memory assessment store; records do not survive restarts")
		return nil
	case StorePostgres, "":
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", domain.ErrConfig, c.Cfg.StoreBackend)
	}
	pool, err := connectPostgres(ctx, c.Cfg)
	if err != nil {
		return err
	}
	c.Pool = pool
	c.closers = append(c.closers, pool.Close)
	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}
	c.Store = postgres.NewAssessmentRepo(pool)
	c.Cleanup = postgres.NewCleanupService(pool, c.Cfg.BucketRetention)
	return nil
}

// connectPostgres opens the pool and waits for the database to answer, which
// matters when the service starts alongside its database container.
func connectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("%w: db config: %v", domain.ErrConfig, err)
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxElapsedTime = 30 * time.Second
	if cfg.IsTest() {
		expo.MaxElapsedTime = time.Second
	}
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(pctx)
	}
	notify := func(err error, d time.Duration) {
		slog.Warn("database not ready, retrying", slog.Any("error", err), slog.Duration("in", d))
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(expo, ctx), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("op=app.connect_postgres: %w", err)
	}
	return pool, nil
}

// buildLimiter connects Redis for the shared AI token bucket. Rate limiting is
// skipped, with a warning, when Redis is unreachable.
func (c *Container) buildLimiter(ctx context.Context) {
	if c.Cfg.RedisURL == "" || c.Cfg.AIRateLimitPerMin <= 0 {
		return
	}
	opt, err := redis.ParseURL(c.Cfg.RedisURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL, AI rate limiting disabled", slog.Any("error", err))
		return
	}
	rdb := redis.NewClient(opt)
	c.closers = append(c.closers, func() { _ = rdb.Close() })
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		slog.Warn("redis unreachable, AI rate limiting fails open until it recovers", slog.Any("error", err))
	}
	c.Redis = rdb

	key := "ai:" + c.Cfg.Provider()
	c.Limiter = ratelimiter.NewRedisLuaLimiter(rdb, c.Pool, map[string]ratelimiter.BucketConfig{
		key: ratelimiter.NewBucketConfigFromPerMinute(c.Cfg.AIRateLimitPerMin),
	})
	if err := c.Limiter.WarmFromPostgres(ctx); err != nil {
		slog.Warn("rate limit warm-up failed", slog.Any("error", err))
	}
}

func (c *Container) buildAI(ctx context.Context, required bool) error {
	var waiter ai.Waiter
	if c.Limiter != nil {
		waiter = c.Limiter
	}
	client, err := ai.New(ctx, c.Cfg, waiter)
	if err != nil {
		if required || !errors.Is(err, domain.ErrConfig) {
			return fmt.Errorf("op=app.build.ai: %w", err)
		}
		slog.Warn("no AI provider available, analysis limited to heuristics", slog.Any("error", err))
		return nil
	}
	if cl, ok := client.(io.Closer); ok {
		c.closers = append(c.closers, func() { _ = cl.Close() })
	}
	c.AI = client
	c.Analyzer = analysis.New(client, c.Validator, analysis.Options{
		Model:             c.model(),
		ResumeTokenBudget: c.Cfg.PromptResumeTokenBudget,
		MaxTokens:         c.Cfg.AIMaxTokens,
	})
	return nil
}

func (c *Container) model() string {
	if c.Cfg.Provider() == config.ProviderGemini {
		return c.Cfg.GeminiModel
	}
	return c.Cfg.OpenAIModel
}

// buildExtraction wires OCR and the Tika fallback. Without a Vision key, PDFs
// go straight to Tika and images are refused.
func (c *Container) buildExtraction(ctx context.Context) {
	ocr, err := vision.New(ctx, c.Cfg.GoogleVisionAPIKey, c.Cfg.GoogleVisionEndpoint)
	if err != nil {
		slog.Warn("vision OCR disabled", slog.Any("error", err))
	} else {
		c.OCR = ocr
	}
	if c.Cfg.TikaURL != "" {
		c.Tika = tikaext.New(c.Cfg.TikaURL, 0)
	}
}

func (c *Container) wireServices() {
	var (
		analyst      usecase.Analyst
		scoreAnalyst usecase.ScoreAnalyst
		resumer      usecase.ResumeAnalyzer
		fallback     domain.TextExtractor
		queue        domain.Queue
		runner       usecase.Runner
	)
	if c.Analyzer != nil {
		analyst, scoreAnalyst, resumer = c.Analyzer, c.Analyzer, c.Analyzer
	}
	if c.Tika != nil {
		fallback = c.Tika
	}
	if c.Producer != nil {
		queue = c.Producer
	}

	if analyst != nil {
		c.Processing = usecase.NewProcessingService(c.Store, analyst, c.Heuristic, c.Validator, usecase.ProcessingConfigFrom(c.Cfg))
		runner = c.Processing
	}
	c.Trigger = usecase.NewTriggerService(c.Store, queue, runner)
	c.Status = usecase.NewStatusService(c.Store)
	c.Quick = usecase.NewQuickAnalysisService(scoreAnalyst, c.Heuristic, c.Validator)
	c.Extraction = usecase.NewExtractionService(c.OCR, fallback, c.Cfg.MaxUploadBytes())
	c.Resume = usecase.NewResumeAnalysisService(c.Extraction, resumer)
}

// ReadinessChecks returns the /readyz probes for what was built.
func (c *Container) ReadinessChecks() []httpserver.ReadinessCheck {
	var deps Dependencies
	if c.Pool != nil {
		deps.DB = c.Pool
	}
	if c.Redis != nil {
		deps.Redis = c.Redis
	}
	if c.Tika != nil {
		deps.Tika = c.Tika
	}
	if c.Producer != nil {
		deps.Queue = c.Producer
	}
	cfg := c.Cfg
	if c.Producer == nil {
		cfg.KafkaBrokers = nil
	}
	return BuildReadinessChecks(cfg, deps)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
