package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/nftminter/internal/chain"
	"github.com/osvaldoandrade/nftminter/internal/controllers"
	"github.com/osvaldoandrade/nftminter/internal/metrics"
	"github.com/osvaldoandrade/nftminter/internal/middleware"
	"github.com/osvaldoandrade/nftminter/internal/providers"
	"github.com/osvaldoandrade/nftminter/internal/ratelimit"
	"github.com/osvaldoandrade/nftminter/internal/services"
	"github.com/osvaldoandrade/nftminter/internal/tracing"
	"github.com/osvaldoandrade/nftminter/pkg/auth"
	"github.com/osvaldoandrade/nftminter/pkg/config"
	"github.com/osvaldoandrade/nftminter/pkg/persistence"
	_ "github.com/osvaldoandrade/nftminter/pkg/persistence/memory"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const (
	ServiceName = "nftminter"
	Version     = "1.0.0"
)

// ChainClient is the on-chain side of the service: minting plus token reads.
type ChainClient interface {
	services.Minter
	controllers.TokenReader
}

type Application struct {
	Config      *config.Config
	Engine      *gin.Engine
	Logger      *slog.Logger
	Redis       *redis.Client
	RateLimiter ratelimit.Limiter

	Store      providers.ArtifactStore
	Model      providers.ImageModel
	Pinning    providers.PinningProvider
	Chain      ChainClient
	Generation services.GenerationService
	Storage    services.StorageService
	Pipeline   services.PipelineService

	Persistence   persistence.PluginPersistence
	MintValidator auth.Validator

	TracingShutdown func(context.Context) error

	now func() time.Time
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithImageModel replaces the generator built from config.
func WithImageModel(model providers.ImageModel) ApplicationOption {
	return func(app *Application) error {
		app.Model = model
		return nil
	}
}

// WithPinning replaces the Pinata client built from config.
func WithPinning(pinning providers.PinningProvider) ApplicationOption {
	return func(app *Application) error {
		app.Pinning = pinning
		return nil
	}
}

// WithChain replaces the go-ethereum minter built from config.
func WithChain(client ChainClient) ApplicationOption {
	return func(app *Application) error {
		app.Chain = client
		return nil
	}
}

// WithMintValidator sets a custom validator for the mint routes
func WithMintValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.MintValidator = validator
		return nil
	}
}

func WithClock(now func() time.Time) ApplicationOption {
	return func(app *Application) error {
		app.now = now
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	app := &Application{Config: cfg, Logger: logger, now: time.Now}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
		SampleRatio:  cfg.TraceSampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	app.Redis = providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
	app.RateLimiter = ratelimit.NewTokenBucketLimiter(app.Redis, ratelimit.Policy{
		ratelimit.ScopeGenerate: ratelimit.Bucket(cfg.RateLimit.Generate),
		ratelimit.ScopeMint:     ratelimit.Bucket(cfg.RateLimit.Mint),
	})

	store, err := providers.NewLocalArtifactStore(cfg.ImagesDir(), cfg.MetadataDir())
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	app.Store = store

	if err := app.buildProviders(); err != nil {
		return nil, err
	}

	app.Persistence, err = persistence.NewPersistence(
		persistence.ProviderConfig{Type: "memory"},
		persistence.PluginConfig{Retention: time.Duration(cfg.RunRetentionSeconds) * time.Second, Now: app.now},
	)
	if err != nil {
		return nil, fmt.Errorf("run storage: %w", err)
	}
	metrics.RegisterRunsCollector(app.Persistence.RunStorage(), app.Redis, logger)

	if app.Model != nil {
		app.Generation = services.NewGenerationService(app.Model, store, services.GenerationConfig{
			Provider:         cfg.GenerationProvider,
			MinPromptLength:  cfg.MinPromptLength,
			BatchMaxPrompts:  cfg.BatchMaxPrompts,
			BatchConcurrency: cfg.BatchConcurrency,
		}, logger, app.now)
	}
	if app.Pinning != nil {
		app.Storage = services.NewStorageService(app.Pinning, store, logger)
	}
	if app.Generation != nil && app.Storage != nil && app.Chain != nil {
		app.Pipeline = services.NewPipelineService(app.Generation, app.Storage, app.Chain, app.Persistence.RunStorage(), logger, app.now)
	}

	if app.MintValidator == nil {
		validator, err := auth.NewMintValidator(cfg.MintAuthProvider, cfg.MintAuthConfig)
		if err != nil {
			return nil, err
		}
		app.MintValidator = validator
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:   []string{middleware.RequestIDHeader, "X-Trace-Id", "Retry-After"},
			MaxAge:          12 * time.Hour,
		}),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(ServiceName),
	)
	app.Engine = engine

	logger.Info("application ready",
		"generation", app.Generation != nil,
		"storage", app.Storage != nil,
		"chain", app.Chain != nil,
		"mintAuth", app.MintValidator != nil,
		"redis", app.Redis != nil,
	)
	return app, nil
}

// buildProviders fills in whichever external clients were not injected. A provider that is not
// configured stays nil and its routes answer 503.
func (app *Application) buildProviders() error {
	cfg := app.Config
	if app.Model == nil && cfg.GenerationConfigured() {
		var (
			model providers.ImageModel
			err   error
		)
		switch cfg.GenerationProvider {
		case "openai":
			model, err = providers.NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
		default:
			model, err = providers.NewGeminiModel(context.Background(), cfg.GoogleAPIKey, cfg.GeminiModel)
		}
		if err != nil {
			return fmt.Errorf("image model: %w", err)
		}
		app.Model = model
	}

	if app.Pinning == nil && cfg.StorageConfigured() {
		pinning, err := providers.NewPinataProvider(providers.PinataConfig{
			JWT:        cfg.PinataJWT,
			BaseURL:    cfg.PinataBaseURL,
			GatewayURL: cfg.PinataGatewayURL,
			Timeout:    time.Duration(cfg.PinataTimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("pinata: %w", err)
		}
		app.Pinning = pinning
	}

	if app.Chain == nil && cfg.ChainConfigured() {
		networks := make(map[string]chain.Network, len(cfg.Networks))
		for name, n := range cfg.Networks {
			networks[name] = chain.Network{RPCURL: n.RPCURL, ChainID: n.ChainID}
		}
		var opts []chain.Option
		if app.Redis != nil {
			opts = append(opts, chain.WithNonceLocker(chain.NewRedisNonceLocker(app.Redis, 2*time.Minute)))
		}
		minter, err := chain.NewMinter(chain.Config{
			PrivateKey:         cfg.PrivateKey,
			ContractAddress:    cfg.ContractAddress,
			DefaultNetwork:     cfg.DefaultNetwork,
			Networks:           networks,
			GasHeadroomPercent: cfg.GasHeadroomPercent,
			ReceiptTimeout:     time.Duration(cfg.ReceiptTimeoutSeconds) * time.Second,
		}, app.Logger, opts...)
		if err != nil {
			return fmt.Errorf("minter: %w", err)
		}
		app.Chain = minter
	}
	return nil
}

// Close releases chain connections, redis and run storage.
func (app *Application) Close() {
	if c, ok := app.Chain.(interface{ Close() }); ok {
		c.Close()
	}
	if app.Persistence != nil {
		_ = app.Persistence.Close()
	}
	if app.Redis != nil {
		_ = app.Redis.Close()
	}
}

func (app *Application) modelName() string {
	switch app.Config.GenerationProvider {
	case "openai":
		return app.Config.OpenAIModel
	default:
		return app.Config.GeminiModel
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", ServiceName, "env", cfg.Env)
}
