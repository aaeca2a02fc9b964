package bootstrap

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"advisor/internal/adapters/ai"
	"advisor/internal/adapters/config"
	errnoop "advisor/internal/adapters/errors/noop"
	"advisor/internal/adapters/errors/sentry"
	"advisor/internal/adapters/kafka"
	redisclient "advisor/internal/adapters/redis"
	"advisor/internal/adapters/tavily"
	"advisor/internal/agents"
	"advisor/internal/api"
	"advisor/internal/api/health"
	"advisor/internal/guardrail"
	"advisor/internal/metrics"
	"advisor/internal/tools"
	"advisor/internal/tools/shared"
	"advisor/internal/tracking"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
	"advisor/pkg/templates"
)

const searchCachePrefix = "advisor:search:"

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
	c.Lifecycle = NewLifecycle(cfg.HTTP.ShutdownTimeout)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the optional search cache
func (c *Container) MustInitInfrastructure() {
	c.Redis = provideRedis(c.Context, c.Config, c.Log)
}

// ========================================
// Phase 3: External Adapters
// ========================================

// MustInitAdapters initializes the LLM providers, Tavily and Kafka
func (c *Container) MustInitAdapters() {
	var err error

	c.Adapters.AIProviders, err = ai.BuildRegistry(c.Config)
	if err != nil {
		c.Log.Fatalf("failed to build LLM providers: %v", err)
	}
	c.Log.Infow("✓ LLM providers registered", "providers", c.Adapters.AIProviders.List())

	c.Adapters.Tavily = provideTavily(c.Config, c.Redis, c.Log)

	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	} else {
		c.Log.Info("Kafka brokers not configured, run tracking disabled")
	}
}

// ========================================
// Phase 4: Business Logic
// ========================================

// MustInitBusiness builds the crew, its tools and the guardrail
func (c *Container) MustInitBusiness() {
	var err error

	c.Business.CrewConfig, err = agents.LoadCrewConfig(c.Config.Crew.ParamsPath)
	if err != nil {
		c.Log.Fatalf("failed to load crew config: %v", err)
	}

	c.Business.ToolRegistry = provideToolRegistry(c.Adapters.Tavily, c.Business.CrewConfig.Params, c.Log)

	c.Business.Models, err = ai.NewModels(c.Context, c.Adapters.AIProviders, c.Config.AI)
	if err != nil {
		c.Log.Fatalf("failed to create models: %v", err)
	}
	c.Log.Infow("✓ Models ready",
		"provider", c.Business.Models.Provider,
		"pro", c.Config.AI.ProModel,
		"flash", c.Config.AI.FlashModel,
	)
	for _, name := range []string{c.Config.AI.ProModel, c.Config.AI.FlashModel} {
		info, err := c.Adapters.AIProviders.ResolveModel(c.Context, c.Business.Models.Provider.String(), name)
		if err != nil {
			c.Log.Warnw("No metadata for model, limits unknown", "model", name, "error", err)
			continue
		}
		c.Log.Debugw("Model metadata", "model", info.Name, "tier", info.Tier, "max_tokens", info.MaxTokens, "tools", info.SupportsTools)
	}

	c.Business.AgentFactory, err = agents.NewFactory(agents.FactoryDeps{
		Models:    c.Business.Models,
		Tools:     c.Business.ToolRegistry,
		Templates: provideTemplates(c.Config, c.Log),
		Config:    c.Business.CrewConfig,
	})
	if err != nil {
		c.Log.Fatalf("failed to create agent factory: %v", err)
	}
	c.Business.Runner = agents.NewRunner(c.Business.AgentFactory)

	c.Business.Guardrail = guardrail.New(c.Business.CrewConfig.Params.Guardrails)

	var publisher tracking.Publisher
	if c.Adapters.KafkaProducer != nil {
		publisher = c.Adapters.KafkaProducer
	}
	c.Business.RunTracker = tracking.NewTracker(publisher, c.Config.Kafka.RunTopic).
		WithPublishTimeout(c.Config.Kafka.PublishTimeout)

	c.Log.Infow("✓ Crew initialized",
		"tasks", len(c.Business.CrewConfig.Tasks),
		"tools", c.Business.ToolRegistry.List(),
		"guardrail_keywords", len(c.Business.Guardrail.Keywords()),
		"tracking", c.Business.RunTracker.Enabled(),
	)
}

// ========================================
// Phase 5: Application Layer
// ========================================

// MustInitApplication builds the HTTP server
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	if c.Redis != nil {
		c.Application.HealthHandler.AddCheck("redis", c.Redis)
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.HTTP.Port,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
		ReadTimeout: c.Config.HTTP.ReadTimeout,
		CrewTimeout: c.Config.Crew.Timeout,
	}, api.Deps{
		Crew:      c.Business.Runner,
		Guardrail: c.Business.Guardrail,
		Tracker:   c.Business.RunTracker,
		Health:    c.Application.HealthHandler,
	}, c.Log)
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// provideRedis connects the search cache. The cache is optional, so a failed
// connection is logged and the service runs uncached.
func provideRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redisclient.Client {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured, search cache disabled")
		return nil
	}

	log.Info("Connecting to Redis...")
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := redisclient.NewClient(pingCtx, cfg.Redis, searchCachePrefix)
	if err != nil {
		log.Warnw("Redis unavailable, search cache disabled", "error", err)
		return nil
	}

	if err := prometheus.Register(metrics.NewCacheCollector(client.Client())); err != nil {
		log.Warnw("Failed to register cache collector", "error", err)
	}
	log.Info("✓ Redis connected")
	return client
}

func provideTavily(cfg *config.Config, cache *redisclient.Client, log *logger.Logger) *tavily.Client {
	if cfg.Tavily.APIKey == "" {
		log.Warn("TAVILY_API_KEY not set, web tools disabled")
		return nil
	}

	var opts []tavily.Option
	if cache != nil {
		opts = append(opts, tavily.WithCache(cache))
	}

	log.Infow("✓ Tavily client initialized",
		"requests_per_minute", cfg.Tavily.RequestsPerMinute,
		"cached", cache != nil,
	)
	return tavily.NewClient(cfg.Tavily, opts...)
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.RunTopic)
	return producer
}

// ProvideRunConsumer creates the consumer that tails crew run events
func ProvideRunConsumer(cfg *config.Config, log *logger.Logger) (*kafka.Consumer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, errors.Wrap(errors.ErrUnavailable, "KAFKA_BROKERS not configured")
	}

	log.Infow("Initializing Kafka consumer", "topic", cfg.Kafka.RunTopic)
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: kafka.GroupRunWatcher,
		Topic:   cfg.Kafka.RunTopic,
	}), nil
}

// provideTemplates returns nil to select the embedded templates
func provideTemplates(cfg *config.Config, log *logger.Logger) *templates.Registry {
	if cfg.Crew.TemplatesPath == "" {
		return nil
	}

	reg, err := templates.NewRegistry(cfg.Crew.TemplatesPath)
	if err != nil {
		log.Fatalf("failed to load templates from %s: %v", cfg.Crew.TemplatesPath, err)
	}
	log.Infow("✓ Templates loaded", "path", cfg.Crew.TemplatesPath, "templates", reg.List())
	return reg
}

func provideToolRegistry(web *tavily.Client, params agents.Params, log *logger.Logger) *tools.Registry {
	deps := shared.Deps{
		SearchMaxResults: params.SearchMaxResults(),
		Log:              log,
	}
	// A nil *tavily.Client must stay a nil interface
	if web != nil {
		deps.Web = web
	}

	registry := tools.NewRegistry()
	tools.RegisterAllTools(registry, deps)

	names := registry.List()
	display := make([]string, 0, len(names))
	for _, name := range names {
		if def, ok := tools.LookupDefinition(name); ok {
			display = append(display, def.DisplayName)
		}
	}
	log.Infow("✓ Tools registered", "tools", names, "display_names", display)
	return registry
}
