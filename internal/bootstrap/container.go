package bootstrap

import (
	"context"
	"sync"
	"time"

	"advisor/internal/adapters/ai"
	"advisor/internal/adapters/config"
	"advisor/internal/adapters/kafka"
	redisclient "advisor/internal/adapters/redis"
	"advisor/internal/adapters/tavily"
	"advisor/internal/agents"
	"advisor/internal/api"
	"advisor/internal/api/health"
	"advisor/internal/guardrail"
	"advisor/internal/tools"
	"advisor/internal/tracking"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (optional search cache)
	Redis *redisclient.Client

	// External Adapters
	Adapters *Adapters

	// Business Logic
	Business *Business

	// Application Layer
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Adapters groups all external adapters
type Adapters struct {
	AIProviders   *ai.ProviderRegistry
	Tavily        *tavily.Client // nil without TAVILY_API_KEY
	KafkaProducer *kafka.Producer
}

// Business groups business logic components
type Business struct {
	CrewConfig   *agents.CrewConfig
	ToolRegistry *tools.Registry
	Models       *ai.Models
	AgentFactory *agents.Factory
	Runner       *agents.Runner
	Guardrail    *guardrail.Guardrail
	RunTracker   *tracking.Tracker
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Adapters:    &Adapters{},
		Business:    &Business{},
		Application: &Application{},
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes everything a crew run needs.
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitAdapters()
	c.MustInitBusiness()
}

// Start starts the HTTP server in the background
func (c *Container) Start() error {
	if c.Application.HTTPServer == nil {
		return errors.Wrap(errors.ErrInvalidInput, "application layer not initialized")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Ask screens query with the guardrail and runs the crew once under the crew timeout
func (c *Container) Ask(ctx context.Context, query string) (*agents.CrewOutput, error) {
	inputs := map[string]string{guardrail.QueryKey: query}
	if err := c.Business.Guardrail.Check(inputs); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.Config.Crew.Timeout)
	defer cancel()
	return c.Business.Runner.Kickoff(ctx, inputs)
}

// TrackRun publishes the outcome of a run started outside the HTTP handler
func (c *Container) TrackRun(ctx context.Context, requestID, query string, elapsed time.Duration, out *agents.CrewOutput, err error) {
	c.Business.RunTracker.TrackRun(ctx, tracking.NewRunEvent(requestID, query, tracking.StatusOf(err), elapsed, out, err))
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	lifecycle := c.Lifecycle
	if lifecycle == nil {
		lifecycle = NewLifecycle(0)
	}
	lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Business.RunTracker,
		c.Adapters.KafkaProducer,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
