// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/agent"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
	"github.com/tanmaysk001/Browser-Agent/internal/network"
	"github.com/tanmaysk001/Browser-Agent/internal/store"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

// ComponentFactory creates the set of components needed to run the agent.
// This abstraction is the key to making the commands testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
// The constructors are fields so tests can replace the ones that reach
// outside the process.
type concreteFactory struct {
	human      tools.HumanIO
	newPool    func(ctx context.Context, url string, logger *zap.Logger) (DBPool, error)
	newLLM     func(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.CompletionClient, error)
	newBrowser func(cfg config.BrowserConfig, logger *zap.Logger) (SessionManager, error)
}

// NewComponentFactory creates a new production-ready component factory.
// human answers the human tool; nil means the console.
func NewComponentFactory(human tools.HumanIO) ComponentFactory {
	if human == nil {
		human = tools.NewConsoleHuman()
	}
	return &concreteFactory{
		human:      human,
		newPool:    InitializeDBPool,
		newLLM:     InitializeLLMClient,
		newBrowser: InitializeBrowserManager,
	}
}

// Create handles the full dependency injection and initialization of components.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Database pool, only when memory lives in PostgreSQL.
	memCfg := cfg.Agent().Memory
	if memCfg.Type == config.MemoryPostgres {
		if cfg.Database().URL == "" {
			initializationErr = fmt.Errorf("database URL is not configured (hint: check BROWSER_AGENT_DATABASE_URL)")
			return nil, initializationErr
		}
		pool, err := f.newPool(ctx, cfg.Database().URL, logger)
		if err != nil {
			initializationErr = err
			return nil, initializationErr
		}
		components.DBPool = pool
	}

	// 2. Long-term memory
	var pool store.DBPool
	if components.DBPool != nil {
		pool = components.DBPool
	}
	memory, err := store.NewFromConfig(ctx, memCfg, pool, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize memory store: %w", err)
		return nil, initializationErr
	}
	components.Memory = memory
	logger.Debug("Memory store initialized.", zap.String("type", memCfg.Type))

	// 3. Browser manager
	manager, err := f.newBrowser(cfg.Browser(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.BrowserManager = manager
	logger.Debug("Browser manager initialized.")

	// 4. Completion client
	client, err := f.newLLM(ctx, cfg.LLM(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.LLMClient = client
	logger.Debug("Completion client initialized.", zap.String("model", cfg.LLM().Model))

	// 5. Tools
	registry, err := tools.NewDefaultRegistry(tools.Deps{
		Logger:     logger,
		Human:      f.human,
		HTTPClient: network.NewClient(network.ClientConfigFromBrowser(cfg.Browser(), logger)),
	})
	if err != nil {
		initializationErr = fmt.Errorf("failed to build tool registry: %w", err)
		return nil, initializationErr
	}
	components.Registry = registry

	// 6. Agent
	agentCfg := cfg.Agent()
	a, err := agent.New(agent.Options{
		Client:       client,
		Sessions:     manager,
		Registry:     registry,
		Memory:       memory,
		RecallLimit:  memCfg.RecallLimit,
		MaxIteration: agentCfg.MaxIteration,
		UseVision:    agentCfg.UseVision,
		Instructions: agentCfg.Instructions,
		DownloadsDir: cfg.Browser().DownloadsDir,
		Logger:       logger,
	})
	if err != nil {
		initializationErr = fmt.Errorf("failed to create agent: %w", err)
		return nil, initializationErr
	}
	components.Agent = a

	logger.Info("All components initialized successfully.")
	return components, nil
}
