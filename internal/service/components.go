// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/agent"
	"github.com/tanmaysk001/Browser-Agent/internal/store"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

const shutdownTimeout = 30 * time.Second

// DBPool is the subset of pgxpool.Pool the components own.
type DBPool interface {
	store.DBPool
	Close()
}

// SessionManager hands out browser sessions and owns the browser process.
type SessionManager interface {
	schemas.SessionFactory
	Shutdown(ctx context.Context) error
}

// Components holds everything a command needs to run the agent.
// This struct centralizes the lifecycle management of those dependencies.
type Components struct {
	DBPool         DBPool
	Memory         schemas.MemoryStore
	BrowserManager SessionManager
	LLMClient      schemas.CompletionClient
	Registry       *tools.Registry
	Agent          *agent.Agent

	logger *zap.Logger
}

// Shutdown gracefully closes all components, ensuring resources are released in the correct order.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Browsers first; they may still be finishing a tool call.
	if c.BrowserManager != nil {
		// Use a separate context so shutdown completes even if the main context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := c.BrowserManager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	// 2. Completion client.
	if c.LLMClient != nil {
		if err := c.LLMClient.Close(); err != nil {
			logger.Warn("Error closing completion client.", zap.Error(err))
		}
	}

	// 3. Memory store, then the pool underneath it.
	if c.Memory != nil {
		c.Memory.Close()
	}
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down successfully.")
}
