package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
	"github.com/tanmaysk001/Browser-Agent/internal/mocks"
	"github.com/tanmaysk001/Browser-Agent/internal/store"
)

// mockManager is a mock implementation of SessionManager.
type mockManager struct {
	mock.Mock
}

func (m *mockManager) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.BrowserSession), args.Error(1)
}

func (m *mockManager) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type stubHuman struct{}

func (stubHuman) Ask(context.Context, string) (string, error) { return "", nil }

type factoryFixture struct {
	factory *concreteFactory
	manager *mockManager
	client  *mocks.MockCompletionClient
	pool    pgxmock.PgxPoolIface
}

func newFactoryFixture(t *testing.T) *factoryFixture {
	t.Helper()
	fx := &factoryFixture{
		manager: new(mockManager),
		client:  new(mocks.MockCompletionClient),
	}
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	fx.pool = pool

	fx.factory = &concreteFactory{
		human: stubHuman{},
		newPool: func(context.Context, string, *zap.Logger) (DBPool, error) {
			return fx.pool, nil
		},
		newLLM: func(context.Context, config.LLMModelConfig, *zap.Logger) (schemas.CompletionClient, error) {
			return fx.client, nil
		},
		newBrowser: func(config.BrowserConfig, *zap.Logger) (SessionManager, error) {
			return fx.manager, nil
		},
	}
	return fx
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("without long-term memory", func(t *testing.T) {
		fx := newFactoryFixture(t)
		cfg := config.NewDefaultConfig()

		c, err := fx.factory.Create(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, c.Agent)
		assert.NotNil(t, c.Registry)
		assert.Nil(t, c.Memory)
		assert.Nil(t, c.DBPool)
		assert.Same(t, fx.client, c.LLMClient)

		fx.manager.On("Shutdown", mock.Anything).Return(nil).Once()
		fx.client.On("Close").Return(nil).Once()
		c.Shutdown()
		fx.manager.AssertExpectations(t)
		fx.client.AssertExpectations(t)
	})

	t.Run("with in-memory notes", func(t *testing.T) {
		fx := newFactoryFixture(t)
		cfg := config.NewDefaultConfig()
		cfg.AgentCfg.Memory.Type = config.MemoryInMemory

		c, err := fx.factory.Create(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &store.InMemory{}, c.Memory)
		assert.Nil(t, c.DBPool)
	})

	t.Run("with PostgreSQL notes", func(t *testing.T) {
		fx := newFactoryFixture(t)
		cfg := config.NewDefaultConfig()
		cfg.AgentCfg.Memory.Type = config.MemoryPostgres
		cfg.DatabaseCfg.URL = "postgres://agent@localhost/agent"

		fx.pool.ExpectPing()
		fx.pool.ExpectExec("CREATE TABLE IF NOT EXISTS agent_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		fx.pool.ExpectExec("CREATE TABLE IF NOT EXISTS agent_notes").WillReturnResult(pgxmock.NewResult("CREATE", 0))

		c, err := fx.factory.Create(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &store.Store{}, c.Memory)
		assert.Same(t, fx.pool, c.DBPool)
		assert.NoError(t, fx.pool.ExpectationsWereMet())
	})
}

func TestCreate_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingDBURL", func(t *testing.T) {
		fx := newFactoryFixture(t)
		cfg := config.NewDefaultConfig()
		cfg.AgentCfg.Memory.Type = config.MemoryPostgres
		cfg.DatabaseCfg.URL = ""

		_, err := fx.factory.Create(ctx, cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database URL is not configured")
		fx.manager.AssertNotCalled(t, "Shutdown", mock.Anything)
	})

	t.Run("UnknownMemoryType", func(t *testing.T) {
		fx := newFactoryFixture(t)
		cfg := config.NewDefaultConfig()
		cfg.AgentCfg.Memory.Type = "redis"

		_, err := fx.factory.Create(ctx, cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize memory store")
	})

	t.Run("LLMFailureShutsDownBrowser", func(t *testing.T) {
		fx := newFactoryFixture(t)
		fx.factory.newLLM = func(context.Context, config.LLMModelConfig, *zap.Logger) (schemas.CompletionClient, error) {
			return nil, errors.New("failed to initialize LLM client: no api key")
		}
		fx.manager.On("Shutdown", mock.Anything).Return(nil).Once()

		_, err := fx.factory.Create(ctx, config.NewDefaultConfig(), zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no api key")
		fx.manager.AssertExpectations(t)
	})
}

func TestNewComponentFactory(t *testing.T) {
	f, ok := NewComponentFactory(nil).(*concreteFactory)
	require.True(t, ok)
	assert.NotNil(t, f.human, "defaults to the console")
	assert.NotNil(t, f.newPool)
	assert.NotNil(t, f.newLLM)
	assert.NotNil(t, f.newBrowser)
}
