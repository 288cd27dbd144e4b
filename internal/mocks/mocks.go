// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	return m.Called().Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Agent() config.AgentConfig {
	return m.Called().Get(0).(config.AgentConfig)
}

func (m *MockConfig) LLM() config.LLMModelConfig {
	return m.Called().Get(0).(config.LLMModelConfig)
}

func (m *MockConfig) MCP() config.MCPConfig {
	return m.Called().Get(0).(config.MCPConfig)
}

func (m *MockConfig) SetAgentMaxIteration(n int)      { m.Called(n) }
func (m *MockConfig) SetAgentUseVision(b bool)        { m.Called(b) }
func (m *MockConfig) SetAgentInstructions(s []string) { m.Called(s) }
func (m *MockConfig) SetBrowserHeadless(b bool)       { m.Called(b) }

// -- Completion Client Mock --

// MockCompletionClient mocks the schemas.CompletionClient interface.
type MockCompletionClient struct {
	mock.Mock
}

var _ schemas.CompletionClient = (*MockCompletionClient)(nil)

// Complete honours cancellation before consulting the recorded expectations.
func (m *MockCompletionClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.CompletionResponse), args.Error(1)
}

func (m *MockCompletionClient) Close() error { return m.Called().Error(0) }

// -- Browser Session Mock --

// MockBrowserSession mocks the schemas.BrowserSession interface.
type MockBrowserSession struct {
	mock.Mock
}

var _ schemas.BrowserSession = (*MockBrowserSession)(nil)

func NewMockBrowserSession() *MockBrowserSession {
	return &MockBrowserSession{}
}

func (m *MockBrowserSession) ID() string { return m.Called().String(0) }

func (m *MockBrowserSession) ElementByIndex(index int) (schemas.ElementNode, error) {
	args := m.Called(index)
	return args.Get(0).(schemas.ElementNode), args.Error(1)
}

func (m *MockBrowserSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}
func (m *MockBrowserSession) GoBack(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *MockBrowserSession) GoForward(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockBrowserSession) Click(ctx context.Context, loc schemas.Locator) error {
	return m.Called(ctx, loc).Error(0)
}
func (m *MockBrowserSession) Type(ctx context.Context, loc schemas.Locator, text string, clear bool) error {
	return m.Called(ctx, loc, text, clear).Error(0)
}
func (m *MockBrowserSession) PressKeys(ctx context.Context, keys string, times int) error {
	return m.Called(ctx, keys, times).Error(0)
}
func (m *MockBrowserSession) Scroll(ctx context.Context, direction schemas.ScrollDirection, amount int) error {
	return m.Called(ctx, direction, amount).Error(0)
}

func (m *MockBrowserSession) ScrollPosition(ctx context.Context) (schemas.ScrollPosition, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.ScrollPosition), args.Error(1)
}

func (m *MockBrowserSession) SelectOptions(ctx context.Context, loc schemas.Locator, labels []string) error {
	return m.Called(ctx, loc, labels).Error(0)
}
func (m *MockBrowserSession) UploadFiles(ctx context.Context, loc schemas.Locator, paths []string) error {
	return m.Called(ctx, loc, paths).Error(0)
}
func (m *MockBrowserSession) PageHTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserSession) OpenTab(ctx context.Context) error  { return m.Called(ctx).Error(0) }
func (m *MockBrowserSession) CloseTab(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockBrowserSession) SwitchTab(ctx context.Context, index int) error {
	return m.Called(ctx, index).Error(0)
}

func (m *MockBrowserSession) Tabs(ctx context.Context) ([]schemas.TabInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.TabInfo), args.Error(1)
}

func (m *MockBrowserSession) CurrentTab(ctx context.Context) (schemas.TabInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.TabInfo), args.Error(1)
}

func (m *MockBrowserSession) Observe(ctx context.Context, vision bool) (*schemas.PageState, error) {
	args := m.Called(ctx, vision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PageState), args.Error(1)
}

func (m *MockBrowserSession) DownloadsDir() string { return m.Called().String(0) }
func (m *MockBrowserSession) UploadsDir() string   { return m.Called().String(0) }

func (m *MockBrowserSession) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Session Factory Mock --

// MockSessionFactory mocks the schemas.SessionFactory interface.
type MockSessionFactory struct {
	mock.Mock
}

func (m *MockSessionFactory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.BrowserSession), args.Error(1)
}

// -- Memory Store Mock --

// MockMemoryStore mocks the schemas.MemoryStore interface.
type MockMemoryStore struct {
	mock.Mock
}

var _ schemas.MemoryStore = (*MockMemoryStore)(nil)

func (m *MockMemoryStore) Recall(ctx context.Context, task string, limit int) ([]string, error) {
	args := m.Called(ctx, task, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMemoryStore) Remember(ctx context.Context, rec schemas.RunRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockMemoryStore) Close() { m.Called() }
