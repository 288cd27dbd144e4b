// File: internal/mcp/server.go
package mcp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sessionCloseTimeout = 30 * time.Second

// Server exposes the browser tool catalog, and optionally whole agent runs,
// to MCP clients. Tool calls share one browser session that is opened on the
// first call that needs it.
type Server struct {
	cfg      config.MCPConfig
	logger   *zap.Logger
	registry *tools.Registry
	sessions schemas.SessionFactory
	runner   TaskRunner
	vision   bool

	mu      sync.Mutex
	session schemas.BrowserSession

	tools     map[string]mcpserver.ToolHandlerFunc
	mcpServer *mcpserver.MCPServer
}

// Options configures a Server. Runner is optional; without it run_task is
// not offered.
type Options struct {
	Registry  *tools.Registry
	Sessions  schemas.SessionFactory
	Runner    TaskRunner
	UseVision bool
	Logger    *zap.Logger
}

// NewServer constructs the MCP server and registers all tools.
func NewServer(cfg config.MCPConfig, opts Options) (*Server, error) {
	if opts.Registry == nil || opts.Sessions == nil {
		return nil, fmt.Errorf("MCP server requires a tool registry and a session factory")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		logger:   opts.Logger.Named("mcp"),
		registry: opts.Registry,
		sessions: opts.Sessions,
		runner:   opts.Runner,
		vision:   opts.UseVision,
		tools:    make(map[string]mcpserver.ToolHandlerFunc),
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithLogging(),
			mcpserver.WithRecovery(),
		),
	}
	if err := s.registerAllTools(); err != nil {
		return nil, err
	}
	s.logger.Info("MCP server created.", zap.String("name", cfg.Name), zap.Int("tools", len(s.tools)))
	return s, nil
}

// Start serves MCP over stdin and stdout until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ExecuteTool invokes a registered tool directly.
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	handler, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return handler(ctx, req)
}

// ToolNames lists the registered tool names.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	return names
}

// Close releases the shared browser session.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()
	if session == nil {
		return nil
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()
	return session.Close(closeCtx)
}

func (s *Server) registerTool(name, description string, schema map[string]any, handler mcpserver.ToolHandlerFunc) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding input schema for %s: %w", name, err)
	}
	s.tools[name] = handler
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, description, raw), handler)
	return nil
}

// sessionFor returns the shared session, opening it on first use.
func (s *Server) sessionFor(ctx context.Context) (schemas.BrowserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session, nil
	}
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	s.session = session
	s.logger.Info("Browser session opened for MCP clients.", zap.String("session_id", session.ID()))
	return session, nil
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
		IsError: isError,
	}
}
