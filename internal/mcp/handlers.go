package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/browser/dom"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

const (
	toolObserve = "observe"
	toolRunTask = "run_task"
)

// Tools that make no sense outside the agent loop. done only ends a run and
// human would read from the same stdin the transport uses.
var skippedTools = map[string]bool{
	tools.NameDone:  true,
	tools.NameHuman: true,
}

func (s *Server) registerAllTools() error {
	for _, t := range s.registry.Tools() {
		if skippedTools[t.Name] {
			continue
		}
		if err := s.registerTool(t.Name, t.Description, t.Schema.JSONSchema(), s.catalogHandler(t)); err != nil {
			return err
		}
	}

	observeSchema := map[string]any{"type": "object", "properties": map[string]any{}}
	if err := s.registerTool(toolObserve,
		"Snapshot the active tab and list its interactive and informative elements with their indices.",
		observeSchema, s.handleObserve); err != nil {
		return err
	}

	if s.runner == nil {
		return nil
	}
	runSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{"type": "string", "description": "The task for the agent, in plain language."},
			"shape": map[string]any{
				"type":        "object",
				"description": "Optional output shape with name, description and a JSON schema.",
			},
		},
		"required": []string{"task"},
	}
	return s.registerTool(toolRunTask,
		"Run the browser agent on a task until it answers or runs out of steps.",
		runSchema, s.handleRunTask)
}

// catalogHandler adapts a registry tool. Tool failures come back as error
// results, never as protocol errors.
func (s *Server) catalogHandler(t *tools.Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var session schemas.BrowserSession
		if t.NeedsSession {
			var err error
			if session, err = s.sessionFor(ctx); err != nil {
				s.logger.Error("Could not open browser session.", zap.String("tool", t.Name), zap.Error(err))
				return textResult(fmt.Sprintf("failed to open browser session: %v", err), true), nil
			}
		}
		result := s.registry.Execute(ctx, t.Name, request.GetArguments(), session)
		return textResult(result.Content, result.Failed), nil
	}
}

func (s *Server) handleObserve(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := s.sessionFor(ctx)
	if err != nil {
		return textResult(fmt.Sprintf("failed to open browser session: %v", err), true), nil
	}
	page, err := session.Observe(ctx, s.vision)
	if err != nil {
		return textResult(fmt.Sprintf("failed to observe page: %v", err), true), nil
	}

	result := textResult(renderPage(page), false)
	if len(page.Screenshot) > 0 {
		result.Content = append(result.Content,
			mcp.NewImageContent(base64.StdEncoding.EncodeToString(page.Screenshot), "image/jpeg"))
	}
	return result, nil
}

func (s *Server) handleRunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return textResult(fmt.Sprintf("invalid arguments: %v", err), true), nil
	}
	var params RunTaskParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return textResult(fmt.Sprintf("invalid arguments: %v", err), true), nil
	}
	if strings.TrimSpace(params.Task) == "" {
		return textResult("task is required", true), nil
	}

	res, err := s.runner.Run(ctx, params.Task, params.Shape)
	if err != nil {
		s.logger.Error("Agent run failed.", zap.Error(err))
		return textResult(fmt.Sprintf("agent run failed: %v", err), true), nil
	}

	body, err := json.Marshal(RunTaskResponse{
		RunID:      res.RunID,
		Output:     res.Output,
		Structured: res.Structured,
		Iterations: res.Iterations,
		Completed:  res.Completed,
		DurationMS: res.Duration.Milliseconds(),
		Usage:      res.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding run result: %w", err)
	}
	return textResult(string(body), false), nil
}

func renderPage(page *schemas.PageState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Tab: %s\nOpen Tabs:\n", page.CurrentTab)
	for _, tab := range page.Tabs {
		b.WriteString(tab.String())
		b.WriteByte('\n')
	}
	b.WriteString("Interactive Elements:\n")
	if len(page.Interactive) == 0 {
		b.WriteString("No interactive elements found.\n")
	} else {
		b.WriteString(dom.InteractiveListing(page.Interactive))
		b.WriteByte('\n')
	}
	b.WriteString("Informative Elements:\n")
	if len(page.Informative) == 0 {
		b.WriteString("No informative elements found.")
	} else {
		b.WriteString(dom.InformativeListing(page.Informative))
	}
	return b.String()
}
