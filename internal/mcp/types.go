// File: internal/mcp/types.go
package mcp

import (
	"context"
	"errors"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/agent"
)

// TaskRunner runs a whole agent task. It is satisfied by *agent.Agent.
type TaskRunner interface {
	Run(ctx context.Context, task string, shape *schemas.OutputShape) (*agent.Result, error)
}

// RunTaskParams are the arguments of the run_task tool.
type RunTaskParams struct {
	Task string `json:"task"`
	// Shape optionally asks for a structured answer.
	Shape *schemas.OutputShape `json:"shape,omitempty"`
}

// RunTaskResponse is the JSON payload returned by run_task.
type RunTaskResponse struct {
	RunID      string             `json:"run_id"`
	Output     string             `json:"output"`
	Structured map[string]any     `json:"structured,omitempty"`
	Iterations int                `json:"iterations"`
	Completed  bool               `json:"completed"`
	DurationMS int64              `json:"duration_ms"`
	Usage      schemas.TokenUsage `json:"usage"`
}

// ErrNoHuman is returned to the agent when it asks for human input while
// serving MCP. stdin and stdout carry the JSON-RPC stream.
var ErrNoHuman = errors.New("no human is available over MCP")

// UnavailableHuman answers every human tool call with ErrNoHuman.
type UnavailableHuman struct{}

func (UnavailableHuman) Ask(context.Context, string) (string, error) { return "", ErrNoHuman }
