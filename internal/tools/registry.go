// internal/tools/registry.go
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// InvalidActionName labels the result when the model produced no action name.
const InvalidActionName = "Invalid Action"

// Handler runs a tool. session is nil for tools that do not need one.
type Handler func(ctx context.Context, args Args, session schemas.BrowserSession) (string, error)

// Tool is one entry of the static catalog.
type Tool struct {
	Name        string
	Description string
	Kind        schemas.ActionKind
	Schema      Schema
	// NeedsSession injects the browser session into the handler.
	NeedsSession bool
	// Aliases are alternative names the model may use.
	Aliases []string
	Handler Handler
}

// ToolResult is the outcome of Execute. Failures are reported in Content,
// never as a Go error.
type ToolResult struct {
	Name    string
	Content string
	Failed  bool
	Code    schemas.ErrorCode
}

// Registry maps tool names to their schema and handler. It is built once and
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	logger *zap.Logger
	tools  []*Tool
	byName map[string]*Tool
}

// NewRegistry builds a registry. Duplicate names or aliases are rejected.
func NewRegistry(logger *zap.Logger, tools ...*Tool) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		logger: logger.Named("tool_registry"),
		byName: make(map[string]*Tool, len(tools)),
	}
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			return nil, fmt.Errorf("tool %q must have a name and a handler", t.Name)
		}
		for _, name := range append([]string{t.Name}, t.Aliases...) {
			if _, dup := r.byName[name]; dup {
				return nil, fmt.Errorf("duplicate tool name %q", name)
			}
			r.byName[name] = t
		}
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Lookup returns the tool registered under name or one of its aliases.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[strings.TrimSpace(name)]
	return t, ok
}

// Kind returns the action kind of name. Unknown names are environment actions,
// so the loop re-observes after reporting the failure.
func (r *Registry) Kind(name string) schemas.ActionKind {
	if t, ok := r.Lookup(name); ok {
		return t.Kind
	}
	return schemas.KindEnvironment
}

// Tools returns the catalog in registration order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Names returns the canonical tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Prompt renders the catalog for the system prompt.
func (r *Registry) Prompt() string {
	blocks := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		schema, err := json.MarshalIndent(t.Schema.JSONSchema(), "", "  ")
		if err != nil {
			schema = []byte("{}")
		}
		blocks = append(blocks, fmt.Sprintf("Tool Name: %s\nTool Description: %s\nTool Input: %s", t.Name, t.Description, schema))
	}
	return strings.Join(blocks, "\n\n")
}

// Execute validates input and runs the named tool. It never returns a fault:
// unknown tools, bad input, handler errors and panics all come back as
// failed results with an explanatory Content.
func (r *Registry) Execute(ctx context.Context, name string, input any, session schemas.BrowserSession) (result ToolResult) {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.failure(InvalidActionName, schemas.NewError(schemas.CodeNotFound,
			"Action Name was None or empty. The LLM failed to choose a valid action."))
	}

	tool, ok := r.Lookup(name)
	if !ok {
		return r.failure(name, schemas.NewError(schemas.CodeNotFound,
			"Tool %q not found. Please choose from the available tools.", name))
	}

	var params map[string]any
	switch in := input.(type) {
	case map[string]any:
		params = in
	case nil:
		params = map[string]any{}
	default:
		err := schemas.NewError(schemas.CodeTypeMismatch,
			"Action Input for tool '%s' must be a dictionary, but got %s", tool.Name, describeType(input))
		r.logger.Warn("Rejected non-mapping action input", zap.String("tool", tool.Name), zap.Error(err))
		return ToolResult{Name: tool.Name, Content: err.Message, Failed: true, Code: err.Code}
	}

	args, err := tool.Schema.Validate(params)
	if err != nil {
		return r.failure(tool.Name, err)
	}

	var sess schemas.BrowserSession
	if tool.NeedsSession {
		if session == nil {
			return r.failure(tool.Name, schemas.NewError(schemas.CodeEnvironment, "no active browser session"))
		}
		sess = session
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Tool handler panicked",
				zap.String("tool", tool.Name),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			result = r.failure(tool.Name, schemas.NewError(schemas.CodeEnvironment, "%v", p))
		}
	}()

	content, err := tool.Handler(ctx, args, sess)
	if err != nil {
		return r.failure(tool.Name, err)
	}
	r.logger.Debug("Tool executed", zap.String("tool", tool.Name))
	return ToolResult{Name: tool.Name, Content: content}
}

func (r *Registry) failure(name string, err error) ToolResult {
	code := schemas.CodeOf(err)
	r.logger.Warn("Tool execution failed", zap.String("tool", name), zap.String("code", string(code)), zap.Error(err))
	return ToolResult{
		Name:    name,
		Content: fmt.Sprintf("Error executing tool '%s': %s", name, err.Error()),
		Failed:  true,
		Code:    code,
	}
}

func describeType(v any) string {
	switch v.(type) {
	case string:
		return "str"
	case []any:
		return "list"
	case int64, int:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	}
	return fmt.Sprintf("%T", v)
}
