// internal/tools/registry_test.go
package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/mocks"
)

func newTestRegistry(t *testing.T, extra ...*Tool) *Registry {
	t.Helper()
	r, err := NewRegistry(zap.NewNop(), append(Catalog(Deps{}), extra...)...)
	require.NoError(t, err)
	return r
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	noop := func(context.Context, Args, schemas.BrowserSession) (string, error) { return "", nil }
	_, err := NewRegistry(nil, &Tool{Name: "a", Handler: noop}, &Tool{Name: "b", Aliases: []string{"a"}, Handler: noop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate tool name "a"`)

	_, err = NewRegistry(nil, &Tool{Name: "a"})
	require.Error(t, err)
}

func TestRegistryCatalog(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{
		NameDone, NameClick, NameType, NameWait, NameScroll, NameNavigate, NameBack, NameForward,
		NameKey, NameDownload, NameScrape, NameTab, NameUpload, NameMenu, NameHuman,
	}, r.Names())

	assert.Equal(t, schemas.KindTerminal, r.Kind(NameDone))
	assert.Equal(t, schemas.KindTerminal, r.Kind("Done Tool"))
	assert.Equal(t, schemas.KindPassThrough, r.Kind(NameHuman))
	assert.Equal(t, schemas.KindEnvironment, r.Kind(NameClick))
	assert.Equal(t, schemas.KindEnvironment, r.Kind("no-such-tool"))

	tool, ok := r.Lookup("GoTo Tool")
	require.True(t, ok)
	assert.Equal(t, NameNavigate, tool.Name)
}

func TestRegistryPrompt(t *testing.T) {
	r := newTestRegistry(t)
	prompt := r.Prompt()
	assert.Contains(t, prompt, "Tool Name: click\nTool Description: Click the element")
	assert.Contains(t, prompt, "Tool Input: {")
	assert.Contains(t, prompt, `"index"`)
	assert.Contains(t, prompt, "\n\nTool Name: type\n")
}

func TestExecuteErrors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	t.Run("empty name", func(t *testing.T) {
		res := r.Execute(ctx, "  ", map[string]any{}, nil)
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeNotFound, res.Code)
		assert.Equal(t, "Error executing tool 'Invalid Action': NotFound: Action Name was None or empty. The LLM failed to choose a valid action.", res.Content)
	})

	t.Run("unknown tool", func(t *testing.T) {
		res := r.Execute(ctx, "fly", map[string]any{}, nil)
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeNotFound, res.Code)
		assert.Equal(t, `Error executing tool 'fly': NotFound: Tool "fly" not found. Please choose from the available tools.`, res.Content)
	})

	t.Run("non-mapping input", func(t *testing.T) {
		res := r.Execute(ctx, NameClick, "index 3", mocks.NewMockBrowserSession())
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeTypeMismatch, res.Code)
		assert.Equal(t, "Action Input for tool 'click' must be a dictionary, but got str", res.Content)
	})

	t.Run("missing required field", func(t *testing.T) {
		res := r.Execute(ctx, NameClick, map[string]any{}, mocks.NewMockBrowserSession())
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeValidation, res.Code)
		assert.Contains(t, res.Content, "Error executing tool 'click': ValidationError:")
		assert.Contains(t, res.Content, "index: field required")
	})

	t.Run("wrong type", func(t *testing.T) {
		res := r.Execute(ctx, NameClick, map[string]any{"index": "third"}, mocks.NewMockBrowserSession())
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeValidation, res.Code)
	})

	t.Run("enum violation", func(t *testing.T) {
		res := r.Execute(ctx, NameScroll, map[string]any{"direction": "left"}, mocks.NewMockBrowserSession())
		assert.True(t, res.Failed)
		assert.Contains(t, res.Content, "direction: input should be 'up' or 'down'")
	})

	t.Run("missing session", func(t *testing.T) {
		res := r.Execute(ctx, NameBack, nil, nil)
		assert.True(t, res.Failed)
		assert.Equal(t, schemas.CodeEnvironment, res.Code)
	})
}

func TestExecuteContainsHandlerFaults(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	panicky := &Tool{
		Name: "explode",
		Handler: func(context.Context, Args, schemas.BrowserSession) (string, error) {
			panic("kaboom")
		},
	}
	failing := &Tool{
		Name: "fail",
		Handler: func(context.Context, Args, schemas.BrowserSession) (string, error) {
			return "", errors.New("driver disconnected")
		},
	}
	r, err := NewRegistry(zap.New(core), panicky, failing)
	require.NoError(t, err)

	res := r.Execute(context.Background(), "explode", nil, nil)
	assert.True(t, res.Failed)
	assert.Equal(t, "Error executing tool 'explode': EnvironmentFault: kaboom", res.Content)

	res = r.Execute(context.Background(), "fail", map[string]any{}, nil)
	assert.True(t, res.Failed)
	assert.Equal(t, "Error executing tool 'fail': driver disconnected", res.Content)
	assert.Equal(t, schemas.CodeEnvironment, res.Code)

	assert.Equal(t, 1, logs.FilterMessage("Tool handler panicked").Len())
}

func TestExecuteDone(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Execute(context.Background(), NameDone, map[string]any{"content": "X found"}, nil)
	assert.False(t, res.Failed)
	assert.Equal(t, "X found", res.Content)
}

func TestExecuteInjectsSessionAndDefaults(t *testing.T) {
	session := mocks.NewMockBrowserSession()
	loc := schemas.Locator{Element: "/html/body/input[1]"}
	session.On("ElementByIndex", 1).Return(schemas.ElementNode{Tag: "input", Locator: loc}, nil)
	session.On("Type", mock.Anything, loc, "hello", false).Return(nil)

	r := newTestRegistry(t)
	res := r.Execute(context.Background(), "Type Tool", map[string]any{"index": int64(1), "text": "hello", "extra": "ignored"}, session)
	assert.False(t, res.Failed, res.Content)
	assert.Equal(t, "Typed hello in element at label 1", res.Content)
	session.AssertExpectations(t)
}

func TestSchemaValidateCoercion(t *testing.T) {
	s := Schema{
		{Name: "index", Type: TypeInteger, Required: true},
		{Name: "clear", Type: TypeBoolean, Default: false},
		{Name: "labels", Type: TypeStringArray},
		{Name: "times", Type: TypeInteger, Default: int64(1)},
	}

	args, err := s.Validate(map[string]any{"index": 2.0, "clear": "True", "labels": "Red"})
	require.NoError(t, err)
	assert.Equal(t, 2, args.Int("index"))
	assert.True(t, args.Bool("clear"))
	assert.Equal(t, []string{"Red"}, args.Strings("labels"))
	assert.Equal(t, 1, args.Int("times"))

	args, err = s.Validate(map[string]any{"index": "7"})
	require.NoError(t, err)
	assert.Equal(t, 7, args.Int("index"))
	assert.False(t, args.Bool("clear"))
	_, hasLabels := args["labels"]
	assert.False(t, hasLabels)

	_, err = s.Validate(map[string]any{"index": 2.5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schemas.ErrValidation))

	_, err = s.Validate(map[string]any{"index": 1, "labels": []any{"a", 2}})
	require.Error(t, err)
}
