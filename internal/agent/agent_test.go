// internal/agent/agent_test.go
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/mocks"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

// -- Test Setup Helpers --

const (
	navigateReply = `<Memory>Nothing done yet.</Memory>
<Evaluate>The task just started.</Evaluate>
<Thought>I should open the site first.</Thought>
<Action-Name>navigate</Action-Name>
<Action-Input>{'url': 'https://example.com'}</Action-Input>`

	doneReply = `<Memory>Found it on the page.</Memory>
<Evaluate>Navigation worked.</Evaluate>
<Thought>The answer is visible.</Thought>
<Action-Name>done</Action-Name>
<Action-Input>{"content": "X found"}</Action-Input>`

	humanReply = `<Memory>Need a code.</Memory>
<Evaluate>The page asks for a code.</Evaluate>
<Thought>Only the user knows it.</Thought>
<Action-Name>human</Action-Name>
<Action-Input>{"prompt": "Code?"}</Action-Input>`
)

type stubHuman struct {
	mu     sync.Mutex
	answer string
	asked  []string
}

func (h *stubHuman) Ask(_ context.Context, prompt string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.asked = append(h.asked, prompt)
	return h.answer, nil
}

func reply(text string) *schemas.CompletionResponse {
	return &schemas.CompletionResponse{Text: text, Usage: schemas.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}
}

func examplePage() *schemas.PageState {
	tab := schemas.TabInfo{Index: 0, Title: "Example", URL: "https://example.com"}
	return &schemas.PageState{
		CurrentTab: tab,
		Tabs:       []schemas.TabInfo{tab},
		Interactive: []schemas.ElementNode{{
			Tag: "a", Role: "link", Name: "More", Attributes: map[string]string{"href": "/more"},
			Center: schemas.Point{X: 10, Y: 20},
		}},
		Informative: []schemas.TextNode{{Tag: "h1", Role: "heading", Content: "Example Domain", Center: schemas.Point{X: 5, Y: 5}}},
		Screenshot:  []byte{0xff, 0xd8, 0xff},
	}
}

type fixture struct {
	client   *mocks.MockCompletionClient
	factory  *mocks.MockSessionFactory
	session  *mocks.MockBrowserSession
	human    *stubHuman
	registry *tools.Registry

	mu       sync.Mutex
	requests []schemas.CompletionRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		client:  new(mocks.MockCompletionClient),
		factory: new(mocks.MockSessionFactory),
		session: mocks.NewMockBrowserSession(),
		human:   &stubHuman{answer: "1234"},
	}
	registry, err := tools.NewDefaultRegistry(tools.Deps{Logger: zaptest.NewLogger(t), Human: f.human})
	require.NoError(t, err)
	f.registry = registry
	f.session.On("ID").Return("session-1").Maybe()
	return f
}

// expectReplies scripts the model's free-text replies in order.
func (f *fixture) expectReplies(texts ...string) {
	for _, text := range texts {
		f.client.On("Complete", mock.Anything, mock.MatchedBy(func(req schemas.CompletionRequest) bool { return req.Shape == nil })).
			Run(f.record).Return(reply(text), nil).Once()
	}
}

func (f *fixture) record(args mock.Arguments) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, args.Get(1).(schemas.CompletionRequest))
}

func (f *fixture) request(t *testing.T, i int) schemas.CompletionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.requests), i)
	return f.requests[i]
}

func (f *fixture) expectSession() {
	f.factory.On("NewSession", mock.Anything).Return(f.session, nil).Once()
	f.session.On("Close", mock.Anything).Return(nil).Once()
}

func (f *fixture) agent(t *testing.T, mutate ...func(*Options)) *Agent {
	t.Helper()
	opts := Options{
		Client:       f.client,
		Sessions:     f.factory,
		Registry:     f.registry,
		MaxIteration: 10,
		DownloadsDir: "/tmp/downloads",
		Logger:       zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&opts)
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.client.AssertExpectations(t)
	f.factory.AssertExpectations(t)
	f.session.AssertExpectations(t)
}

// -- Test Cases --

func TestNewValidatesOptions(t *testing.T) {
	f := newFixture(t)

	_, err := New(Options{Sessions: f.factory, Registry: f.registry})
	assert.Error(t, err)
	_, err = New(Options{Client: f.client, Registry: f.registry})
	assert.Error(t, err)
	_, err = New(Options{Client: f.client, Sessions: f.factory})
	assert.Error(t, err)

	a, err := New(Options{Client: f.client, Sessions: f.factory, Registry: f.registry})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxIteration, a.maxIteration)
	assert.Equal(t, defaultRecallLimit, a.recallLimit)
	assert.Equal(t, defaultBrowserName, a.browserName)
}

func TestRunNavigateThenDone(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply, doneReply)
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Once()
	f.session.On("Observe", mock.Anything, false).Return(examplePage(), nil).Once()

	result, err := f.agent(t).Run(context.Background(), "search for X", nil)
	require.NoError(t, err)

	assert.Equal(t, "X found", result.Output)
	assert.Equal(t, 2, result.Iterations)
	assert.True(t, result.Completed)
	assert.Nil(t, result.Structured)
	assert.Equal(t, schemas.TokenUsage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30}, result.Usage)
	assert.NotEmpty(t, result.RunID)
	f.client.AssertNumberOfCalls(t, "Complete", 2)
	f.assertExpectations(t)

	first := f.request(t, 0).Messages
	require.Len(t, first, 2)
	assert.Equal(t, schemas.RoleSystem, first[0].Role)
	assert.Equal(t, "Task: search for X", first[1].Text)

	// The second call sees the restated action and a fresh observation.
	second := f.request(t, 1).Messages
	require.Len(t, second, 4)
	assert.Equal(t, "Task: search for X", second[1].Text)
	assert.Equal(t, schemas.RoleAssistant, second[2].Role)
	assert.Contains(t, second[2].Text, "<Action-Name>navigate</Action-Name>")
	assert.Contains(t, second[2].Text, `"url": "https://example.com"`)

	obs := second[3]
	assert.True(t, obs.Observation)
	assert.False(t, obs.IsImage())
	assert.Contains(t, obs.Text, "Iteration: 1/10")
	assert.Contains(t, obs.Text, "Action Response: Navigated to https://example.com")
	assert.Contains(t, obs.Text, "Current Tab: 0 - Title: Example - URL: https://example.com")
	assert.Contains(t, obs.Text, "0 - Tag: a Role: link Name: More Attributes: {'href': '/more'} Cordinates: (10,20)")
	assert.Contains(t, obs.Text, "Tag: h1 Role: heading Content: Example Domain")

	// After answering, the last observation is compacted and the answer appended.
	require.Len(t, result.Messages, 5)
	assert.Equal(t, "<Observation>Navigated to https://example.com</Observation>", result.Messages[3].Text)
	assert.False(t, result.Messages[3].Observation)
	assert.Contains(t, result.Messages[4].Text, "<Final-Answer>X found</Final-Answer>")
}

func TestRunForcesAnswerWhenBudgetExhausted(t *testing.T) {
	f := newFixture(t)
	f.client.On("Complete", mock.Anything, mock.Anything).Return(reply(navigateReply), nil)
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Once()
	f.session.On("Observe", mock.Anything, false).Return(examplePage(), nil).Once()

	a := f.agent(t, func(o *Options) { o.MaxIteration = 1 })
	result, err := a.Run(context.Background(), "search for X", nil)
	require.NoError(t, err)

	f.client.AssertNumberOfCalls(t, "Complete", 1)
	assert.Equal(t, maxIterationAnswer, result.Output)
	assert.Equal(t, 1, result.Iterations)
	assert.False(t, result.Completed)
	f.assertExpectations(t)

	last := result.Messages[len(result.Messages)-1]
	assert.Contains(t, last.Text, maxIterationEvaluate)
	assert.Contains(t, last.Text, "<Final-Answer>Maximum Iteration reached.</Final-Answer>")
	assert.Equal(t, "<Observation>Navigated to https://example.com</Observation>", result.Messages[len(result.Messages)-2].Text)
}

func TestRunNeverExceedsBudget(t *testing.T) {
	f := newFixture(t)
	f.client.On("Complete", mock.Anything, mock.Anything).Return(reply(navigateReply), nil)
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil)
	f.session.On("Observe", mock.Anything, false).Return(examplePage(), nil)

	a := f.agent(t, func(o *Options) { o.MaxIteration = 4 })
	result, err := a.Run(context.Background(), "search for X", nil)
	require.NoError(t, err)

	f.client.AssertNumberOfCalls(t, "Complete", 4)
	f.session.AssertNumberOfCalls(t, "Navigate", 4)
	assert.Equal(t, 4, result.Iterations)
	assert.Equal(t, maxIterationAnswer, result.Output)
}

func TestRunDoneOnLastStepIsNotForced(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(doneReply)

	a := f.agent(t, func(o *Options) { o.MaxIteration = 1 })
	result, err := a.Run(context.Background(), "search for X", nil)
	require.NoError(t, err)

	assert.Equal(t, "X found", result.Output)
	assert.True(t, result.Completed)
	f.factory.AssertNotCalled(t, "NewSession", mock.Anything)
}

func TestRunToolFailureDoesNotEndRun(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(strings.Replace(navigateReply, "navigate", "fly", 1), doneReply)
	f.expectSession()
	f.session.On("Observe", mock.Anything, false).Return(examplePage(), nil).Once()

	result, err := f.agent(t).Run(context.Background(), "search for X", nil)
	require.NoError(t, err)
	assert.Equal(t, "X found", result.Output)

	obs := f.request(t, 1).Messages[3]
	assert.Contains(t, obs.Text, `Tool "fly" not found`)
	f.assertExpectations(t)
}

func TestRunSnapshotFailureDegradesToEmptyPage(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply, doneReply)
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Once()
	f.session.On("Observe", mock.Anything, false).Return(nil, errors.New("target closed")).Once()

	result, err := f.agent(t).Run(context.Background(), "search for X", nil)
	require.NoError(t, err)
	assert.Equal(t, "X found", result.Output)

	obs := f.request(t, 1).Messages[3]
	assert.Contains(t, obs.Text, "No interactive elements found.")
	f.assertExpectations(t)
}

func TestRunHumanInputKeepsPreviousPage(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply, humanReply, doneReply)
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Once()
	f.session.On("Observe", mock.Anything, true).Return(examplePage(), nil).Once()

	a := f.agent(t, func(o *Options) { o.UseVision = true })
	result, err := a.Run(context.Background(), "log in", nil)
	require.NoError(t, err)
	assert.Equal(t, "X found", result.Output)
	assert.Equal(t, []string{"Code?"}, f.human.asked)
	f.session.AssertNumberOfCalls(t, "Observe", 1)

	third := f.request(t, 2).Messages
	require.Len(t, third, 6)
	obs := third[5]
	assert.Contains(t, obs.Text, "Human provided the following input: '1234'")
	assert.Contains(t, obs.Text, "0 - Tag: a Role: link Name: More")
	assert.False(t, obs.IsImage(), "a pass-through turn carries no new screenshot")
	assert.Equal(t, "<Observation>Navigated to https://example.com</Observation>", third[3].Text)
	f.assertExpectations(t)
}

func TestRunVisionOnlyOnNewestTurn(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply, navigateReply, doneReply)
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Twice()
	f.session.On("Observe", mock.Anything, true).Return(examplePage(), nil).Twice()

	a := f.agent(t, func(o *Options) { o.UseVision = true })
	_, err := a.Run(context.Background(), "search for X", nil)
	require.NoError(t, err)

	third := f.request(t, 2).Messages
	require.Len(t, third, 6)
	assert.False(t, third[3].IsImage())
	assert.True(t, third[5].IsImage())
	assert.Equal(t, examplePage().Screenshot, third[5].Image)
	f.assertExpectations(t)
}

func TestRunClosesSessionOnFailure(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply)
	f.client.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded")).Once()
	f.expectSession()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Once()
	f.session.On("Observe", mock.Anything, false).Return(examplePage(), nil).Once()

	_, err := f.agent(t).Run(context.Background(), "search for X", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	f.assertExpectations(t)
}

func TestRunSurfacesSessionAcquisitionFailure(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply)
	f.factory.On("NewSession", mock.Anything).Return(nil, errors.New("no chrome binary")).Once()

	_, err := f.agent(t).Run(context.Background(), "search for X", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chrome binary")
	f.session.AssertNotCalled(t, "Close", mock.Anything)
}

func TestRunCloseErrorIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(navigateReply, doneReply)
	f.factory.On("NewSession", mock.Anything).Return(f.session, nil).Once()
	f.session.On("Close", mock.Anything).Return(errors.New("already gone")).Once()
	f.session.On("Navigate", mock.Anything, "https://example.com").Return(nil).Once()
	f.session.On("Observe", mock.Anything, false).Return(examplePage(), nil).Once()

	result, err := f.agent(t).Run(context.Background(), "search for X", nil)
	require.NoError(t, err)
	assert.Equal(t, "X found", result.Output)
	f.assertExpectations(t)
}

func TestRunStructuredOutput(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(doneReply)
	shape := &schemas.OutputShape{Name: "Finding", Schema: map[string]any{"type": "object"}}
	f.client.On("Complete", mock.Anything, mock.MatchedBy(func(req schemas.CompletionRequest) bool { return req.Shape == shape })).
		Run(f.record).
		Return(&schemas.CompletionResponse{Structured: map[string]any{"found": true}, Usage: schemas.TokenUsage{TotalTokens: 3}}, nil).Once()

	result, err := f.agent(t).Run(context.Background(), "search for X", shape)
	require.NoError(t, err)

	assert.Equal(t, "X found", result.Output)
	assert.Equal(t, map[string]any{"found": true}, result.Structured)
	assert.Equal(t, 18, result.Usage.TotalTokens)

	req := f.request(t, 1)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "## Structured Output", req.Messages[0].Text)
	assert.Equal(t, "X found", req.Messages[1].Text)
	f.factory.AssertNotCalled(t, "NewSession", mock.Anything)
}

func TestRunUsesLongTermMemory(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(doneReply)
	memory := new(mocks.MockMemoryStore)
	memory.On("Recall", mock.Anything, "search for X", 3).Return([]string{"Prices are under the Deals tab."}, nil).Once()
	memory.On("Remember", mock.Anything, mock.MatchedBy(func(rec schemas.RunRecord) bool {
		return rec.Task == "search for X" && rec.Output == "X found" && rec.Completed &&
			rec.Iterations == 1 && rec.Memory == "Found it on the page." && rec.RunID != ""
	})).Return(nil).Once()

	a := f.agent(t, func(o *Options) {
		o.Memory = memory
		o.RecallLimit = 3
	})
	_, err := a.Run(context.Background(), "search for X", nil)
	require.NoError(t, err)

	system := f.request(t, 0).Messages[0].Text
	assert.Contains(t, system, "- Prices are under the Deals tab.")
	memory.AssertExpectations(t)
}

func TestRunMemoryFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	f.expectReplies(doneReply)
	memory := new(mocks.MockMemoryStore)
	memory.On("Recall", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	memory.On("Remember", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	a := f.agent(t, func(o *Options) { o.Memory = memory })
	result, err := a.Run(context.Background(), "search for X", nil)
	require.NoError(t, err)
	assert.Equal(t, "X found", result.Output)
	assert.NotContains(t, f.request(t, 0).Messages[0].Text, "Long-term Memory")
}

func TestRunHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.agent(t).Run(ctx, "search for X", nil)
	assert.ErrorIs(t, err, context.Canceled)
	f.client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSystemPrompt(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	f := newFixture(t)
	a := f.agent(t, func(o *Options) {
		o.Instructions = []string{"Prefer official sites.", " ", "Never buy anything."}
		o.MaxIteration = 7
	})
	prompt, err := a.systemPrompt([]string{"note one"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "2025-03-14 09:26:53")
	assert.Contains(t, prompt, "1. Prefer official sites.\n2. Never buy anything.")
	assert.Contains(t, prompt, "at most 7 steps")
	assert.Contains(t, prompt, "Tool Name: click")
	assert.Contains(t, prompt, "downloaded files are saved to /tmp/downloads")
	assert.Contains(t, prompt, "Chrome browser")
	assert.Contains(t, prompt, "- note one")
	assert.Contains(t, prompt, "<Action-Input>")
	assert.NotContains(t, prompt, "screenshot of the viewport")
}

func TestFormatActionInput(t *testing.T) {
	assert.Equal(t, "{\n  \"url\": \"https://example.com\"\n}", formatActionInput(map[string]any{"url": "https://example.com"}))
	assert.Equal(t, `"raw text"`, formatActionInput("raw text"))
	assert.Equal(t, "null", formatActionInput(nil))
}
