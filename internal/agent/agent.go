// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

const (
	defaultMaxIteration = 10
	defaultRecallLimit  = 5
	defaultBrowserName  = "Chrome"
	sessionCloseTimeout = 30 * time.Second
)

// Allows for mocking in tests.
var (
	uuidNewString = uuid.NewString
	timeNow       = time.Now
)

// Options configures an Agent.
type Options struct {
	Client   schemas.CompletionClient
	Sessions schemas.SessionFactory
	Registry *tools.Registry
	// Memory is optional. When set, notes from earlier runs are added to the
	// system prompt and every run is remembered.
	Memory      schemas.MemoryStore
	RecallLimit int

	MaxIteration int
	UseVision    bool
	Instructions []string
	BrowserName  string
	DownloadsDir string
	Logger       *zap.Logger
}

// Agent drives the reason, act, observe loop over a browser session. An Agent
// holds no per-run state, so Run may be called concurrently.
type Agent struct {
	client       schemas.CompletionClient
	sessions     schemas.SessionFactory
	registry     *tools.Registry
	memory       schemas.MemoryStore
	recallLimit  int
	maxIteration int
	useVision    bool
	instructions string
	browserName  string
	downloadsDir string
	logger       *zap.Logger
}

// Result is the outcome of one run.
type Result struct {
	RunID  string
	Output string
	// Structured holds the typed answer when Run was given an output shape.
	Structured map[string]any
	Messages   []schemas.Message
	Iterations int
	// Completed is false when the budget ran out or the final answer failed.
	Completed bool
	Duration  time.Duration
	Usage     schemas.TokenUsage
}

// New validates the options and builds an agent.
func New(opts Options) (*Agent, error) {
	if opts.Client == nil {
		return nil, errors.New("agent requires a completion client")
	}
	if opts.Sessions == nil {
		return nil, errors.New("agent requires a browser session factory")
	}
	if opts.Registry == nil {
		return nil, errors.New("agent requires a tool registry")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxIteration <= 0 {
		opts.MaxIteration = defaultMaxIteration
	}
	if opts.RecallLimit <= 0 {
		opts.RecallLimit = defaultRecallLimit
	}
	if opts.BrowserName == "" {
		opts.BrowserName = defaultBrowserName
	}

	return &Agent{
		client:       opts.Client,
		sessions:     opts.Sessions,
		registry:     opts.Registry,
		memory:       opts.Memory,
		recallLimit:  opts.RecallLimit,
		maxIteration: opts.MaxIteration,
		useVision:    opts.UseVision,
		instructions: formatInstructions(opts.Instructions),
		browserName:  opts.BrowserName,
		downloadsDir: opts.DownloadsDir,
		logger:       opts.Logger.Named("agent"),
	}, nil
}

// Run works on task until the model calls the terminal tool or the iteration
// budget is spent. When shape is non-nil the final answer is also converted
// into that shape with one extra completion call.
//
// The browser session is opened on first use and always closed before Run
// returns. Tool failures never end the run; completion failures and a browser
// that cannot be started do.
func (a *Agent) Run(ctx context.Context, task string, shape *schemas.OutputShape) (*Result, error) {
	id := uuidNewString()
	r := &run{
		agent:  a,
		id:     id,
		shape:  shape,
		start:  timeNow(),
		logger: a.logger.With(zap.String("run_id", id)),
	}
	r.logger.Info("Agent run starting.", zap.String("task", task), zap.Int("max_iteration", a.maxIteration))
	defer r.release(ctx)

	memories := a.recall(ctx, r.logger, task)
	system, err := a.systemPrompt(memories)
	if err != nil {
		return nil, err
	}
	r.state = runState{
		input:           task,
		transcript:      NewTranscript(schemas.SystemMessage(system), schemas.HumanMessage("Task: "+task)),
		prevObservation: noObservation,
	}

	if err := r.loop(ctx); err != nil {
		r.logger.Error("Agent run failed.", zap.Int("iteration", r.state.iteration), zap.Error(err))
		return nil, err
	}

	st := r.state
	result := &Result{
		RunID:      r.id,
		Output:     st.output,
		Structured: st.structured,
		Messages:   st.transcript.Messages(),
		Iterations: st.iteration,
		Completed:  st.completed,
		Duration:   timeNow().Sub(r.start),
		Usage:      st.usage,
	}
	r.logger.Info("Agent run finished.",
		zap.Int("iterations", result.Iterations),
		zap.Bool("completed", result.Completed),
		zap.Duration("duration", result.Duration),
		zap.Int("input_tokens", result.Usage.InputTokens),
		zap.Int("output_tokens", result.Usage.OutputTokens),
		zap.Int("total_tokens", result.Usage.TotalTokens))

	a.remember(ctx, r.logger, schemas.RunRecord{
		RunID:      r.id,
		Task:       task,
		Output:     st.output,
		Memory:     st.decision.Memory,
		Iterations: st.iteration,
		Completed:  st.completed,
		CreatedAt:  timeNow().UTC(),
	})
	return result, nil
}

func (a *Agent) systemPrompt(memories []string) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		home = "~"
	}
	return render("system.md.tmpl", systemPromptData{
		Instructions:    a.instructions,
		CurrentDatetime: timeNow().Format("2006-01-02 15:04:05"),
		ToolsPrompt:     a.registry.Prompt(),
		MaxIteration:    a.maxIteration,
		OS:              osName(),
		Browser:         a.browserName,
		HomeDir:         home,
		DownloadsDir:    a.downloadsDir,
		Vision:          a.useVision,
		Memories:        memories,
	})
}

// recall fetches notes from earlier runs. Memory is best effort; a failing
// store only costs the hints.
func (a *Agent) recall(ctx context.Context, logger *zap.Logger, task string) []string {
	if a.memory == nil {
		return nil
	}
	notes, err := a.memory.Recall(ctx, task, a.recallLimit)
	if err != nil {
		logger.Warn("Failed to recall long-term memory.", zap.Error(err))
		return nil
	}
	logger.Debug("Recalled long-term memory.", zap.Int("notes", len(notes)))
	return notes
}

func (a *Agent) remember(ctx context.Context, logger *zap.Logger, rec schemas.RunRecord) {
	if a.memory == nil {
		return
	}
	if err := a.memory.Remember(ctx, rec); err != nil {
		logger.Warn("Failed to store run in long-term memory.", zap.Error(err))
	}
}

func osName() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	}
	return runtime.GOOS
}

// release closes the session if one was opened. Close errors are logged and
// swallowed. It runs even when ctx is already cancelled.
func (r *run) release(ctx context.Context) {
	if r.session == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()
	if err := r.session.Close(closeCtx); err != nil {
		r.logger.Warn("Failed to close browser session.", zap.String("session_id", r.session.ID()), zap.Error(err))
	}
	r.session = nil
}

// acquireSession opens the run's browser session on first use.
func (r *run) acquireSession(ctx context.Context) (schemas.BrowserSession, error) {
	if r.session != nil {
		return r.session, nil
	}
	s, err := r.agent.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get browser session for agent: %w", err)
	}
	r.session = s
	r.logger.Debug("Browser session opened.", zap.String("session_id", s.ID()))
	return s, nil
}
