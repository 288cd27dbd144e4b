// internal/agent/loop.go
package agent

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/llmutil"
	"github.com/tanmaysk001/Browser-Agent/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Text of the answer forced when the iteration budget runs out.
const (
	maxIterationAnswer   = "Maximum Iteration reached."
	maxIterationEvaluate = "I have reached the maximum iteration limit."
	maxIterationMemory   = "I have reached the maximum iteration limit. Cannot procced further."
	maxIterationThought  = "Looks like I have reached the maximum iteration limit reached."
)

// step is a node of the loop.
type step int

const (
	stepReason step = iota
	stepAction
	stepAnswer
	stepStructured
	stepDone
)

func (s step) String() string {
	switch s {
	case stepReason:
		return "reason"
	case stepAction:
		return "action"
	case stepAnswer:
		return "answer"
	case stepStructured:
		return "structured"
	default:
		return "done"
	}
}

// runState is threaded through every step of one run.
type runState struct {
	input      string
	transcript Transcript
	decision   llmutil.Decision
	// prevObservation is the last tool result, used when the observation
	// that carried it is compacted.
	prevObservation string
	// page is the last structured view of the browser. Pass-through actions
	// reuse it instead of observing again.
	page       *schemas.PageState
	output     string
	structured map[string]any
	iteration  int
	exhausted  bool
	completed  bool
	usage      schemas.TokenUsage
}

// run is a single invocation of Agent.Run.
type run struct {
	agent   *Agent
	id      string
	shape   *schemas.OutputShape
	start   time.Time
	logger  *zap.Logger
	session schemas.BrowserSession
	state   runState
}

func (r *run) loop(ctx context.Context) error {
	next := stepReason
	for next != stepDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Debug("Entering step.", zap.Stringer("step", next), zap.Int("iteration", r.state.iteration))
		var err error
		switch next {
		case stepReason:
			if err = r.reason(ctx); err == nil {
				next = r.route()
			}
		case stepAction:
			next, err = r.action(ctx)
		case stepAnswer:
			next, err = r.answer(ctx)
		case stepStructured:
			next, err = r.structured(ctx)
		default:
			err = fmt.Errorf("unknown loop step %d", next)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// reason asks the model for the next decision. Once the budget is spent it
// marks the run exhausted instead, so a run never makes more than
// maxIteration reasoning calls.
func (r *run) reason(ctx context.Context) error {
	st := &r.state
	if st.iteration >= r.agent.maxIteration {
		st.exhausted = true
		r.logger.Info("Iteration budget exhausted, forcing a final answer.", zap.Int("max_iteration", r.agent.maxIteration))
		return nil
	}

	resp, err := r.agent.client.Complete(ctx, schemas.CompletionRequest{Messages: st.transcript.Messages()})
	if err != nil {
		return fmt.Errorf("reasoning step %d failed: %w", st.iteration+1, err)
	}
	st.usage.Add(resp.Usage)
	st.transcript = st.transcript.Append(schemas.AssistantMessage(resp.Text))
	st.decision = llmutil.ParseDecision(resp.Text)

	d := st.decision
	r.logger.Debug("Decision received.",
		zap.String("evaluate", d.Evaluate),
		zap.String("memory", d.Memory),
		zap.String("thought", d.Thought),
		zap.String("action_name", d.ActionName))
	return nil
}

// route picks the step after reason and owns the iteration counter.
func (r *run) route() step {
	st := &r.state
	if st.exhausted {
		return stepAnswer
	}
	st.iteration++
	if r.agent.registry.Kind(st.decision.ActionName).IsTerminal() {
		return stepAnswer
	}
	return stepAction
}

// action runs the decided tool, observes the browser and appends the next
// turn to the transcript.
func (r *run) action(ctx context.Context) (step, error) {
	st := &r.state
	d := st.decision
	kind := r.agent.registry.Kind(d.ActionName)
	r.logger.Info("Executing action.",
		zap.Int("iteration", st.iteration),
		zap.String("action_name", d.ActionName),
		zap.Any("action_input", d.ActionInput))

	var session schemas.BrowserSession
	if kind != schemas.KindPassThrough {
		s, err := r.acquireSession(ctx)
		if err != nil {
			return stepDone, err
		}
		session = s
	}
	result := r.agent.registry.Execute(ctx, d.ActionName, d.ActionInput, session)
	r.logger.Debug("Action finished.", zap.String("tool", result.Name), zap.Bool("failed", result.Failed))

	st.transcript = st.transcript.CompactLastObservation(st.prevObservation)

	var screenshot []byte
	if kind != schemas.KindPassThrough {
		page, err := session.Observe(ctx, r.agent.useVision)
		if err != nil {
			r.logger.Warn("Failed to observe the browser, continuing without elements.", zap.Error(err))
			page = &schemas.PageState{}
		}
		st.page = page
		if r.agent.useVision {
			screenshot = page.Screenshot
		}
	}

	actionText, err := render("action.md.tmpl", actionPromptData{
		Memory:      d.Memory,
		Evaluate:    d.Evaluate,
		Thought:     d.Thought,
		ActionName:  d.ActionName,
		ActionInput: formatActionInput(d.ActionInput),
	})
	if err != nil {
		return stepDone, err
	}
	obs := observationPromptData{
		Iteration:    st.iteration,
		MaxIteration: r.agent.maxIteration,
		Observation:  result.Content,
	}
	pageListings(&obs, st.page)
	obsText, err := render("observation.md.tmpl", obs)
	if err != nil {
		return stepDone, err
	}

	st.transcript = st.transcript.Append(
		schemas.AssistantMessage(actionText),
		schemas.ObservationMessage(obsText, screenshot),
	)
	st.prevObservation = result.Content
	return stepReason, nil
}

// answer produces the final output, from the terminal tool when the model
// chose it or from a forced decision when the budget ran out.
func (r *run) answer(ctx context.Context) (step, error) {
	st := &r.state
	st.transcript = st.transcript.CompactLastObservation(st.prevObservation)

	d := st.decision
	if st.exhausted {
		d = llmutil.NewDecision(maxIterationMemory, maxIterationEvaluate, maxIterationThought,
			tools.NameDone, map[string]any{"content": maxIterationAnswer})
		st.output = maxIterationAnswer
	} else {
		result := r.agent.registry.Execute(ctx, d.ActionName, d.ActionInput, nil)
		st.output = result.Content
		st.completed = !result.Failed
	}

	text, err := render("answer.md.tmpl", answerPromptData{
		Memory:      d.Memory,
		Evaluate:    d.Evaluate,
		Thought:     d.Thought,
		FinalAnswer: st.output,
	})
	if err != nil {
		return stepDone, err
	}
	st.transcript = st.transcript.Append(schemas.AssistantMessage(text))
	r.logger.Info("Final answer produced.", zap.Bool("forced", st.exhausted), zap.String("output", st.output))

	if r.shape != nil {
		return stepStructured, nil
	}
	return stepDone, nil
}

// structured converts the free-text answer into the caller's shape.
func (r *run) structured(ctx context.Context) (step, error) {
	st := &r.state
	resp, err := r.agent.client.Complete(ctx, schemas.CompletionRequest{
		Messages: []schemas.Message{
			schemas.SystemMessage("## Structured Output"),
			schemas.HumanMessage(st.output),
		},
		Shape: r.shape,
	})
	if err != nil {
		return stepDone, fmt.Errorf("structured output %q failed: %w", r.shape.Name, err)
	}
	st.usage.Add(resp.Usage)
	st.structured = resp.Structured
	return stepDone, nil
}

func formatActionInput(input any) string {
	b, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(b)
}
