package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/agent"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
	"github.com/tanmaysk001/Browser-Agent/internal/observability"
	"github.com/tanmaysk001/Browser-Agent/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runOutput is what --json prints.
type runOutput struct {
	RunID      string             `json:"run_id"`
	Output     string             `json:"output"`
	Structured map[string]any     `json:"structured,omitempty"`
	Iterations int                `json:"iterations"`
	Completed  bool               `json:"completed"`
	DurationMS int64              `json:"duration_ms"`
	Usage      schemas.TokenUsage `json:"usage"`
}

// newRunCmd creates the `run` command. A nil factory uses the production one.
func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Runs the agent on a task and prints its final answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg); err != nil {
				return err
			}

			var shape *schemas.OutputShape
			if path, _ := cmd.Flags().GetString("output-shape"); path != "" {
				if shape, err = loadOutputShape(path); err != nil {
					return err
				}
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			if factory == nil {
				factory = service.NewComponentFactory(nil)
			}
			task := strings.Join(args, " ")
			return runTask(ctx, logger, cfg, task, shape, factory, cmd.OutOrStdout(), asJSON)
		},
	}

	runCmd.Flags().Int("max-iteration", 0, "Maximum number of reasoning steps. (Overrides config/env)")
	runCmd.Flags().Bool("vision", false, "Attach a screenshot of the viewport to each observation. (Overrides config/env)")
	runCmd.Flags().Bool("headless", false, "Run the browser without a window. (Overrides config/env)")
	runCmd.Flags().StringArray("instruction", nil, "Additional instruction for the agent. Repeatable. (Overrides config/env)")
	runCmd.Flags().String("output-shape", "", "YAML or JSON file describing a structured final answer.")
	runCmd.Flags().Bool("json", false, "Print the run result as JSON.")
	return runCmd
}

// applyRunFlagOverrides copies explicitly set flags over the loaded config.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()
	if flags.Changed("max-iteration") {
		n, _ := flags.GetInt("max-iteration")
		if n <= 0 {
			return fmt.Errorf("--max-iteration must be a positive integer, got %d", n)
		}
		cfg.SetAgentMaxIteration(n)
	}
	if flags.Changed("vision") {
		b, _ := flags.GetBool("vision")
		cfg.SetAgentUseVision(b)
	}
	if flags.Changed("headless") {
		b, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(b)
	}
	if flags.Changed("instruction") {
		instructions, _ := flags.GetStringArray("instruction")
		cfg.SetAgentInstructions(instructions)
	}
	return nil
}

// loadOutputShape reads an output shape. JSON files parse too, since JSON is YAML.
func loadOutputShape(path string) (*schemas.OutputShape, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output shape: %w", err)
	}
	var shape schemas.OutputShape
	if err := yaml.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("failed to parse output shape %s: %w", path, err)
	}
	if shape.Name == "" {
		return nil, fmt.Errorf("output shape %s has no name", path)
	}
	if len(shape.Schema) == 0 {
		return nil, fmt.Errorf("output shape %s has no schema", path)
	}
	return &shape, nil
}

// runTask builds the components, runs one task and prints the result.
func runTask(ctx context.Context, logger *zap.Logger, cfg config.Interface, task string, shape *schemas.OutputShape, factory service.ComponentFactory, out io.Writer, asJSON bool) error {
	logger.Info("Starting agent run",
		zap.String("task", task),
		zap.Int("max_iteration", cfg.Agent().MaxIteration),
		zap.Bool("vision", cfg.Agent().UseVision),
		zap.Bool("structured", shape != nil))

	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	res, err := components.Agent.Run(ctx, task, shape)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Agent run aborted.")
		}
		return err
	}

	if asJSON {
		return writeJSON(out, res)
	}
	if res.Structured != nil {
		return writeJSON(out, res.Structured)
	}
	if _, err := fmt.Fprintln(out, res.Output); err != nil {
		return err
	}
	if !res.Completed {
		logger.Warn("Agent did not complete the task.", zap.Int("iterations", res.Iterations))
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	if res, ok := v.(*agent.Result); ok {
		v = runOutput{
			RunID:      res.RunID,
			Output:     res.Output,
			Structured: res.Structured,
			Iterations: res.Iterations,
			Completed:  res.Completed,
			DurationMS: res.Duration.Milliseconds(),
			Usage:      res.Usage,
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
