package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/agent"
	"github.com/droverhq/drover-cli/internal/browser"
	"github.com/droverhq/drover-cli/internal/config"
	"github.com/droverhq/drover-cli/internal/dom"
	"github.com/droverhq/drover-cli/internal/llm"
	"github.com/droverhq/drover-cli/internal/observability"
	"github.com/droverhq/drover-cli/internal/reporting"
)

var (
	runStartURL  string
	runMaxSteps  int
	runTasksFile string
	runHeadful   bool
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Execute a task against a live browser",
	Long: `Run hands a natural-language goal to the agent, which drives a browser
until the goal is complete, impossible, or a step/safety limit is hit.
With --tasks-file, each non-empty line is run as an independent task
with its own browser session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadedCfg
		if runMaxSteps > 0 {
			cfg.Agent.MaxSteps = runMaxSteps
		}
		if runHeadful {
			cfg.Browser.Headless = false
		}

		tasks, err := collectTasks(args)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return fmt.Errorf("no task given: pass a goal argument or --tasks-file")
		}

		logger := observability.GetLogger()
		ctx := cmd.Context()

		// Independent tasks, independent sessions. The first hard setup
		// failure cancels the remaining runs.
		g, gctx := errgroup.WithContext(ctx)
		failed := make([]bool, len(tasks))
		for i, task := range tasks {
			g.Go(func() error {
				result, err := runTask(gctx, cfg, task, logger)
				if err != nil {
					return fmt.Errorf("task %q: %w", task.Goal, err)
				}
				failed[i] = !result.Success
				printResult(result)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, f := range failed {
			if f {
				return fmt.Errorf("one or more tasks did not complete successfully")
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runStartURL, "url", "u", "", "starting URL for the task")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "override the maximum number of steps")
	runCmd.Flags().StringVar(&runTasksFile, "tasks-file", "", "file with one task goal per line, run concurrently")
	runCmd.Flags().BoolVar(&runHeadful, "headful", false, "show the browser window")
	rootCmd.AddCommand(runCmd)
}

func collectTasks(args []string) ([]schemas.Task, error) {
	var tasks []schemas.Task
	newTask := func(goal string) schemas.Task {
		return schemas.Task{
			ID:        uuid.NewString(),
			Goal:      goal,
			StartURL:  runStartURL,
			CreatedAt: time.Now(),
		}
	}

	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		tasks = append(tasks, newTask(strings.TrimSpace(args[0])))
	}
	if runTasksFile != "" {
		f, err := os.Open(runTasksFile)
		if err != nil {
			return nil, fmt.Errorf("opening tasks file: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tasks = append(tasks, newTask(line))
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading tasks file: %w", err)
		}
	}
	return tasks, nil
}

// browserEnv combines the session's observation surface with the
// executor's action surface into the orchestrator's environment.
type browserEnv struct {
	*browser.Session
	*browser.Executor
}

// runTask owns the full lifecycle of one run: model client, browser
// session, orchestration, reporting, teardown.
func runTask(ctx context.Context, cfg *config.Config, task schemas.Task, logger *zap.Logger) (*schemas.TaskResult, error) {
	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	decider := llm.NewDecisionAdapter(client, cfg.LLM, logger)

	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, err
	}
	// Teardown must survive cancellation of the run context.
	defer func() {
		_, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Agent.ShutdownTimeout)
		defer cancel()
		if err := session.Close(); err != nil {
			logger.Warn("Browser session close failed", zap.Error(err))
		}
	}()

	env := &browserEnv{
		Session:  session,
		Executor: browser.NewExecutor(session, cfg.Browser, cfg.Agent, logger),
	}
	indexer := dom.NewIndexer(cfg.Agent, logger)
	orchestrator := agent.New(cfg.Agent, env, decider, indexer, logger)

	result := orchestrator.Run(ctx, task)

	reporter, err := reporting.New(cfg.Browser.ArtifactsDir, logger)
	if err != nil {
		logger.Warn("Could not create reporter", zap.Error(err))
		return result, nil
	}
	var entries []schemas.TranscriptEntry
	if cfg.Agent.PersistTranscript {
		entries = orchestrator.Transcript()
	}
	if _, err := reporter.Write(result, entries); err != nil {
		logger.Warn("Could not persist run report", zap.Error(err))
	}
	return result, nil
}

func printResult(result *schemas.TaskResult) {
	status := "SUCCESS"
	if !result.Success {
		status = "FAILED"
		if result.Failure != schemas.FailureNone {
			status = fmt.Sprintf("FAILED (%s)", result.Failure)
		}
	}
	fmt.Printf("\n[%s] %s\n", status, result.Goal)
	fmt.Printf("  summary:  %s\n", result.Summary)
	fmt.Printf("  steps:    %d\n", result.StepsTaken)
	fmt.Printf("  duration: %s\n", result.Duration.Round(time.Millisecond))
	if result.FinalURL != "" {
		fmt.Printf("  final url: %s\n", result.FinalURL)
	}
	for k, v := range result.ContextData {
		fmt.Printf("  data.%s: %v\n", k, v)
	}
}
