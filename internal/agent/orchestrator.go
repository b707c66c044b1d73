// Package agent runs the observe/decide/act loop for one task: it owns
// the transcript, the loop guard, the decision rate limiter and every
// terminal condition, and it always produces exactly one TaskResult.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/browser"
	"github.com/droverhq/drover-cli/internal/config"
	"github.com/droverhq/drover-cli/internal/guard"
	"github.com/droverhq/drover-cli/internal/llm"
	"github.com/droverhq/drover-cli/internal/transcript"
)

// Decider produces the next validated action for a prompt window, along
// with the raw model text recorded in the transcript.
type Decider interface {
	Decide(ctx context.Context, window []schemas.TranscriptEntry) (schemas.ActionDecision, string, error)
}

// Environment is the browser surface the orchestrator drives.
type Environment interface {
	Snapshot(ctx context.Context) (schemas.RawSnapshot, error)
	Execute(ctx context.Context, d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome
	DetectChallenge(ctx context.Context) bool
	CaptureDiagnostics(ctx context.Context, kind string) []string
	CurrentURL(ctx context.Context) string
}

// Indexer turns raw snapshots into bounded observations.
type Indexer interface {
	Index(snap schemas.RawSnapshot) (*schemas.ObservationState, error)
}

// Orchestrator executes one task to completion.
type Orchestrator struct {
	cfg     config.AgentConfig
	env     Environment
	decider Decider
	indexer Indexer
	logger  *zap.Logger

	// sleep is swapped out by tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration)

	lastTranscript *transcript.Transcript
}

// Transcript returns the full conversation of the most recent run, for
// persistence alongside its result. Empty before the first Run.
func (o *Orchestrator) Transcript() []schemas.TranscriptEntry {
	if o.lastTranscript == nil {
		return nil
	}
	return o.lastTranscript.Entries()
}

// New wires an orchestrator over its collaborators.
func New(cfg config.AgentConfig, env Environment, decider Decider, indexer Indexer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		env:     env,
		decider: decider,
		indexer: indexer,
		logger:  logger.Named("orchestrator"),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// run carries the mutable state of one task execution.
type run struct {
	id          string
	task        schemas.Task
	transcript  *transcript.Transcript
	guard       *guard.Guard
	limiter     *rate.Limiter
	contextData map[string]interface{}
	steps       int
	startedAt   time.Time
}

// Run drives the task until a terminal condition and returns its result.
// Every exit path, including cancellation, yields a non-nil TaskResult.
func (o *Orchestrator) Run(ctx context.Context, task schemas.Task) *schemas.TaskResult {
	r := &run{
		id:          uuid.NewString(),
		task:        task,
		transcript:  transcript.New(llm.BuildSystemPrompt(task)),
		guard:       guard.New(o.cfg.LoopWindow),
		limiter:     rate.NewLimiter(rate.Every(o.cfg.DecisionInterval), 1),
		contextData: make(map[string]interface{}),
		startedAt:   time.Now(),
	}
	o.lastTranscript = r.transcript
	logger := o.logger.With(zap.String("run_id", r.id), zap.String("task_id", task.ID))
	logger.Info("Starting task", zap.String("goal", task.Goal), zap.Int("max_steps", o.cfg.MaxSteps))

	if task.StartURL != "" {
		// The opening navigation does not consume a step; its outcome is
		// recorded so the model sees a failed start and can recover.
		nav := schemas.ActionDecision{
			Kind: schemas.ActionNavigate,
			Args: map[string]interface{}{"url": task.StartURL},
		}
		outcome := o.env.Execute(ctx, nav, nil)
		if !outcome.Success {
			r.transcript.Append(schemas.RoleUser, outcome.Feedback())
			logger.Warn("Start URL navigation failed", zap.String("message", outcome.Message))
		}
	}

	for r.steps < o.cfg.MaxSteps {
		if ctx.Err() != nil {
			return o.finish(ctx, r, false, "Task cancelled before completion", schemas.FailureCancelled, ctx.Err())
		}
		r.steps++
		stepLogger := logger.With(zap.Int("step", r.steps))

		done, result := o.step(ctx, r, stepLogger)
		if done {
			return result
		}

		if o.cfg.StepDelay > 0 && r.steps < o.cfg.MaxSteps {
			o.sleep(ctx, o.stepDelay())
		}
	}

	return o.finish(ctx, r, false,
		fmt.Sprintf("Reached the maximum of %d steps before completing the task", o.cfg.MaxSteps),
		schemas.FailureMaxSteps, nil)
}

// step executes one full Observe -> Rate-limit -> Decide -> Validate ->
// Act -> Record cycle. It returns (true, result) on a terminal condition.
func (o *Orchestrator) step(ctx context.Context, r *run, logger *zap.Logger) (bool, *schemas.TaskResult) {
	// -- Observe --
	snap, err := o.env.Snapshot(ctx)
	if err != nil {
		o.env.CaptureDiagnostics(ctx, string(schemas.ErrCodeCritical))
		return true, o.finish(ctx, r, false, "Browser session lost while observing the page", schemas.FailureCritical, err)
	}
	if o.env.DetectChallenge(ctx) {
		logger.Warn("Challenge page detected", zap.String("url", snap.URL))
		return true, o.finish(ctx, r, false,
			fmt.Sprintf("Blocked by a captcha or anti-bot challenge at %s", snap.URL),
			schemas.FailureBlocked, nil)
	}
	obs, err := o.indexer.Index(snap)
	if err != nil {
		return true, o.finish(ctx, r, false, "Could not parse the page snapshot", schemas.FailureCritical, err)
	}
	r.transcript.Append(schemas.RoleUser, obs.Summary())

	// -- Rate-limit --
	if err := r.limiter.Wait(ctx); err != nil {
		return true, o.finish(ctx, r, false, "Task cancelled while rate limited", schemas.FailureCancelled, err)
	}

	// -- Decide --
	decision, raw, err := o.decider.Decide(ctx, r.transcript.Window(o.cfg.HistoryWindow))
	if err != nil {
		if ctx.Err() != nil {
			return true, o.finish(ctx, r, false, "Task cancelled during decision", schemas.FailureCancelled, ctx.Err())
		}
		return true, o.finish(ctx, r, false, "The decision model produced no usable action", schemas.FailureDecision, err)
	}
	r.transcript.Append(schemas.RoleAssistant, raw)
	logger.Info("Decided next action",
		zap.String("action", string(decision.Kind)),
		zap.String("thought", decision.Thought))

	if decision.Kind == schemas.ActionDone {
		// Reporting done means the goal was met unless the model says otherwise.
		success := decision.BoolArgDefault("success", true)
		summary := decision.StringArg("summary")
		if summary == "" {
			summary = "Task reported as finished without a summary"
		}
		failure := schemas.FailureNone
		if !success {
			failure = schemas.FailureGoalNotMet
		}
		return true, o.finish(ctx, r, success, summary, failure, nil)
	}

	// -- Validate / Act --
	outcome := o.act(ctx, r, decision, obs)

	// -- Record --
	r.transcript.Append(schemas.RoleUser, outcome.Feedback())
	if ctx.Err() != nil {
		return true, o.finish(ctx, r, false, "Task cancelled during action", schemas.FailureCancelled, ctx.Err())
	}
	if browser.IsCritical(outcome) {
		o.env.CaptureDiagnostics(ctx, string(outcome.Code))
		return true, o.finish(ctx, r, false, "Browser session failed critically: "+outcome.Message, schemas.FailureCritical, nil)
	}
	// An action can land on a challenge page; catching it here reports the
	// block for the step that caused it, even on the last allowed step.
	if o.env.DetectChallenge(ctx) {
		logger.Warn("Challenge page detected after action", zap.String("action", string(decision.Kind)))
		return true, o.finish(ctx, r, false,
			fmt.Sprintf("Blocked by a captcha or anti-bot challenge after %s", decision.Kind),
			schemas.FailureBlocked, nil)
	}
	if err := r.guard.Record(guard.NewSignature(decision, outcome.Success)); err != nil {
		var agentErr *schemas.AgentError
		msg := "Detected an unproductive action loop"
		if errors.As(err, &agentErr) {
			msg = "Detected an unproductive action loop: " + agentErr.Message
		}
		logger.Warn("Loop guard fired", zap.Error(err))
		return true, o.finish(ctx, r, false, msg, schemas.FailureLoopDetected, err)
	}
	return false, nil
}

// act validates the decision's target against the current observation
// and dispatches it. store_context is satisfied locally; everything else
// goes to the environment.
func (o *Orchestrator) act(ctx context.Context, r *run, decision schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	if id, ok := decision.ElementID(); ok && !obs.ValidID(id) {
		return schemas.ActionOutcome{
			Kind:    decision.Kind,
			Success: false,
			Code:    schemas.ErrCodeInvalidElement,
			Message: fmt.Sprintf("invalid element ID %d; valid IDs are 0..%d from the latest observation", id, len(obs.Elements)-1),
		}
	}

	if decision.Kind == schemas.ActionStoreContext {
		payload := decision.ContextPayload()
		for k, v := range payload {
			r.contextData[k] = v
		}
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		return schemas.ActionOutcome{
			Kind:    decision.Kind,
			Success: true,
			Message: fmt.Sprintf("Stored %d field(s) in task context", len(payload)),
			Data:    map[string]interface{}{"keys": keys},
		}
	}

	return o.env.Execute(ctx, decision, obs)
}

// finish assembles the single TaskResult for this run. The final URL is
// fetched on a cancellation-immune context so a cancelled run still
// reports where it ended up.
func (o *Orchestrator) finish(ctx context.Context, r *run, success bool, summary string, failure schemas.FailureKind, err error) *schemas.TaskResult {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ShutdownTimeout)
	defer cancel()

	result := &schemas.TaskResult{
		RunID:       r.id,
		TaskID:      r.task.ID,
		Goal:        r.task.Goal,
		Success:     success,
		Summary:     summary,
		StepsTaken:  r.steps,
		Duration:    time.Since(r.startedAt),
		FinalURL:    o.env.CurrentURL(shutdownCtx),
		Failure:     failure,
		ContextData: r.contextData,
		StartedAt:   r.startedAt,
		FinishedAt:  time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	o.logger.Info("Task finished",
		zap.String("run_id", r.id),
		zap.Bool("success", success),
		zap.String("failure", string(failure)),
		zap.Int("steps", r.steps),
		zap.Duration("duration", result.Duration))
	return result
}

func (o *Orchestrator) stepDelay() time.Duration {
	d := o.cfg.StepDelay
	if o.cfg.StepDelayJitter {
		// +/-50% jitter so step timing does not look mechanical.
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	return d
}
