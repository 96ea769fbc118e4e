// File: internal/agent/agent.go
// Description: The task execution loop. One Agent drives one device; each
// Execute call owns its conversation history, token counter and stuck state,
// so concurrent executions on separate agents cannot cross-contaminate.

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/config"
	"github.com/SerupAI/mobiledroid/internal/device"
	"github.com/SerupAI/mobiledroid/internal/integration"
)

// Sampler produces device snapshots. Satisfied by device.Sampler.
type Sampler interface {
	Sample(ctx context.Context) (*schemas.DeviceSnapshot, error)
}

// ActionExecutor performs actions against the device. Satisfied by
// device.Executor. Transport failures come back inside the result map.
type ActionExecutor interface {
	Execute(ctx context.Context, action schemas.Action, width, height int) map[string]any
}

// Resolver selects the LLM integration for a purpose. Satisfied by
// integration.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, purpose string) (*integration.Integration, error)
}

// ClientFactory builds a provider client for a resolved integration.
// Normally llmclient.New.
type ClientFactory func(in *integration.Integration, timeout time.Duration, logger *zap.Logger) (schemas.LLMClient, error)

// Agent executes natural-language tasks against one device.
type Agent struct {
	sampler  Sampler
	executor ActionExecutor
	resolver Resolver
	clients  ClientFactory
	cfg      config.AgentConfig
	llmCfg   config.LLMConfig
	logger   *zap.Logger

	sink  schemas.StepSink
	steps chan schemas.StepRecord

	sleep func(ctx context.Context, d time.Duration)
}

// Option configures an Agent.
type Option func(*Agent)

// WithStepSink attaches a sink that receives every step record. Sink errors
// are logged and never fail the task.
func WithStepSink(sink schemas.StepSink) Option {
	return func(a *Agent) { a.sink = sink }
}

// New creates an agent. The step channel is buffered per config; records are
// dropped, not blocked on, when no one is draining it.
func New(sampler Sampler, executor ActionExecutor, resolver Resolver, clients ClientFactory, cfg config.AgentConfig, llmCfg config.LLMConfig, logger *zap.Logger, opts ...Option) *Agent {
	a := &Agent{
		sampler:  sampler,
		executor: executor,
		resolver: resolver,
		clients:  clients,
		cfg:      cfg,
		llmCfg:   llmCfg,
		logger:   logger.Named("agent"),
		steps:    make(chan schemas.StepRecord, cfg.StepBuffer),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Steps exposes the live step stream. The channel is never closed; consumers
// should select against their own done signal.
func (a *Agent) Steps() <-chan schemas.StepRecord {
	return a.steps
}

// execution is the per-task mutable state. It lives and dies inside one
// Execute call.
type execution struct {
	history     []schemas.Message
	steps       []schemas.StepRecord
	totalTokens int
	detector    *StuckDetector
}

func (e *execution) lastActions(n int) []schemas.Action {
	start := len(e.steps) - n
	if start < 0 {
		start = 0
	}
	actions := make([]schemas.Action, 0, n)
	for _, s := range e.steps[start:] {
		actions = append(actions, s.Action)
	}
	return actions
}

// Execute runs the task to a terminal state. Every termination path yields a
// TaskResult carrying the full step trail; the caller is never left without
// an explanation of why automation stopped. A maxSteps of zero or less uses
// the configured default.
func (a *Agent) Execute(ctx context.Context, task, outputFormat string, maxSteps int) *schemas.TaskResult {
	if maxSteps <= 0 {
		maxSteps = a.cfg.MaxSteps
	}
	a.logger.Info("starting task execution", zap.String("task", task), zap.Int("max_steps", maxSteps))

	exec := &execution{
		detector: NewStuckDetector(a.cfg.StuckThreshold, a.cfg.MaxRecoveryAttempts, a.logger),
	}
	prompt := taskPrompt(task, outputFormat)

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("task cancelled", zap.Int("step", step), zap.Error(err))
			return a.finalize(exec, schemas.StateCancelled, "", fmt.Sprintf("task cancelled at step %d: %v", step, err))
		}
		a.logger.Info("executing step", zap.Int("step", step))

		snapshot, err := a.sampler.Sample(ctx)
		if err != nil {
			return a.finalize(exec, schemas.StateFailed, "", fmt.Sprintf("step %d failed: %v", step, err))
		}

		if a.stuck(exec, device.Fingerprint(snapshot)) {
			if done := a.recoverStep(ctx, exec, step, snapshot); done != nil {
				return done
			}
			a.sleep(ctx, a.cfg.StepDelay)
			continue
		}
		if exec.detector.Exhausted() {
			return a.finalize(exec, schemas.StateFailed, "",
				fmt.Sprintf("stuck after %d steps, no recovery strategy available", step))
		}

		action, err := a.decide(ctx, exec, prompt, step, snapshot)
		if err != nil {
			return a.finalize(exec, schemas.StateFailed, "", err.Error())
		}

		result := a.executor.Execute(ctx, action, snapshot.Width, snapshot.Height)
		a.record(exec, step, action, result, false)

		switch action.Kind {
		case schemas.KindDone:
			a.logger.Info("task completed", zap.String("result", action.Done.Result))
			return a.finalize(exec, schemas.StateDone, action.Done.Result, "")
		case schemas.KindFail:
			a.logger.Warn("task failed", zap.String("reason", action.Fail.Reason))
			return a.finalize(exec, schemas.StateFailed, "", action.Fail.Reason)
		}

		a.sleep(ctx, a.cfg.StepDelay)
	}

	a.logger.Warn("max steps reached", zap.Int("max_steps", maxSteps))
	return a.finalize(exec, schemas.StateTimedOut, "",
		fmt.Sprintf("task did not complete within %d steps", maxSteps))
}

func (a *Agent) stuck(exec *execution, fingerprint string) bool {
	return exec.detector.Observe(fingerprint)
}

// recoverStep runs one rung of the recovery ladder instead of consulting the
// model. A nil return means the loop continues; a non-nil result terminates
// the task.
func (a *Agent) recoverStep(ctx context.Context, exec *execution, step int, snapshot *schemas.DeviceSnapshot) *schemas.TaskResult {
	attempt := exec.detector.RecordAttempt()
	action, ok := PlanRecovery(exec.lastActions(3), attempt)
	if !ok {
		return a.finalize(exec, schemas.StateFailed, "",
			fmt.Sprintf("stuck after %d steps, no recovery strategy available", step))
	}

	a.logger.Info("executing recovery action",
		zap.Int("step", step),
		zap.Int("attempt", attempt),
		zap.String("action", action.String()),
	)
	result := a.executor.Execute(ctx, action, snapshot.Width, snapshot.Height)
	a.record(exec, step, action, result, true)
	return nil
}

// decide resolves the integration, calls the model and parses its response.
// The returned action is always valid; only infrastructure failures (no
// integration, LLM call error) surface as errors.
func (a *Agent) decide(ctx context.Context, exec *execution, prompt string, step int, snapshot *schemas.DeviceSnapshot) (schemas.Action, error) {
	in, err := a.resolver.Resolve(ctx, a.llmCfg.Purpose)
	if err != nil {
		return schemas.Action{}, fmt.Errorf("no usable LLM integration: %w", err)
	}

	client, err := a.clients(in, a.llmCfg.APITimeout, a.logger)
	if err != nil {
		return schemas.Action{}, fmt.Errorf("failed to build LLM client: %w", err)
	}

	userMsg := buildStepMessage(prompt, step, snapshot, exec.detector.Attempts())
	req := schemas.ChatRequest{
		System:      systemPrompt,
		Messages:    append(append([]schemas.Message{}, exec.history...), userMsg),
		Model:       in.Model,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	}

	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return schemas.Action{}, fmt.Errorf("LLM call failed at step %d: %w", step, err)
	}

	exec.totalTokens += resp.TokensUsed
	exec.history = append(exec.history, userMsg, schemas.Message{
		Role:    "assistant",
		Content: []schemas.ContentPart{{Text: resp.Text}},
	})

	return ParseAction(resp.Text), nil
}

// record appends a step, notifies the sink and publishes on the step channel
// without ever blocking the loop.
func (a *Agent) record(exec *execution, step int, action schemas.Action, result map[string]any, recovery bool) {
	rec := schemas.StepRecord{
		ID:         uuid.NewString(),
		StepNumber: step,
		Action:     action,
		Result:     result,
		Recovery:   recovery,
		Timestamp:  time.Now().UTC(),
	}
	exec.steps = append(exec.steps, rec)

	if a.sink != nil {
		if err := a.sink.OnStep(rec); err != nil {
			a.logger.Warn("step sink failed", zap.Int("step", step), zap.Error(err))
		}
	}

	select {
	case a.steps <- rec:
	default:
		a.logger.Debug("step channel full, dropping record", zap.Int("step", step))
	}
}

func (a *Agent) finalize(exec *execution, state schemas.ExecutionState, result, errMsg string) *schemas.TaskResult {
	return &schemas.TaskResult{
		State:       state,
		Success:     state == schemas.StateDone,
		Result:      result,
		Error:       errMsg,
		Steps:       exec.steps,
		TotalTokens: exec.totalTokens,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
