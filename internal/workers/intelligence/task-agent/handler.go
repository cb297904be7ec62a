// internal/workers/intelligence/task-agent/handler.go
package taskagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "dominion-workers/internal/common/errors"
	"dominion-workers/internal/common/logger"
	"dominion-workers/internal/common/metrics"
	"dominion-workers/internal/common/validation"
	"dominion-workers/internal/dominion/agent"
	"dominion-workers/internal/dominion/completion"
	"dominion-workers/internal/dominion/prompt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	jobStatusCompleted = "completed"
	jobStatusFailed    = "failed"
)

type Runner interface {
	Run(ctx context.Context, req prompt.TaskRequest) agent.Outcome
}

// JobRecorder receives per-job telemetry. *observability.Observability satisfies it.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, status string)
	RecordJobDuration(ctx context.Context, duration time.Duration, status string)
}

// Handler serves one task category. The category name is the Zeebe task type.
type Handler struct {
	category     prompt.Category
	schema       prompt.Schema
	config       *Config
	runner       Runner
	validator    *validation.Validator
	errorHandler *apperrors.ErrorHandler
	recorder     JobRecorder
	logger       logger.Logger
}

func NewHandler(category prompt.Category, config *Config, runner Runner, recorder JobRecorder, log logger.Logger) (*Handler, error) {
	schema, ok := prompt.Lookup(category)
	if !ok {
		return nil, apperrors.NewUnknownTaskCategoryError(string(category))
	}

	validator, err := validation.Compile(InputSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("compile %s input schema: %w", category, err)
	}

	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.With(map[string]interface{}{"taskType": string(category)})

	return &Handler{
		category:     category,
		schema:       schema,
		config:       config,
		runner:       runner,
		validator:    validator,
		errorHandler: apperrors.NewErrorHandler(log),
		recorder:     recorder,
		logger:       log,
	}, nil
}

// TaskType returns the Zeebe job type served by h.
func (h *Handler) TaskType() string {
	return string(h.category)
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	variables, err := job.GetVariablesAsMap()
	if err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidTaskInputError(fmt.Sprintf("parse variables: %v", err)), start)
		return
	}

	output, err := h.Execute(ctx, variables)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

// Execute validates variables and runs the task. The returned error is always a
// *errors.StandardError describing invalid input; completion failures are reported
// inside Output.
func (h *Handler) Execute(ctx context.Context, variables map[string]interface{}) (*Output, error) {
	result := h.validator.Validate(variables)
	if !result.Valid {
		return nil, apperrors.NewInvalidTaskInputError(strings.Join(result.GetErrorMessages(), "; ")).
			WithMetadata("category", string(h.category))
	}

	req := prompt.TaskRequest{Category: h.category, Fields: make(map[string]string, len(h.schema.Fields))}
	for _, name := range h.schema.FieldNames() {
		req.Fields[name], _ = variables[name].(string)
	}

	out := h.runner.Run(ctx, req)
	return toOutput(out), nil
}

func toOutput(out agent.Outcome) *Output {
	o := &Output{
		Text:      out.Result.Display(),
		RequestID: out.RequestID.String(),
		Category:  string(out.Category),
		Model:     out.Model,
	}
	if out.Result.OK {
		return o
	}

	var stdErr *apperrors.StandardError
	if out.Result.Kind() == completion.FailureRateLimited {
		stdErr = apperrors.NewRateLimitedError(out.Result.Failure.Message)
	} else {
		message := ""
		if out.Result.Failure != nil {
			message = out.Result.Failure.Message
		}
		stdErr = apperrors.NewCompletionFailedError(string(out.Result.Kind()), message)
	}

	o.Error = true
	o.ErrorKind = string(out.Result.Kind())
	o.ErrorCode = string(stdErr.Code)
	o.ErrorMessage = stdErr.Details
	return o
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, apperrors.NewExternalServiceError("zeebe", fmt.Errorf("encode variables: %w", err)), start)
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.record(ctx, jobStatusFailed, start)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(h.TaskType()).Inc()
	h.record(ctx, jobStatusCompleted, start)
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.Key,
		"requestId": output.RequestID,
		"error":     output.Error,
		"errorKind": output.ErrorKind,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(h.TaskType(), string(stdErr.Code)).Inc()
	h.record(ctx, jobStatusFailed, start)
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) record(ctx context.Context, status string, start time.Time) {
	if h.recorder == nil {
		return
	}
	h.recorder.RecordJobProcessed(ctx, status)
	h.recorder.RecordJobDuration(ctx, time.Since(start), status)
}
