// Package agent exposes the five institutional-intelligence operations. Each call builds a
// prompt, passes the optional rate limiter, performs exactly one completion call and records
// the outcome. Failures are returned as results, never as errors.
package agent

import (
	"context"
	"fmt"
	"time"

	apperrors "dominion-workers/internal/common/errors"
	"dominion-workers/internal/common/logger"
	"dominion-workers/internal/common/metrics"
	"dominion-workers/internal/dominion/alert"
	"dominion-workers/internal/dominion/audit"
	"dominion-workers/internal/dominion/completion"
	"dominion-workers/internal/dominion/prompt"

	"github.com/google/uuid"
)

const auditTimeout = 5 * time.Second

type Invoker interface {
	Invoke(ctx context.Context, p prompt.Prompt) completion.Result
	Config() completion.Config
}

type Limiter interface {
	Allow(ctx context.Context, category string) (bool, error)
}

type Recorder interface {
	RecordInvocation(ctx context.Context, category, failureKind string, elapsed time.Duration)
}

// Alerter is told about every failed completion and decides itself whether to page anyone.
type Alerter interface {
	Notify(ctx context.Context, a alert.Alert) error
}

// Outcome is the full record of one Run.
type Outcome struct {
	RequestID uuid.UUID
	Category  prompt.Category
	Model     string
	Prompt    prompt.Prompt
	Result    completion.Result
	Latency   time.Duration
}

type Option func(*Service)

func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithAuditStore(store audit.Store) Option {
	return func(s *Service) { s.audit = store }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// Service is safe for concurrent use once constructed.
type Service struct {
	invoker  Invoker
	limiter  Limiter
	audit    audit.Store
	recorder Recorder
	alerter  Alerter
	logger   logger.Logger
}

func New(invoker Invoker, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Service{
		invoker: invoker,
		audit:   audit.Nop{},
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes req.
func (s *Service) Run(ctx context.Context, req prompt.TaskRequest) Outcome {
	start := time.Now()
	out := Outcome{
		RequestID: uuid.New(),
		Category:  req.Category,
		Model:     s.invoker.Config().Model,
	}
	log := s.logger.With(map[string]interface{}{
		"requestId": out.RequestID.String(),
		"category":  string(req.Category),
	})

	p, err := prompt.Build(req)
	if err != nil {
		log.Warn("rejected task request", map[string]interface{}{"error": err})
		out.Result = completion.Fail(completion.FailureInvalidRequest, err.Error())
		out.Latency = time.Since(start)
		return out
	}
	out.Prompt = p

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, string(req.Category))
		if err != nil {
			log.Warn("rate limiter error ignored", map[string]interface{}{"error": err})
		}
		if !allowed {
			metrics.RateLimitRejections.WithLabelValues(string(req.Category)).Inc()
			out.Result = completion.Fail(completion.FailureRateLimited,
				fmt.Sprintf("outbound rate limit reached for %s", req.Category))
			out.Latency = time.Since(start)
			s.finish(ctx, log, out)
			return out
		}
	}

	out.Result = s.invoker.Invoke(ctx, p)
	out.Latency = time.Since(start)
	s.finish(ctx, log, out)
	return out
}

func (s *Service) finish(ctx context.Context, log logger.Logger, out Outcome) {
	kind := string(out.Result.Kind())
	if s.recorder != nil {
		s.recorder.RecordInvocation(ctx, string(out.Category), kind, out.Latency)
	}

	rec := audit.Record{
		ID:          uuid.New(),
		RequestID:   out.RequestID,
		Category:    string(out.Category),
		Model:       out.Model,
		PromptChars: len(out.Prompt),
		Outcome:     audit.OutcomeSuccess,
		FailureKind: kind,
		LatencyMS:   out.Latency.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if !out.Result.OK {
		rec.Outcome = audit.OutcomeFailure
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.audit.Save(auditCtx, rec); err != nil {
		stdErr := apperrors.NewAuditWriteFailedError(err)
		log.Error("audit write failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Details,
		})
	}

	if s.alerter != nil && !out.Result.OK && out.Result.Failure != nil {
		err := s.alerter.Notify(auditCtx, alert.Alert{
			RequestID: out.RequestID,
			Category:  string(out.Category),
			Model:     out.Model,
			Kind:      kind,
			Message:   out.Result.Failure.Message,
			At:        rec.CreatedAt,
		})
		if err != nil {
			log.Warn("alert delivery failed", map[string]interface{}{"error": err})
		}
	}
}

func (s *Service) LegalDraft(ctx context.Context, docType, background string) completion.Result {
	return s.Run(ctx, prompt.LegalDraft(docType, background)).Result
}

func (s *Service) RegOps(ctx context.Context, exposure string) completion.Result {
	return s.Run(ctx, prompt.RegOps(exposure)).Result
}

func (s *Service) LPQuery(ctx context.Context, question, region string) completion.Result {
	return s.Run(ctx, prompt.LPQuery(question, region)).Result
}

func (s *Service) ESGAudit(ctx context.Context, strategy string) completion.Result {
	return s.Run(ctx, prompt.ESGAudit(strategy)).Result
}

func (s *Service) GovernanceSim(ctx context.Context, conditions string) completion.Result {
	return s.Run(ctx, prompt.GovernanceSim(conditions)).Result
}
