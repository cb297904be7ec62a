// Package completion sends a built prompt to the remote chat-completion endpoint and
// normalizes the outcome into a Result. Invoke never returns an error and never panics.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"dominion-workers/internal/common/logger"
	"dominion-workers/internal/dominion/prompt"
)

const (
	DefaultModel         = "llama-3.1-8b-instant"
	DefaultSystemPersona = "You are Dominion AI, a sovereign-scale institutional intelligence layer for funds, legal, LPs, ESG, compliance and cross-border financial strategy."
)

// Config is fixed for the lifetime of the process.
type Config struct {
	Model         string
	SystemPersona string
}

// DefaultConfig returns the model and persona used when configuration leaves them empty.
func DefaultConfig() Config {
	return Config{Model: DefaultModel, SystemPersona: DefaultSystemPersona}
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.SystemPersona == "" {
		c.SystemPersona = DefaultSystemPersona
	}
	return c
}

// Invoker is stateless after construction and safe for concurrent use.
type Invoker struct {
	config    Config
	completer ChatCompleter
	logger    logger.Logger
}

func NewInvoker(config Config, completer ChatCompleter, log logger.Logger) *Invoker {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	config = config.withDefaults()
	return &Invoker{
		config:    config,
		completer: completer,
		logger:    log.With(map[string]interface{}{"model": config.Model}),
	}
}

// Config returns the effective configuration.
func (i *Invoker) Config() Config {
	return i.config
}

// Messages returns the exchange sent for p: the system persona followed by the prompt.
func (i *Invoker) Messages(p prompt.Prompt) []Message {
	return []Message{
		{Role: RoleSystem, Content: i.config.SystemPersona},
		{Role: RoleUser, Content: string(p)},
	}
}

// Invoke performs exactly one completion call for p.
func (i *Invoker) Invoke(ctx context.Context, p prompt.Prompt) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Fail(FailureUnknown, fmt.Sprintf("completion panicked: %v", r))
		}
		i.logResult(result, len(p), time.Since(start))
	}()

	if i.completer == nil {
		return Fail(FailureInvalidRequest, "completion client is not configured")
	}

	resp, err := i.completer.Complete(ctx, ChatRequest{
		Model:    i.config.Model,
		Messages: i.Messages(p),
	})
	if err != nil {
		return Fail(Classify(err), err.Error())
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Fail(FailureEmptyResponse, "completion response contained no choices")
	}

	text := strings.TrimSpace(resp.Choices[0])
	if text == "" {
		return Fail(FailureEmptyResponse, "completion response contained no text")
	}
	return Success(text)
}

func (i *Invoker) logResult(result Result, promptChars int, elapsed time.Duration) {
	fields := map[string]interface{}{
		"promptChars": promptChars,
		"latencyMs":   elapsed.Milliseconds(),
	}
	if result.OK {
		fields["responseChars"] = len(result.Text)
		i.logger.Info("completion succeeded", fields)
		return
	}
	fields["failureKind"] = string(result.Kind())
	fields["error"] = result.Failure.Message
	i.logger.Error("completion failed", fields)
}

// Classify maps a transport error onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}

	var endpointErr *EndpointError
	if errors.As(err, &endpointErr) {
		switch {
		case endpointErr.StatusCode == http.StatusUnauthorized, endpointErr.StatusCode == http.StatusForbidden:
			return FailureAuthentication
		case endpointErr.StatusCode == http.StatusTooManyRequests:
			return FailureRateLimited
		case endpointErr.StatusCode == http.StatusBadRequest, endpointErr.StatusCode == http.StatusNotFound,
			endpointErr.StatusCode == http.StatusUnprocessableEntity:
			return FailureInvalidRequest
		default:
			return FailureEndpoint
		}
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return FailureMalformedResponse
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}

	return FailureUnknown
}
