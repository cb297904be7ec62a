package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dominion-workers/internal/common/logger"
	"dominion-workers/internal/dominion/alert"
	"dominion-workers/internal/dominion/audit"
	"dominion-workers/internal/dominion/completion"
	"dominion-workers/internal/dominion/prompt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, category string) (bool, error) {
	args := m.Called(ctx, category)
	return args.Bool(0), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, rec audit.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordInvocation(ctx context.Context, category, failureKind string, elapsed time.Duration) {
	m.Called(ctx, category, failureKind, elapsed)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Notify(ctx context.Context, a alert.Alert) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// capturingCompleter records every request and answers with reply.
type capturingCompleter struct {
	mu       sync.Mutex
	requests []completion.ChatRequest
	reply    func(req completion.ChatRequest) (*completion.ChatResponse, error)
}

func (c *capturingCompleter) Complete(ctx context.Context, req completion.ChatRequest) (*completion.ChatResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.reply(req)
}

func (c *capturingCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func replying(text string) *capturingCompleter {
	return &capturingCompleter{reply: func(completion.ChatRequest) (*completion.ChatResponse, error) {
		return &completion.ChatResponse{Choices: []string{text}}, nil
	}}
}

func newService(t *testing.T, c completion.ChatCompleter, opts ...Option) *Service {
	t.Helper()
	inv := completion.NewInvoker(completion.DefaultConfig(), c, logger.NewTestLogger(t))
	return New(inv, logger.NewTestLogger(t), opts...)
}

// ==========================
// Operations
// ==========================

func TestService_LegalDraft_EndToEnd(t *testing.T) {
	c := replying("DRAFT TEXT")
	svc := newService(t, c)

	result := svc.LegalDraft(context.Background(), "NDA", "Series B fund, Delaware")

	require.True(t, result.OK)
	assert.Equal(t, "DRAFT TEXT", result.Text)
	require.Equal(t, 1, c.calls())

	user := c.requests[0].Messages[1].Content
	assert.Contains(t, user, "NDA")
	assert.Contains(t, user, "Series B fund, Delaware")
	assert.Equal(t, completion.DefaultSystemPersona, c.requests[0].Messages[0].Content)
	assert.Equal(t, completion.DefaultModel, c.requests[0].Model)
}

func TestService_EachOperationSendsItsPrompt(t *testing.T) {
	tests := []struct {
		name     string
		call     func(s *Service) completion.Result
		expected prompt.Prompt
	}{
		{
			name:     "regops",
			call:     func(s *Service) completion.Result { return s.RegOps(context.Background(), "Cayman master, Lux feeder") },
			expected: prompt.BuildRegOpsPrompt("Cayman master, Lux feeder"),
		},
		{
			name: "lp query",
			call: func(s *Service) completion.Result {
				return s.LPQuery(context.Background(), "What is the hurdle?", "Middle East")
			},
			expected: prompt.BuildLPQueryPrompt("What is the hurdle?", "Middle East"),
		},
		{
			name:     "esg audit",
			call:     func(s *Service) completion.Result { return s.ESGAudit(context.Background(), "net zero by 2040") },
			expected: prompt.BuildESGAuditPrompt("net zero by 2040"),
		},
		{
			name:     "governance sim",
			call:     func(s *Service) completion.Result { return s.GovernanceSim(context.Background(), "3 of 5 votes") },
			expected: prompt.BuildGovernanceSimPrompt("3 of 5 votes"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := replying("ok")
			result := tt.call(newService(t, c))

			assert.True(t, result.OK)
			require.Equal(t, 1, c.calls())
			assert.Equal(t, string(tt.expected), c.requests[0].Messages[1].Content)
		})
	}
}

func TestService_Run_Outcome(t *testing.T) {
	svc := newService(t, replying("  answer  "))

	out := svc.Run(context.Background(), prompt.LPQuery("Distribution timing?", "EU"))

	assert.NotEqual(t, uuid.Nil, out.RequestID)
	assert.Equal(t, prompt.CategoryLPQuery, out.Category)
	assert.Equal(t, completion.DefaultModel, out.Model)
	assert.Equal(t, prompt.BuildLPQueryPrompt("Distribution timing?", "EU"), out.Prompt)
	assert.Equal(t, "answer", out.Result.Text)
	assert.GreaterOrEqual(t, out.Latency, time.Duration(0))
}

func TestService_Run_UnknownCategory(t *testing.T) {
	c := replying("unused")
	svc := newService(t, c)

	out := svc.Run(context.Background(), prompt.TaskRequest{Category: "tax-advice", Fields: map[string]string{}})

	assert.False(t, out.Result.OK)
	assert.Equal(t, completion.FailureInvalidRequest, out.Result.Kind())
	assert.Equal(t, 0, c.calls())
}

func TestService_FailureIsResult(t *testing.T) {
	c := &capturingCompleter{reply: func(completion.ChatRequest) (*completion.ChatResponse, error) {
		return nil, &completion.EndpointError{StatusCode: 401, Message: "Invalid API Key"}
	}}
	svc := newService(t, c)

	result := svc.ESGAudit(context.Background(), "SFDR article 8")

	assert.False(t, result.OK)
	assert.Equal(t, completion.FailureAuthentication, result.Kind())
	assert.True(t, strings.HasPrefix(result.Display(), completion.ErrorPrefix))
}

func TestService_EmptyInputsStillCallOnce(t *testing.T) {
	c := replying("degenerate but fine")
	svc := newService(t, c)

	result := svc.LegalDraft(context.Background(), "", "")

	assert.True(t, result.OK)
	assert.Equal(t, 1, c.calls())
	assert.NotEmpty(t, c.requests[0].Messages[1].Content)
}

// ==========================
// Rate Limiting
// ==========================

func TestService_RateLimited_NoOutboundCall(t *testing.T) {
	c := replying("unused")
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "governance-sim").Return(false, nil).Once()
	store := new(MockStore)
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeFailure && rec.FailureKind == "rate_limited"
	})).Return(nil).Once()

	svc := newService(t, c, WithLimiter(limiter), WithAuditStore(store))
	result := svc.GovernanceSim(context.Background(), "deadlocked board")

	assert.False(t, result.OK)
	assert.Equal(t, completion.FailureRateLimited, result.Kind())
	assert.Equal(t, 0, c.calls())
	limiter.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestService_LimiterErrorFailsOpen(t *testing.T) {
	c := replying("ok")
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "regops-analysis").Return(true, errors.New("redis down")).Once()

	result := newService(t, c, WithLimiter(limiter)).RegOps(context.Background(), "AIFMD marketing")

	assert.True(t, result.OK)
	assert.Equal(t, 1, c.calls())
}

// ==========================
// Audit and Metrics
// ==========================

func TestService_AuditsSuccess(t *testing.T) {
	store := new(MockStore)
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Category == "legal-draft" &&
			rec.Outcome == audit.OutcomeSuccess &&
			rec.FailureKind == "" &&
			rec.Model == completion.DefaultModel &&
			rec.PromptChars == len(prompt.BuildLegalDraftPrompt("LPA", "Fund III")) &&
			rec.RequestID != uuid.Nil
	})).Return(nil).Once()

	result := newService(t, replying("ok"), WithAuditStore(store)).LegalDraft(context.Background(), "LPA", "Fund III")

	assert.True(t, result.OK)
	store.AssertExpectations(t)
}

func TestService_AuditFailureDoesNotChangeResult(t *testing.T) {
	store := new(MockStore)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	result := newService(t, replying("DRAFT TEXT"), WithAuditStore(store)).LegalDraft(context.Background(), "NDA", "x")

	assert.True(t, result.OK)
	assert.Equal(t, "DRAFT TEXT", result.Text)
	store.AssertExpectations(t)
}

func TestService_AuditRunsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &capturingCompleter{reply: func(completion.ChatRequest) (*completion.ChatResponse, error) {
		cancel()
		return nil, context.Canceled
	}}
	store := new(MockStore)
	store.On("Save", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(nil).Once()

	result := newService(t, c, WithAuditStore(store)).ESGAudit(ctx, "x")

	assert.Equal(t, completion.FailureCancelled, result.Kind())
	store.AssertExpectations(t)
}

func TestService_RecordsMetrics(t *testing.T) {
	recorder := new(MockRecorder)
	recorder.On("RecordInvocation", mock.Anything, "lp-query", "", mock.AnythingOfType("time.Duration")).Once()
	recorder.On("RecordInvocation", mock.Anything, "lp-query", "network", mock.AnythingOfType("time.Duration")).Once()

	calls := 0
	c := &capturingCompleter{reply: func(completion.ChatRequest) (*completion.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &completion.ChatResponse{Choices: []string{"ok"}}, nil
		}
		return nil, &netErr{}
	}}
	svc := newService(t, c, WithRecorder(recorder))

	svc.LPQuery(context.Background(), "q", "US")
	svc.LPQuery(context.Background(), "q", "US")

	recorder.AssertExpectations(t)
}

func TestService_AlertsOnFailureOnly(t *testing.T) {
	alerter := new(MockAlerter)
	alerter.On("Notify", mock.Anything, mock.MatchedBy(func(a alert.Alert) bool {
		return a.Kind == "authentication" &&
			a.Category == "legal-draft" &&
			a.RequestID != uuid.Nil &&
			strings.Contains(a.Message, "Invalid API Key")
	})).Return(errors.New("sns throttled")).Once()

	calls := 0
	c := &capturingCompleter{reply: func(completion.ChatRequest) (*completion.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &completion.ChatResponse{Choices: []string{"ok"}}, nil
		}
		return nil, &completion.EndpointError{StatusCode: 401, Message: "Invalid API Key"}
	}}
	svc := newService(t, c, WithAlerter(alerter))

	assert.True(t, svc.LegalDraft(context.Background(), "NDA", "x").OK)
	failed := svc.LegalDraft(context.Background(), "NDA", "x")

	assert.Equal(t, completion.FailureAuthentication, failed.Kind())
	alerter.AssertExpectations(t)
}

type netErr struct{}

func (netErr) Error() string   { return "dial tcp: connection refused" }
func (netErr) Timeout() bool   { return false }
func (netErr) Temporary() bool { return false }

// ==========================
// Concurrency
// ==========================

func TestService_ConcurrentRuns(t *testing.T) {
	c := &capturingCompleter{reply: func(req completion.ChatRequest) (*completion.ChatResponse, error) {
		return &completion.ChatResponse{Choices: []string{req.Messages[1].Content}}, nil
	}}
	svc := newService(t, c)

	var wg sync.WaitGroup
	contexts := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	results := make([]completion.Result, len(contexts))
	for i, text := range contexts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			results[i] = svc.RegOps(context.Background(), text)
		}(i, text)
	}
	wg.Wait()

	assert.Equal(t, len(contexts), c.calls())
	for i, text := range contexts {
		assert.Equal(t, string(prompt.BuildRegOpsPrompt(text)), results[i].Text)
	}
}
