package completion

import (
	"context"
	"fmt"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// ChatResponse holds the text of every returned choice, in order.
type ChatResponse struct {
	Choices []string
}

// ChatCompleter submits one chat-completion request. Implementations must be safe for
// concurrent use and must not retry.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// EndpointError is a non-2xx answer from the completion endpoint.
type EndpointError struct {
	StatusCode int
	Message    string
}

func (e *EndpointError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("completion endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// MalformedResponseError wraps a response body that could not be decoded.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed completion response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// CompleterFunc adapts a function to ChatCompleter.
type CompleterFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

func (f CompleterFunc) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}
