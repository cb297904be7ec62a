package completion

import "fmt"

// FailureKind classifies why an invocation did not produce text.
type FailureKind string

const (
	FailureNetwork           FailureKind = "network"
	FailureAuthentication    FailureKind = "authentication"
	FailureRateLimited       FailureKind = "rate_limited"
	FailureEndpoint          FailureKind = "endpoint_error"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureEmptyResponse     FailureKind = "empty_response"
	FailureTimeout           FailureKind = "timeout"
	FailureCancelled         FailureKind = "cancelled"
	FailureInvalidRequest    FailureKind = "invalid_request"
	FailureUnknown           FailureKind = "unknown"
)

// ErrorPrefix marks failure text rendered for display.
const ErrorPrefix = "Error: "

// Failure describes an unsuccessful invocation.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Result is the outcome of one invocation: Text when OK, Failure otherwise.
type Result struct {
	OK      bool     `json:"ok"`
	Text    string   `json:"text,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func Success(text string) Result {
	return Result{OK: true, Text: text}
}

// Fail builds a failure result. An empty message is replaced so the result is never blank.
func Fail(kind FailureKind, message string) Result {
	if message == "" {
		message = fmt.Sprintf("completion failed (%s)", kind)
	}
	return Result{Failure: &Failure{Kind: kind, Message: message}}
}

// Kind returns the failure kind, or "" for a success.
func (r Result) Kind() FailureKind {
	if r.OK || r.Failure == nil {
		return ""
	}
	return r.Failure.Kind
}

// Display renders the result the way the presentation layer shows it: the model text on
// success, "Error: <message>" on failure.
func (r Result) Display() string {
	if r.OK {
		return r.Text
	}
	if r.Failure == nil {
		return ErrorPrefix + "completion failed"
	}
	return ErrorPrefix + r.Failure.Message
}
