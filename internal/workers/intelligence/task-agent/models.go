// internal/workers/intelligence/task-agent/models.go
package taskagent

// Output is written back to the process instance. On a completion failure the job still
// completes: Error is true, Text carries the "Error: ..." display string and ErrorKind lets
// the process branch without parsing text.
type Output struct {
	Text         string `json:"text"`
	RequestID    string `json:"requestId"`
	Category     string `json:"category"`
	Model        string `json:"model"`
	Error        bool   `json:"error"`
	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
