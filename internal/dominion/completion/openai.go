package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is Groq's OpenAI-compatible API root.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one HTTP exchange; zero keeps the transport default.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAICompleter talks to any OpenAI-compatible chat-completion endpoint.
type OpenAICompleter struct {
	client openai.Client
}

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAICompleter{client: client}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	})
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	if resp == nil {
		return nil, &MalformedResponseError{Err: errors.New("nil completion")}
	}

	out := &ChatResponse{Choices: make([]string, 0, len(resp.Choices))}
	for i, choice := range resp.Choices {
		// A null or absent content field decodes to "" and must not pass for an answer.
		if !choice.Message.JSON.Content.Valid() {
			return nil, &MalformedResponseError{Err: fmt.Errorf("choice %d has no message content", i)}
		}
		out.Choices = append(out.Choices, choice.Message.Content)
	}
	return out, nil
}

func translateOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &EndpointError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &MalformedResponseError{Err: err}
	}
	if strings.Contains(err.Error(), "error parsing response json") {
		return &MalformedResponseError{Err: err}
	}
	return err
}
