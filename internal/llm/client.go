// Package llm talks to an OpenAI compatible chat-completions endpoint and
// builds the planning prompts sent to it.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/httpclient"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the first choice of a completion.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
}

// Text exposes the reply so it can be handed straight to extract.Extract.
func (r Response) Text() string { return r.Content }

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// Client implements chat completions.
type Client struct {
	http        *httpclient.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewClient creates a chat client. BaseURL defaults to the public OpenAI API.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		http:        httpclient.New(opts.Timeout, logger),
		apiKey:      opts.APIKey,
		baseURL:     base,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}
}

// Complete sends messages and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (Response, error) {
	if len(messages) == 0 {
		return Response{}, fmt.Errorf("no messages to send")
	}
	body := request{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	c.logger.Debug("sending completion request", zap.String("model", c.model), zap.Int("messages", len(messages)))
	var out response
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", headers, body, &out); err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("no choices in response")
	}
	return Response{
		Content:      out.Choices[0].Message.Content,
		Model:        out.Model,
		FinishReason: out.Choices[0].FinishReason,
	}, nil
}

// Ask wraps a single user prompt into a completion call.
func (c *Client) Ask(ctx context.Context, prompt string) (Response, error) {
	return c.Complete(ctx, []Message{{Role: "user", Content: prompt}})
}

// AddCompletion appends the assistant's reply to the conversation.
func AddCompletion(messages []Message, resp Response) []Message {
	return append(messages, Message{Role: "assistant", Content: resp.Content})
}

// StripJSONFence removes a surrounding ```json ... ``` fence.
func StripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
