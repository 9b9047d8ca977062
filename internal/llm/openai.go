package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const openAIRequestTimeout = 120 * time.Second

// OpenAIClient implements Client for OpenAI-compatible chat completion APIs.
// It serves both the OpenAI API and the Workers AI gateway.
type OpenAIClient struct {
	client *openai.Client
	vendor Vendor
}

// NewOpenAIClient creates a client for the OpenAI API
func NewOpenAIClient(creds Credentials) (*OpenAIClient, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cfg := openai.DefaultConfig(creds.APIKey)
	if creds.BaseURL != "" {
		cfg.BaseURL = creds.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: openAIRequestTimeout}

	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), vendor: VendorOpenAI}, nil
}

// NewWorkersAIClient creates a client for the Workers AI OpenAI-compatible gateway.
// Responses pass through a transport that rewrites them into chat completion shape.
func NewWorkersAIClient(creds Credentials) (*OpenAIClient, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if creds.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}

	cfg := openai.DefaultConfig(creds.APIKey)
	cfg.BaseURL = creds.BaseURL
	cfg.HTTPClient = &http.Client{
		Timeout:   openAIRequestTimeout,
		Transport: &rewriteTransport{base: http.DefaultTransport},
	}

	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), vendor: VendorWorkersAI}, nil
}

// Generate runs one chat completion
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, &BackendError{Vendor: c.vendor, Message: "no model specified"}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	ccr := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, openAIError(c.vendor, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BackendError{Vendor: c.vendor, Message: "no choices in response"}
	}

	msg := resp.Choices[0].Message
	return &Response{
		Text:      msg.Content,
		Reasoning: msg.ReasoningContent,
		Model:     resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Vendor reports the backend this client talks to
func (c *OpenAIClient) Vendor() Vendor {
	return c.vendor
}

// Close is a no-op; the HTTP client holds no dedicated resources
func (c *OpenAIClient) Close() error {
	return nil
}

func openAIError(vendor Vendor, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Vendor: vendor, StatusCode: http.StatusRequestTimeout, Message: "deadline exceeded", Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Vendor: vendor, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Cause: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &BackendError{Vendor: vendor, StatusCode: reqErr.HTTPStatusCode, Message: "request failed", Cause: err}
	}

	return &BackendError{Vendor: vendor, Message: "chat completion", Cause: err}
}
