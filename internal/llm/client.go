package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client is an abstraction over generation backends
type Client interface {
	// Generate runs one completion against the backend
	Generate(ctx context.Context, req Request) (*Response, error)
	// Vendor reports which backend this client talks to
	Vendor() Vendor
	// Close releases any resources held by the client
	Close() error
}

// Request is a single completion request
type Request struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool
	Temperature float32
	MaxTokens   int
}

// Usage holds token counters in prompt/completion naming
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized backend output
type Response struct {
	Text      string
	Reasoning string
	Model     string
	Usage     Usage
}

// Credentials carries what a vendor client needs, read at resolve time
type Credentials struct {
	APIKey  string
	BaseURL string
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, creds Credentials) (*GeminiClient, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(creds.APIKey)}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(creds.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Generate generates content with the requested model
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, &BackendError{Vendor: VendorGoogle, Message: "no model specified"}
	}

	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, geminiError(err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &BackendError{Vendor: VendorGoogle, Message: "empty response", Cause: err}
	}

	out := &Response{Text: text, Model: req.Model}
	if md := resp.UsageMetadata; md != nil {
		out.Usage = Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return out, nil
}

// Vendor returns VendorGoogle
func (c *GeminiClient) Vendor() Vendor {
	return VendorGoogle
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// geminiError maps gRPC and REST failures to a BackendError with an HTTP-like status
func geminiError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Vendor: VendorGoogle, StatusCode: http.StatusRequestTimeout, Message: "deadline exceeded", Cause: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &BackendError{Vendor: VendorGoogle, StatusCode: apiErr.Code, Message: apiErr.Message, Cause: err}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return &BackendError{Vendor: VendorGoogle, StatusCode: grpcToHTTP(st.Code()), Message: st.Message(), Cause: err}
	}

	return &BackendError{Vendor: VendorGoogle, Message: "generate content", Cause: err}
}

func grpcToHTTP(code codes.Code) int {
	switch code {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusRequestTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Internal:
		return http.StatusInternalServerError
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// unavailableClient fails every call; returned when even the default cannot be built
type unavailableClient struct {
	vendor Vendor
	cause  error
}

func (c unavailableClient) Generate(_ context.Context, _ Request) (*Response, error) {
	return nil, &BackendError{Vendor: c.vendor, Message: "client unavailable", Cause: c.cause}
}

func (c unavailableClient) Vendor() Vendor { return c.vendor }

func (c unavailableClient) Close() error { return nil }
