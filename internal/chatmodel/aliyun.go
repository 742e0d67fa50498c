package chatmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/ratelimit"
	"ai-agent-go/internal/tracing"
)

var chatTracer = otel.Tracer("ai-agent-go/chatmodel")

type openAIChatRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIChatChoice struct {
	Index        int                `json:"index"`
	Message      openAIChatMessage  `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type openAIChatResponse struct {
	Choices []openAIChatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AliyunClient implements Client against an OpenAI-compatible chat
// completions endpoint (Aliyun DashScope's qwen family), the way the
// teacher's AliyunQwenChatModel does. It never binds tools — the core's
// re-ranker and filter only need plain completions — and it never
// retries a failed call, gating every request through a token bucket
// instead.
type AliyunClient struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *ratelimit.TokenBucket
}

// NewAliyunClient builds a chat client from a chat model config. qpm
// overrides cfg.QPM when the caller has a model-specific limit (see
// Config.QPMFor).
func NewAliyunClient(apiKey string, cfg config.ChatModelConfig, qpm int) (*AliyunClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chat model api key cannot be empty")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "qwen-plus"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	}
	if qpm <= 0 {
		qpm = 600
	}

	return &AliyunClient{
		apiKey:      apiKey,
		model:       modelName,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     ratelimit.NewTokenBucket(qpm, 0),
	}, nil
}

// Generate sends messages to the provider and returns its single
// completion message. It is the only method the core's re-ranker and
// filter actually call.
func (a *AliyunClient) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	ctx, span := chatTracer.Start(ctx, "AliyunClient.Generate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("chatmodel.model", a.model), attribute.Int("chatmodel.message_count", len(messages)))

	if err := a.limiter.Wait(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := openAIChatRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("chat provider returned status %d: %s", resp.StatusCode, tracing.TruncateString(string(body), tracing.DefaultMaxLength))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return nil, err
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if parsed.Error != nil {
		err := fmt.Errorf("chat provider error: %s", parsed.Error.Message)
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeLLM, attribute.String("chatmodel.error_type", parsed.Error.Type))
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat provider returned no choices")
	}

	content := ""
	if parsed.Choices[0].Message.Content != nil {
		content = *parsed.Choices[0].Message.Content
	}
	return &schema.Message{
		Role:    schema.RoleType("assistant"),
		Content: content,
	}, nil
}

// Stream is not implemented; the core never streams partial results
// (spec's explicit Non-goal).
func (a *AliyunClient) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("chatmodel: streaming is not supported")
}

// BindTools is a no-op; nothing in this core drives tool-calling.
func (a *AliyunClient) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools satisfies model.ToolCallingChatModel without changing
// behavior, since BindTools is already a no-op.
func (a *AliyunClient) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return a, nil
}

var _ Client = (*AliyunClient)(nil)
