package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"burnex/pkg/contract"
)

// OpenAI 兼容后端（chat completions + JSON Schema 响应格式）。
// 与 gemini 端同一契约：单次调用、首个候选、不重试。

// Options: 最小必需配置。
type Options struct {
	BaseURL        string // 为空使用官方端点；可指向任意 OpenAI 兼容服务
	Model          string // 默认 gpt-4o-mini
	APIKeyEnv      string // 默认 OPENAI_API_KEY
	APIKey         string
	TimeoutSeconds int
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = "gpt-4o-mini"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "OPENAI_API_KEY"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
}

type Client struct {
	api   *goopenai.Client
	model string
}

// New 构造客户端；凭据缺失是启动级错误。
func New(opts Options) (*Client, error) {
	opts.defaults()
	key := opts.APIKey
	if key == "" && opts.APIKeyEnv != "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("openai: %w: missing api key (%s)", contract.ErrInvalidInput, opts.APIKeyEnv)
	}
	cfg := goopenai.DefaultConfig(key)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second}
	return &Client{api: goopenai.NewClientWithConfig(cfg), model: opts.Model}, nil
}

var _ contract.Extractor = (*Client)(nil)

// upstreamError 同 gemini 端：将 5xx/408 映射为网络类错误。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string {
	return fmt.Sprintf("openai upstream %d: %s", e.status, e.msg)
}

func (e upstreamError) Timeout() bool           { return e.status == http.StatusRequestTimeout }
func (e upstreamError) Temporary() bool         { return e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// Extract 单次调用并严格校验响应（仅首个 choice）。
func (c *Client) Extract(ctx context.Context, doc contract.Document, glossary string) (contract.BurnsRecord, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role:    goopenai.ChatMessageRoleSystem,
				Content: "You are a meticulous data scientist specializing in extracting structured medical information from clinical texts.",
			},
			{
				Role:    goopenai.ChatMessageRoleUser,
				Content: contract.BuildPrompt(doc, glossary),
			},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   "burns_record",
				Schema: contract.ResponseSchema(),
				Strict: true,
			},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return contract.BurnsRecord{}, ctx.Err()
		}
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
				return contract.BurnsRecord{}, contract.ErrRateLimited
			case apiErr.HTTPStatusCode == http.StatusRequestTimeout || apiErr.HTTPStatusCode/100 == 5:
				return contract.BurnsRecord{}, upstreamError{status: apiErr.HTTPStatusCode, msg: apiErr.Message}
			default:
				return contract.BurnsRecord{}, fmt.Errorf("openai upstream %d: %w", apiErr.HTTPStatusCode, contract.ErrInvalidInput)
			}
		}
		return contract.BurnsRecord{}, err
	}

	if len(resp.Choices) == 0 {
		return contract.BurnsRecord{}, contract.ErrResponseInvalid
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return contract.BurnsRecord{}, fmt.Errorf("finish reason content_filter: %w", contract.ErrBlocked)
	}
	if choice.Message.Content == "" {
		return contract.BurnsRecord{}, contract.ErrResponseInvalid
	}
	return contract.ParseRecord([]byte(choice.Message.Content))
}
