package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"burnex/pkg/contract"
)

// Options: Google Generative Language API (Gemini) 最小必需。
type Options struct {
	BaseURL   string // https://generativelanguage.googleapis.com
	Model     string // 默认 gemini-2.5-flash
	APIKeyEnv string // 默认 GEMINI_API_KEY
	APIKey    string
	// 客户端超时（秒）。未设置或 <=0 时采用默认 60 秒。
	TimeoutSeconds int
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if o.Model == "" {
		o.Model = "gemini-2.5-flash"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "GEMINI_API_KEY"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
}

// Client 实现 contract.Extractor：generateContent + 随请求下发响应模式。
// 自身不重试；任何瞬态失败对该文档即为终局，由编排层继续下一文档。
type Client struct {
	hc     *http.Client
	url    string
	apiKey string
	do     func(*http.Request) (*http.Response, error)
}

// New 构造 Gemini 抽取客户端；凭据缺失是启动级错误。
func New(opts Options) (*Client, error) {
	opts.defaults()
	key := opts.APIKey
	if key == "" && opts.APIKeyEnv != "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("gemini: %w: missing api key (%s)", contract.ErrInvalidInput, opts.APIKeyEnv)
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	path := base + "/v1beta/models/" + url.PathEscape(opts.Model) + ":generateContent"
	hc := &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second}
	return &Client{hc: hc, url: path, apiKey: key, do: hc.Do}, nil
}

var _ contract.Extractor = (*Client)(nil)

// 请求/响应（最小字段）。
type gmPart struct {
	Text string `json:"text"`
}
type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}
type gmGenerationConfig struct {
	Temperature      float64         `json:"temperature"`
	ResponseMIMEType string          `json:"response_mime_type"`
	ResponseSchema   json.RawMessage `json:"response_schema"`
}
type gmReq struct {
	Contents         []gmContent        `json:"contents"`
	GenerationConfig gmGenerationConfig `json:"generationConfig"`
}
type gmResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// upstreamError 实现 net.Error，用于将 HTTP 上游 5xx/408 映射为网络类错误。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string {
	return fmt.Sprintf("gemini upstream %d: %s", e.status, e.msg)
}

func (e upstreamError) Timeout() bool           { return e.status == http.StatusRequestTimeout }
func (e upstreamError) Temporary() bool         { return e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// Extract 单次调用抽取后端并严格校验响应。
// 仅取首个候选；后端声明内容被拦截时返回 ErrBlocked（终局，非异常）。
func (c *Client) Extract(ctx context.Context, doc contract.Document, glossary string) (contract.BurnsRecord, error) {
	req := gmReq{
		Contents: []gmContent{{Role: "user", Parts: []gmPart{{Text: contract.BuildPrompt(doc, glossary)}}}},
		GenerationConfig: gmGenerationConfig{
			Temperature:      0,
			ResponseMIMEType: "application/json",
			ResponseSchema:   contract.ResponseSchema(),
		},
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return contract.BurnsRecord{}, fmt.Errorf("encode: %v: %w", err, contract.ErrInvalidInput)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.BurnsRecord{}, fmt.Errorf("new request: %v: %w", err, contract.ErrInvalidInput)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.do(hreq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return contract.BurnsRecord{}, ctx.Err()
		}
		return contract.BurnsRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return contract.BurnsRecord{}, contract.ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(slurp))
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5 {
			return contract.BurnsRecord{}, upstreamError{status: resp.StatusCode, msg: msg}
		}
		return contract.BurnsRecord{}, fmt.Errorf("gemini upstream %d: %w", resp.StatusCode, contract.ErrInvalidInput)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return contract.BurnsRecord{}, fmt.Errorf("unexpected content type %q: %w", ct, contract.ErrResponseInvalid)
	}

	var gr gmResp
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return contract.BurnsRecord{}, fmt.Errorf("decode: %w", contract.ErrResponseInvalid)
	}
	if gr.PromptFeedback.BlockReason != "" {
		return contract.BurnsRecord{}, fmt.Errorf("prompt feedback %s: %w", gr.PromptFeedback.BlockReason, contract.ErrBlocked)
	}
	if len(gr.Candidates) == 0 {
		return contract.BurnsRecord{}, contract.ErrResponseInvalid
	}
	// 首个候选；finishReason 指向安全拦截时同样视为 blocked。
	cand := gr.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT":
		return contract.BurnsRecord{}, fmt.Errorf("finish reason %s: %w", cand.FinishReason, contract.ErrBlocked)
	}
	if len(cand.Content.Parts) == 0 || cand.Content.Parts[0].Text == "" {
		return contract.BurnsRecord{}, contract.ErrResponseInvalid
	}
	return contract.ParseRecord([]byte(cand.Content.Parts[0].Text))
}
