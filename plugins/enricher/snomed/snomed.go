package snomed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"burnex/internal/diag"
	"burnex/pkg/contract"
)

// SNOMED CT 术语查询：FHIR ValueSet/$expand + ECL 层级约束 + 文本过滤。
// 重试策略：429 / 5xx / 网络层失败按 baseDelay * 2^attempt 加随机抖动退避，
// 至多 maxAttempts 次；其余 4xx 与内容类型不符立即失败（配置问题，非瞬态）。
// 穷尽重试后返回 nil——富集永远尽力而为，不让该文档失败。

const (
	snomedSystemURL = "http://snomed.info/sct"
	fhirContentType = "application/fhir+json"
)

// Options: 术语服务配置。
type Options struct {
	BaseURL string // FHIR 根，如 https://r4.ontoserver.csiro.au/fhir
	// Count: 向服务端请求的候选数量；默认 5（只取首个）。
	Count int
	// MaxAttempts: 最大尝试次数（含首次）；默认 3。
	MaxAttempts int
	// BaseDelay: 退避基准；默认 1s。
	BaseDelay      time.Duration
	TimeoutSeconds int
}

func (o *Options) defaults() {
	if o.Count <= 0 {
		o.Count = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 20
	}
}

type Client struct {
	hc          *http.Client
	base        string
	count       int
	maxAttempts int
	baseDelay   time.Duration
	logger      *diag.Logger

	do     func(*http.Request) (*http.Response, error)
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// New 构造术语客户端；BaseURL 为空是启动级错误。
func New(opts Options, logger *diag.Logger) (*Client, error) {
	opts.defaults()
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("snomed: %w: missing base url", contract.ErrInvalidInput)
	}
	hc := &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second}
	c := &Client{
		hc:          hc,
		base:        strings.TrimRight(opts.BaseURL, "/"),
		count:       opts.Count,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		logger:      logger,
		do:          hc.Do,
		sleep:       sleepCtx,
		jitter:      func() time.Duration { return time.Duration(rand.Int63n(int64(500 * time.Millisecond))) },
	}
	return c, nil
}

var _ contract.Enricher = (*Client)(nil)

// FHIR ValueSet 响应（最小字段）。
type valueSet struct {
	ResourceType string `json:"resourceType"`
	Expansion    struct {
		Contains []struct {
			Code    string `json:"code"`
			Display string `json:"display"`
		} `json:"contains"`
	} `json:"expansion"`
}

// Lookup 查询名称并取首个匹配；查不到或不可恢复时返回 (nil, nil)。
// 仅 ctx 取消以错误上抛。
func (c *Client) Lookup(ctx context.Context, name, ecl string) (*contract.Concept, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("url", fmt.Sprintf("%s?fhir_vs=ecl/%s", snomedSystemURL, ecl))
	q.Set("filter", name)
	q.Set("count", fmt.Sprintf("%d", c.count))
	endpoint := c.base + "/ValueSet/$expand?" + q.Encode()

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		concept, retryable, err := c.once(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !retryable || attempt == c.maxAttempts-1 {
				c.warn(name, err)
				return nil, nil
			}
			delay := c.baseDelay*(1<<attempt) + c.jitter()
			if c.logger != nil {
				c.logger.WarnKV("enricher", "transient failure, backing off", "", map[string]string{
					"name":  name,
					"delay": delay.String(),
					"cause": err.Error(),
				})
			}
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
			continue
		}
		return concept, nil
	}
	return nil, nil
}

// once 执行单次查询。返回 (结果, 是否可重试, 错误)。
func (c *Client) once(ctx context.Context, endpoint string) (*contract.Concept, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", fhirContentType)

	resp, err := c.do(req)
	if err != nil {
		// 连接错误/超时：与 429/5xx 同一退避时刻表。
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return nil, true, fmt.Errorf("terminology upstream %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		// 其余 4xx：请求本身有问题，重试无意义。
		return nil, false, fmt.Errorf("terminology upstream %d", resp.StatusCode)
	}

	// 内容类型不符视为配置错误，不重试。
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, fhirContentType) {
		return nil, false, fmt.Errorf("unexpected content type %q", ct)
	}

	var vs valueSet
	if err := json.NewDecoder(resp.Body).Decode(&vs); err != nil {
		return nil, false, fmt.Errorf("decode valueset: %w", err)
	}
	if vs.ResourceType != "ValueSet" || len(vs.Expansion.Contains) == 0 {
		return nil, false, nil
	}
	// 仅首个匹配；不做二次重排。
	first := vs.Expansion.Contains[0]
	if first.Code == "" || first.Display == "" {
		return nil, false, nil
	}
	return &contract.Concept{SCTID: first.Code, Term: first.Display}, false, nil
}

func (c *Client) warn(name string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnKV("enricher", "lookup degraded to not-found", "", map[string]string{
		"name": name, "cause": err.Error(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !t.Stop() {
			<-t.C
		}
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
