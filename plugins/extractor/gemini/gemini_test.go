package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnex/pkg/contract"
)

func newTestClient(t *testing.T, do func(*http.Request) (*http.Response, error)) *Client {
	t.Helper()
	c, err := New(Options{APIKey: "test-key"})
	require.NoError(t, err)
	c.do = do
	return c
}

func httpResp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// candidateResp 把模型文本包进 generateContent 响应骨架。
func candidateResp(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"parts": []map[string]any{{"text": text}}},
			"finishReason": "STOP",
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

const validModelOutput = `{
  "tbsa": 10, "mechanism": "Heat", "type_of_accident": null, "agent": "fire",
  "wildfire": null, "bonfire": null, "fireplace": null, "violence": null,
  "suicide_attempt": null, "escharotomy": null,
  "associated_trauma": [],
  "burns": [{"location": "face", "laterality": null, "depth": "1st_degree",
             "circumferencial": null, "provenance": "queimadura da face"}]
}`

func TestNewRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(Options{})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestExtractValid(t *testing.T) {
	var captured *http.Request
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		return httpResp(200, candidateResp(validModelOutput)), nil
	})

	doc := contract.Document{ID: "2301", Text: "texto clínico"}
	rec, err := c.Extract(context.Background(), doc, "")
	require.NoError(t, err)
	require.NotNil(t, rec.TBSA)
	assert.Equal(t, 10.0, *rec.TBSA)
	require.Len(t, rec.Burns, 1)
	assert.Equal(t, contract.LocationFace, rec.Burns[0].Location)

	// 请求携带密钥头与响应模式。
	require.NotNil(t, captured)
	assert.Equal(t, "test-key", captured.Header.Get("x-goog-api-key"))
	body, _ := io.ReadAll(captured.Body)
	assert.Contains(t, string(body), `"response_schema"`)
	assert.Contains(t, string(body), `"response_mime_type":"application/json"`)
	assert.Contains(t, string(body), "texto clínico")
}

func TestExtractRateLimited(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return httpResp(429, `{"error": "quota"}`), nil
	})
	_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
	assert.ErrorIs(t, err, contract.ErrRateLimited)
}

// 5xx 映射为网络类错误（net.Error 且携带上游状态）。
func TestExtractUpstream5xx(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return httpResp(503, "unavailable"), nil
	})
	_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
	require.Error(t, err)

	var nerr net.Error
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Temporary())

	var uerr contract.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 503, uerr.UpstreamStatus())
}

func TestExtractBlocked(t *testing.T) {
	t.Run("prompt feedback", func(t *testing.T) {
		c := newTestClient(t, func(*http.Request) (*http.Response, error) {
			return httpResp(200, `{"promptFeedback": {"blockReason": "SAFETY"}}`), nil
		})
		_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
		assert.ErrorIs(t, err, contract.ErrBlocked)
	})
	t.Run("finish reason", func(t *testing.T) {
		body := `{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`
		c := newTestClient(t, func(*http.Request) (*http.Response, error) {
			return httpResp(200, body), nil
		})
		_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
		assert.ErrorIs(t, err, contract.ErrBlocked)
	})
}

func TestExtractMalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "garbage"},
		{"no candidates", `{"candidates": []}`},
		{"empty parts", `{"candidates": [{"content": {"parts": []}, "finishReason": "STOP"}]}`},
		{"model text not json", candidateResp("I could not comply")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return httpResp(200, tc.body), nil
			})
			_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
			assert.ErrorIs(t, err, contract.ErrResponseInvalid)
		})
	}
}

// 2xx 但内容类型不是 JSON：响应不可用，不尝试解码。
func TestExtractWrongContentType(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			Body:       io.NopCloser(strings.NewReader("<html>maintenance</html>")),
		}, nil
	})
	_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
	assert.ErrorIs(t, err, contract.ErrResponseInvalid)
}

// 模型输出结构不符时以逐字段路径失败，不做局部接受。
func TestExtractValidationFailure(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return httpResp(200, candidateResp(`{"tbsa": 250}`)), nil
	})
	_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Paths, "tbsa")
	assert.Contains(t, verr.Paths, "burns")
}

func TestExtractTransportError(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})
	_, err := c.Extract(context.Background(), contract.Document{ID: "1"}, "")
	assert.Error(t, err)
}
