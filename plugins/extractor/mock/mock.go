package mock

import (
	"context"
	"os"
	"path/filepath"

	"burnex/pkg/contract"
)

// 罐装抽取端：无网络联调与流水线测试用。
// 按文档 ID 从目录读取 <id>.json 作为“模型响应”，走与真实后端同一条
// 解析-校验路径；找不到罐装文件时返回一条空记录（各字段 null、列表为空）。

// Options: 最小调试配置。
type Options struct {
	// Dir: 罐装响应目录；为空时一律返回空记录。
	Dir string
}

type Client struct {
	dir string
}

func New(opts Options) *Client {
	return &Client{dir: opts.Dir}
}

var _ contract.Extractor = (*Client)(nil)

// emptyResponse: 模式要求每个声明字段都在场的“什么都没找到”形态。
const emptyResponse = `{
  "tbsa": null, "mechanism": null, "type_of_accident": null, "agent": null,
  "wildfire": null, "bonfire": null, "fireplace": null, "violence": null,
  "suicide_attempt": null, "escharotomy": null,
  "associated_trauma": [], "burns": []
}`

func (c *Client) Extract(ctx context.Context, doc contract.Document, glossary string) (contract.BurnsRecord, error) {
	if err := ctx.Err(); err != nil {
		return contract.BurnsRecord{}, err
	}
	text := []byte(emptyResponse)
	if c.dir != "" {
		if b, err := os.ReadFile(filepath.Join(c.dir, string(doc.ID)+".json")); err == nil {
			text = b
		}
	}
	return contract.ParseRecord(text)
}
