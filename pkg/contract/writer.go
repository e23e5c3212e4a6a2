package contract

import (
	"context"
	"io"
)

// Writer: 将文档工件以流式方式持久化（每文档一件，<id>.json）。
// 约束：
//  1. 同一 DocID 单写者；并发运行同一输出目录不受保护；
//  2. 按字节透传，不读取/修改业务内容；
//  3. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id DocID, r io.Reader) error
	// Exists: 工件存在性探测，供 skip-if-processed 幂等续跑使用。
	Exists(id DocID) bool
}
