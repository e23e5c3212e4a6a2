package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Extractor: 以单文档为单位调用生成式抽取后端，返回经严格校验的记录。
// 单次调用、同步返回、不重试；瞬态失败原样上抛，由编排层记为该文档失败。
// 仅使用响应的首个候选。
type Extractor interface {
	Extract(ctx context.Context, doc Document, glossary string) (BurnsRecord, error)
}

// 最小错误分类（哨兵；用于上层策略判定与日志归类）。
var (
	// ErrBlocked: 后端声明内容被安全策略过滤/拦截；该文档终止，不是异常。
	ErrBlocked = errors.New("content blocked")
	// ErrRateLimited: 上游配额受限（429）。抽取端不重试，记为该文档失败。
	ErrRateLimited = errors.New("rate limited")
	// ErrResponseInvalid: 响应文本不是合法 JSON 或结构不可解析。
	ErrResponseInvalid = errors.New("response invalid")
	// ErrInvalidInput: 输入/配置不变量被破坏。
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamError 承载 HTTP 上游错误的最小诊断信息（可选实现）。
type UpstreamError interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
}

// ValidationError: 模式校验失败，逐字段路径可枚举（诊断用）。
// 展开自通用异常字符串：每个缺失/越域字段一条路径。
type ValidationError struct {
	Paths []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Paths, ", "))
}

// 富集查询的层级约束（ECL，<< 为“含自身的全部后代”）。
const (
	// ECLBodyStructure: 身体结构层级，用于解剖部位。
	ECLBodyStructure = "<<123037004"
	// ECLSubstance: 物质层级，用于致伤介质。
	ECLSubstance = "<<105590001"
)

// Enricher: 按自由文本名称查询术语服务；ecl 为可选层级约束。
// 查不到返回 (nil, nil)；内部已含重试预算，穷尽后同样返回 nil——富集永远尽力而为。
// 仅使用服务返回的首个匹配。
type Enricher interface {
	Lookup(ctx context.Context, name, ecl string) (*Concept, error)
}
