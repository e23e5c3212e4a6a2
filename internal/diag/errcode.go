package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"burnex/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/汇总，与退出码解耦。
type Code string

const (
	CodeUnknown  Code = "unknown"
	CodeNetwork  Code = "network"
	CodeProtocol Code = "protocol"
	CodeBlocked  Code = "blocked"
	CodeSchema   Code = "schema"
	CodeQuota    Code = "quota"
	CodeCancel   Code = "cancel"
	CodeIO       Code = "io"
	CodeConfig   Code = "config"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrBlocked) {
		return CodeBlocked
	}
	if errors.Is(err, contract.ErrRateLimited) {
		return CodeQuota
	}
	// 模式校验（逐字段路径）
	var verr *contract.ValidationError
	if errors.As(err, &verr) {
		return CodeSchema
	}
	// 协议/解码
	if errors.Is(err, contract.ErrResponseInvalid) {
		return CodeProtocol
	}
	if errors.Is(err, contract.ErrInvalidInput) {
		return CodeConfig
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	// 网络（连接/超时等）
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
