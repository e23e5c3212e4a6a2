package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Logger 为最小结构化日志器：单行 JSON 写入轮转文件，失败回退 stderr。
// 显式注入到各组件（限流器/抽取端/富集端/编排层），不设进程级单例。
type Logger struct {
	runID string
	level Level
	sink  *RotatingFile
	mu    sync.Mutex
}

// NewLogger 以运行相关 ID 与级别构造；日志写入 logs/ 目录，10MiB 轮转。
func NewLogger(runID, level string) *Logger {
	lvl := parseLevel(strings.TrimSpace(level))
	sink := NewRotatingFile("logs", 10*1024*1024)
	return &Logger{runID: runID, level: lvl, sink: sink}
}

// NewNop 返回丢弃一切输出的日志器（测试用）。
func NewNop() *Logger {
	return &Logger{runID: "test", level: Error + 1}
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event 为标准事件结构。
type Event struct {
	Level string            `json:"level"`
	TS    string            `json:"ts"`
	RunID string            `json:"run_id"`
	Comp  string            `json:"comp"`
	Stage string            `json:"stage"` // start|finish|warn|error
	Code  string            `json:"code,omitempty"`
	DurMS int64             `json:"dur_ms,omitempty"`
	Count int64             `json:"count,omitempty"`
	DocID string            `json:"doc_id,omitempty"`
	Msg   string            `json:"msg"`
	KV    map[string]string `json:"kv,omitempty"`
}

func (l *Logger) log(lv Level, ev Event) {
	if lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.RunID = l.runID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string, docID string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", DocID: docID, Msg: msg})
	return &Timer{l: l, comp: comp, docID: docID, t0: time.Now()}
}

// Info 记录无计时的常规事件。
func (l *Logger) Info(comp, msg, docID string) {
	l.log(Info, Event{Comp: comp, Stage: "finish", DocID: docID, Msg: msg})
}

// Warn 记录非致命警告（例如文件名不可解析、限流被禁用）。
func (l *Logger) Warn(comp, msg, docID string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", DocID: docID, Msg: msg})
}

// WarnKV 带键值对的警告。
func (l *Logger) WarnKV(comp, msg, docID string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", DocID: docID, Msg: msg, KV: kv})
}

// Error 记录 error 事件（不采样）。
func (l *Logger) Error(comp, code, msg, docID string) {
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DocID: docID, Msg: msg})
}

// ErrorKV 支持附带键值对（例如 HTTP 状态码、上游错误片段）。
func (l *Logger) ErrorKV(comp, code, msg, docID string, kv map[string]string) {
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DocID: docID, Msg: msg, KV: kv})
}

// DebugKV 输出调试级事件（仅 level=debug 时生效）。
func (l *Logger) DebugKV(comp, msg, docID string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "start", DocID: docID, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	comp  string
	docID string
	t0    time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, DocID: t.docID, Msg: msg})
}
