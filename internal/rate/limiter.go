package rate

import (
	"context"
	"sync"
	"time"

	"burnex/internal/diag"
)

// Limiter: 固定间隔节流器（每个外部依赖各持一只）。
// 语义：相邻两次调用“起点”之间至少间隔 60/rpm 秒——不是带突发额度的令牌桶；
// 首次调用不等待；末次调用之后不再补延迟（Wait 只在下一次调用前生效）。
// rpm <= 0 时禁用节流，构造时发出一次配置警告。
type Limiter struct {
	interval time.Duration
	name     string

	mu   sync.Mutex
	last time.Time

	clk   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 按每分钟请求数构造；logger 仅用于禁用警告。
func New(name string, rpm int, logger *diag.Logger) *Limiter {
	l := &Limiter{name: name, clk: time.Now, sleep: sleepCtx}
	if rpm <= 0 {
		if logger != nil {
			logger.Warn("rate", "rate limiting disabled: rpm <= 0 for "+name, "")
		}
		return l
	}
	l.interval = time.Duration(float64(time.Minute) / float64(rpm))
	return l
}

// NewWithClock 注入时钟与睡眠实现（测试用）。
func NewWithClock(name string, rpm int, clk func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Limiter {
	l := &Limiter{name: name, clk: clk, sleep: sleep}
	if rpm > 0 {
		l.interval = time.Duration(float64(time.Minute) / float64(rpm))
	}
	return l
}

// Interval 返回配置的最小间隔（禁用时为 0）。
func (l *Limiter) Interval() time.Duration { return l.interval }

// Wait 阻塞直到距上一次调用起点已满最小间隔，或 ctx 取消。
// 调用方应在每次外部调用“之前”调用 Wait；这保证已知长度序列的末尾不产生多余睡眠。
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}
	l.mu.Lock()
	now := l.clk()
	if l.last.IsZero() {
		l.last = now
		l.mu.Unlock()
		return ctx.Err()
	}
	elapsed := now.Sub(l.last)
	var wait time.Duration
	if elapsed < l.interval {
		wait = l.interval - elapsed
	}
	l.mu.Unlock()

	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.last = l.clk()
	l.mu.Unlock()
	return nil
}

// sleepCtx 分片睡眠（最多 200ms 步长），及时响应取消。
func sleepCtx(ctx context.Context, d time.Duration) error {
	const step = 200 * time.Millisecond
	for d > 0 {
		s := d
		if s > step {
			s = step
		}
		t := time.NewTimer(s)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		case <-t.C:
		}
		d -= s
	}
	return nil
}
