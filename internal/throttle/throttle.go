// 包 throttle 实现按主机的最小请求间隔控制：
// 同一主机的相邻两次请求至少间隔 interval，不同主机互不影响。
package throttle

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval 为导出器默认使用的请求间隔。
const DefaultInterval = 500 * time.Millisecond

// Limiter 记录每个主机最近一次请求的时间。
type Limiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

// New 创建 Limiter；interval <= 0 表示不限速。
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, last: make(map[string]time.Time)}
}

// Interval 返回配置的间隔。
func (l *Limiter) Interval() time.Duration { return l.interval }

// Wait 阻塞直到距该主机上次请求已过去 interval，然后记录本次请求时间。
// 首次访问某主机时立即返回。睡眠期间不持锁，因此不会拖慢其他主机。
func (l *Limiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	last := l.last[host]
	l.mu.Unlock()

	if l.interval > 0 && !last.IsZero() {
		if d := l.interval - time.Since(last); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	l.mu.Lock()
	l.last[host] = time.Now()
	l.mu.Unlock()
	return nil
}

// Last 返回主机最近一次请求时间（从未请求时为零值）。
func (l *Limiter) Last(host string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last[host]
}
