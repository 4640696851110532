package service

import (
	"sync"
	"time"
)

const (
	// 同 key 活跃度更新的最小间隔
	ActivityCooldown = 2000 * time.Millisecond

	sweepInterval   = 5 * ActivityCooldown
	sweepIdleFactor = 10
)

// ThrottleKey 三个字段全部精确匹配：同一用户在不同频道、不同 guild 各自独立计时。
type ThrottleKey struct {
	GuildID   string
	ChannelID string
	UserID    string
}

// Throttle suppresses repeat activity updates inside the cooldown window.
// Allow 不做任何 I/O，在锁内完成检查和打点，两条并发消息只会放行一条。
// 后台 sweep 把闲置太久的 key 清掉，内存不随见过的 key 数无限增长；
// 被清掉的 entry 一定早已超出冷却窗口，重新放行是正确的。
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	seen     map[ThrottleKey]time.Time

	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewThrottle(cooldown time.Duration) *Throttle {
	t := &Throttle{
		cooldown: cooldown,
		seen:     make(map[ThrottleKey]time.Time),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Allow reports whether an update for key may proceed, stamping the key when
// it returns true. A suppressed call leaves the stored timestamp unchanged.
func (t *Throttle) Allow(key ThrottleKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.seen[key]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.seen[key] = now
	return true
}

func (t *Throttle) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Throttle) sweep() {
	idle := t.cooldown * sweepIdleFactor
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, last := range t.seen {
		if now.Sub(last) >= idle {
			delete(t.seen, key)
		}
	}
}

func (t *Throttle) Close() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}
