package server

import (
	"sync"
	"time"
)

// Limiter 限流能力，按客户端标识判定放行
type Limiter interface {
	Allow(key string) bool
	Close()
}

// RateLimiter 滑动窗口限流器，按客户端标识计数。
// 窗口外的记录惰性清理，后台sweep防止不活跃客户端堆积
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	stop   chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	r := &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		stop:   make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Allow 判断该客户端是否还有配额，有则记一次消耗
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	recent := r.hits[key][:0]
	for _, t := range r.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.hits[key] = recent
		return false
	}
	r.hits[key] = append(recent, now)
	return true
}

// Remaining 该客户端在当前窗口的剩余配额
func (r *RateLimiter) Remaining(key string) int {
	cutoff := time.Now().Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	used := 0
	for _, t := range r.hits[key] {
		if t.After(cutoff) {
			used++
		}
	}
	if used >= r.limit {
		return 0
	}
	return r.limit - used
}

func (r *RateLimiter) sweep() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-r.window)
			r.mu.Lock()
			for key, times := range r.hits {
				recent := times[:0]
				for _, t := range times {
					if t.After(cutoff) {
						recent = append(recent, t)
					}
				}
				if len(recent) == 0 {
					delete(r.hits, key)
				} else {
					r.hits[key] = recent
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *RateLimiter) Close() {
	close(r.stop)
}
