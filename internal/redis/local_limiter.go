package redis

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is a per-user token bucket pool used when no Redis is
// configured. Limits are per process.
type LocalLimiter struct {
	mu     sync.Mutex
	m      map[string]*rate.Limiter
	config RateLimitConfig
}

func NewLocalLimiter(config RateLimitConfig) *LocalLimiter {
	return &LocalLimiter{m: make(map[string]*rate.Limiter), config: config}
}

var _ MessageLimiter = (*LocalLimiter)(nil)

func (p *LocalLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	every := p.config.MessageWindow / time.Duration(max(p.config.MessageLimit, 1))
	l := rate.NewLimiter(rate.Every(every), p.config.MessageLimit)
	p.m[key] = l
	return l
}

func (p *LocalLimiter) AllowMessage(_ context.Context, userID string) (*RateLimitResult, error) {
	l := p.get(userID)
	res := l.Reserve()
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return &RateLimitResult{Allowed: false, ResetIn: delay, Limit: p.config.MessageLimit}, nil
	}
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int(l.Tokens()),
		Limit:     p.config.MessageLimit,
	}, nil
}
