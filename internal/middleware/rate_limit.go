package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 按 key 冷却的限流器
// 防止同一客户端频繁触发导入导致上游平台接口限流
type CooldownLimiter struct {
	locks sync.Map // key -> *cooldownEntry
}

// cooldownEntry 冷却条目
type cooldownEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewCooldownLimiter 创建限流器
func NewCooldownLimiter() *CooldownLimiter {
	return &CooldownLimiter{}
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时刷新最后执行时间
// key: 限流键，如客户端 IP
// interval: 冷却间隔
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &cooldownEntry{})
	entry := actual.(*cooldownEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	// 更新最后执行时间
	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的冷却
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Gin 中间件 ====================

// ImportCooldown 导入接口冷却中间件
// interval <= 0 时不做任何限制
func ImportCooldown(interval time.Duration) gin.HandlerFunc {
	if interval <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := NewCooldownLimiter()
	return func(c *gin.Context) {
		result := limiter.Check(c.ClientIP(), interval)
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "导入过于频繁，请稍后再试",
				"retry_after": int(result.RetryAfter.Seconds()) + 1,
			})
			return
		}
		c.Next()
	}
}
