package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginLimiter(t *testing.T) {
	limiter := NewLoginLimiter(3, 100*time.Millisecond, time.Hour)
	email := "test@example.com"

	locked, _ := limiter.IsLocked(email)
	assert.False(t, locked)
	assert.Equal(t, 3, limiter.GetRemainingAttempts(email))

	limiter.RecordFailedLogin(email)
	limiter.RecordFailedLogin(email)
	assert.Equal(t, 1, limiter.GetRemainingAttempts(email))

	locked, _ = limiter.IsLocked(email)
	assert.False(t, locked)

	// 第三次失败触发锁定
	limiter.RecordFailedLogin(email)
	locked, _ = limiter.IsLocked(email)
	assert.True(t, locked)

	// 锁定期过后自动解锁
	time.Sleep(150 * time.Millisecond)
	locked, _ = limiter.IsLocked(email)
	assert.False(t, locked)
}

func TestLoginLimiterReset(t *testing.T) {
	limiter := NewLoginLimiter(3, time.Minute, time.Hour)
	email := "test@example.com"

	limiter.RecordFailedLogin(email)
	limiter.RecordFailedLogin(email)
	limiter.ResetAttempts(email)

	assert.Equal(t, 3, limiter.GetRemainingAttempts(email))
	locked, _ := limiter.IsLocked(email)
	assert.False(t, locked)
}
