package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginLimiterBlocksAfterMaxAttempts(t *testing.T) {
	rl := NewLoginRateLimiter(3, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "attempt %d should pass", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// Başka IP etkilenmez
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestLoginLimiterResetClearsCounter(t *testing.T) {
	rl := NewLoginRateLimiter(1, time.Minute)
	defer rl.Stop()

	require.True(t, rl.Allow("10.0.0.1"))
	require.False(t, rl.Allow("10.0.0.1"))

	rl.Reset("10.0.0.1")
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestLoginLimiterRetryAfter(t *testing.T) {
	rl := NewLoginRateLimiter(1, time.Minute)
	defer rl.Stop()

	assert.Equal(t, 0, rl.RetryAfterSeconds("10.0.0.1"))

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")

	after := rl.RetryAfterSeconds("10.0.0.1")
	assert.Greater(t, after, 0)
	assert.LessOrEqual(t, after, 61)
}

func TestMessageLimiterCooldownOutlastsWindow(t *testing.T) {
	rl := NewMessageRateLimiter(2, 20*time.Millisecond, time.Hour)
	defer rl.Stop()

	require.True(t, rl.Allow("u1"))
	require.True(t, rl.Allow("u1"))
	require.False(t, rl.Allow("u1"))

	// Window dolsa bile cooldown sürdüğü müddetçe reddedilir
	time.Sleep(30 * time.Millisecond)
	assert.False(t, rl.Allow("u1"))
	assert.Greater(t, rl.CooldownSeconds("u1"), 0)
}

func TestMessageLimiterRecoversAfterCooldown(t *testing.T) {
	rl := NewMessageRateLimiter(1, 10*time.Millisecond, 20*time.Millisecond)
	defer rl.Stop()

	require.True(t, rl.Allow("u1"))
	require.False(t, rl.Allow("u1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("u1"))
	assert.Equal(t, 0, rl.CooldownSeconds("u1"))
}

func TestStopHaltsSweeper(t *testing.T) {
	l := newLimiter(1, 5*time.Millisecond, 5*time.Millisecond)

	l.mu.Lock()
	l.entries["10.0.0.1"] = &window{count: 1, start: time.Now().Add(-time.Second)}
	l.mu.Unlock()

	// Sweeper çalışırken süresi dolmuş kayıt silinir
	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		_, ok := l.entries["10.0.0.1"]
		return !ok
	}, time.Second, 2*time.Millisecond)

	l.Stop()
	time.Sleep(15 * time.Millisecond)

	l.mu.Lock()
	l.entries["10.0.0.2"] = &window{count: 1, start: time.Now().Add(-time.Second)}
	l.mu.Unlock()

	// Stop sonrası sweep yok: süresi dolmuş kayıt ortada kalır
	time.Sleep(30 * time.Millisecond)
	l.mu.RLock()
	_, ok := l.entries["10.0.0.2"]
	l.mu.RUnlock()
	assert.True(t, ok)
}

func TestExtractIPPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", ExtractIP(r))

	r.Header.Set("X-Real-IP", "203.0.113.5")
	assert.Equal(t, "203.0.113.5", ExtractIP(r))

	// X-Forwarded-For en yüksek öncelik; listeden ilk IP alınır
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ExtractIP(r))
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "45 second(s)", FormatRetryMessage(45))
	assert.Equal(t, "2 minute(s)", FormatRetryMessage(120))
}
