// Package ratelimit — login ve mesaj gönderimi için in-memory rate limiting.
//
// İki limiter de aynı sliding-window çekirdeğini paylaşır:
//   - LoginRateLimiter: IP bazlı, brute-force koruması. Window dolunca
//     kalan süre kadar beklenir; başarılı login Reset ile sayacı düşürür.
//   - MessageRateLimiter: kullanıcı bazlı spam koruması. Window kısa,
//     ceza (cooldown) ayrı ve daha uzundur — limit aşan kullanıcı
//     cooldown bitene kadar hiç mesaj atamaz.
//
// Neden in-memory? Tek instance deploy'da store'a her istekte yazmak
// gereksiz I/O ve contention yaratır; Redis bağımlılığına gerek yok.
// pkg/ratelimit hiçbir proje içi pakete bağımlı değildir (leaf dependency).
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// window, tek bir anahtar (IP veya userID) için sayaç durumu.
type window struct {
	count         int
	start         time.Time
	cooldownUntil time.Time // zero value = cooldown yok
}

// limiter, anahtar bazlı sliding-window sayacı. İki public limiter'ın
// ortak çekirdeği; kendisi export edilmez.
type limiter struct {
	mu      sync.RWMutex
	entries map[string]*window
	max     int
	span    time.Duration
	stop    chan struct{}
}

func newLimiter(max int, span time.Duration, sweep time.Duration) *limiter {
	l := &limiter{
		entries: make(map[string]*window),
		max:     max,
		span:    span,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop(sweep)
	return l
}

// sweepLoop, süresi dolmuş pencereleri periyodik siler — uzun süre çalışan
// sunucuda map büyümesini engeller.
func (l *limiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for key, w := range l.entries {
				expired := now.Sub(w.start) > l.span
				cooled := w.cooldownUntil.IsZero() || now.After(w.cooldownUntil)
				if expired && cooled {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop, sweep goroutine'ini durdurur (shutdown path'i).
func (l *limiter) Stop() {
	close(l.stop)
}

// LoginRateLimiter, IP bazlı login denemesi limiti.
//
// Kullanım:
//
//	limiter := NewLoginRateLimiter(5, 2*time.Minute)
//	if !limiter.Allow(ip) { return 429 }
//	// başarılı login'de:
//	limiter.Reset(ip)
type LoginRateLimiter struct {
	*limiter
}

// NewLoginRateLimiter, window başına maxAttempts deneme kabul eden
// limiter oluşturur ve temizleme goroutine'ini başlatır.
func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{limiter: newLimiter(maxAttempts, window, time.Minute)}
}

// Allow, IP'nin login denemesine izin verilip verilmediğini döner.
// Her çağrı sayacı artırır; başarılı login'de caller Reset çağırmalıdır.
func (rl *LoginRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.entries[ip]
	if !ok || now.Sub(w.start) > rl.span {
		rl.entries[ip] = &window{count: 1, start: now}
		return true
	}

	w.count++
	return w.count <= rl.max
}

// Reset, başarılı login sonrası IP sayacını temizler. Temizlenmezse
// meşru kullanıcı sonraki denemelerde bloke olabilir.
func (rl *LoginRateLimiter) Reset(ip string) {
	rl.mu.Lock()
	delete(rl.entries, ip)
	rl.mu.Unlock()
}

// RetryAfterSeconds, limit aşıldığında kalan bekleme süresini saniye
// cinsinden döner — HTTP Retry-After header değeri.
func (rl *LoginRateLimiter) RetryAfterSeconds(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	w, ok := rl.entries[ip]
	if !ok {
		return 0
	}

	remaining := rl.span - time.Since(w.start)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1 // +1 yuvarlama
}

// MessageRateLimiter, kullanıcı bazlı mesaj spam koruması.
//
// Window içinde maxMessages mesaja izin verilir; aşımda cooldown başlar
// ve bitene kadar her mesaj reddedilir. Cooldown bitince pencere sıfırdan
// başlar.
//
// Kullanım:
//
//	limiter := NewMessageRateLimiter(5, 5*time.Second, 15*time.Second)
//	if !limiter.Allow(userID) { return ErrRateLimited }
type MessageRateLimiter struct {
	*limiter
	cooldown time.Duration
}

// NewMessageRateLimiter, constructor. Mesaj pencereleri kısa ömürlü olduğu
// için temizleme login limiter'dan daha sık çalışır.
func NewMessageRateLimiter(maxMessages int, window, cooldown time.Duration) *MessageRateLimiter {
	return &MessageRateLimiter{
		limiter:  newLimiter(maxMessages, window, 30*time.Second),
		cooldown: cooldown,
	}
}

// Allow, kullanıcının mesaj göndermesine izin verilip verilmediğini döner.
func (rl *MessageRateLimiter) Allow(userID string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.entries[userID]
	if !ok {
		rl.entries[userID] = &window{count: 1, start: now}
		return true
	}

	// Cooldown'da: hiçbir mesaj geçmez
	if !w.cooldownUntil.IsZero() && now.Before(w.cooldownUntil) {
		return false
	}

	// Cooldown bitti veya window doldu: yeni pencere
	if !w.cooldownUntil.IsZero() || now.Sub(w.start) > rl.span {
		w.count = 1
		w.start = now
		w.cooldownUntil = time.Time{}
		return true
	}

	w.count++
	if w.count > rl.max {
		w.cooldownUntil = now.Add(rl.cooldown)
		return false
	}
	return true
}

// CooldownSeconds, kalan cooldown süresini saniye cinsinden döner;
// cooldown yoksa 0.
func (rl *MessageRateLimiter) CooldownSeconds(userID string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	w, ok := rl.entries[userID]
	if !ok || w.cooldownUntil.IsZero() {
		return 0
	}

	remaining := time.Until(w.cooldownUntil)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// ExtractIP, HTTP request'ten client IP'sini çıkarır.
// Öncelik: X-Forwarded-For (ilk IP) → X-Real-IP → RemoteAddr.
// Uygulama genellikle reverse proxy arkasında koşar; RemoteAddr o
// durumda proxy'nin adresidir.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage, kalan süreyi okunabilir hale getirir.
// Örn: 120 → "2 minute(s)", 45 → "45 second(s)".
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
