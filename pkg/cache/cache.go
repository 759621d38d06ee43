// Package cache — TTL + request deduplication cache.
//
// Cache, feature modüllerinin (mesajlaşma, aktivite feed'i, profil lookup)
// pahalı türetilmiş sonuçlarını bellekte tutan generic yapıdır.
//
// Üç problemi birden çözer:
//  1. TTL: Her entry yazıldığı anın timestamp'i + kendi ttl süresi ile saklanır.
//     `now - storedAt <= ttl` sağlandığı sürece hit, aksi halde miss.
//  2. Request deduplication: Aynı key için eşzamanlı N GetOrFetch çağrısı
//     tek bir fetch çalıştırır — diğer N-1 çağrı aynı sonucu bekler.
//     (Pending map'i olmasaydı iki goroutine aynı anda miss görüp
//     aynı sorguyu iki kez çalıştırırdı.)
//  3. Boyut sınırı: maxEntries aşılınca yazım zamanına göre en eski
//     entry'ler silinir (insertion-time eviction, access-time LRU değil).
//
// Kritik invariant: miss kontrolü ile pending marker'ın yazılması TEK mutex
// kilidi altında yapılır. Arada kilit bırakılsaydı (check → unlock → set)
// deduplication garantisi bozulurdu.
package cache

import (
	"context"
	"sync"
	"time"
)

// entry, cache'teki tek bir kayıttır.
// Süre bilgisi entry üzerinde taşınır — her kayıt kendi ttl'i ile yazılır,
// farklı key'ler farklı tazelik pencereleri kullanabilir.
type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// pendingFetch, devam eden bir fetch'i temsil eder.
// done kapandığında value/err alanları okunabilir durumdadır.
type pendingFetch[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Cache, string key'li generic TTL cache.
//
// Kullanım:
//
//	c := cache.New[[]Summary](500)
//	v, err := c.GetOrFetch(ctx, "conversations_"+userID, 30*time.Second, fetchFn)
//
// Key'ler string'dir çünkü prefix bazlı invalidation gerekir:
// yeni bir aktivite yazıldığında "activity_" ile başlayan tüm entry'ler silinir.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	pending map[string]*pendingFetch[V]

	// maxEntries: boyut sınırı. 0 veya negatifse sınırsız.
	maxEntries int

	// now: zaman kaynağı. Testlerde sahte clock enjekte edilir —
	// TTL testleri sleep olmadan çalışır.
	now func() time.Time
}

// New, yeni bir Cache oluşturur.
// maxEntries: tutulacak maksimum entry sayısı (0 = sınırsız).
func New[V any](maxEntries int) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		pending:    make(map[string]*pendingFetch[V]),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get, cache'ten bir değer okur.
// (value, true) eğer key varsa ve süresi dolmamışsa; (zero, false) aksi halde.
// Süresi dolmuş entry bu noktada map'ten silinir (lazy eviction).
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) > e.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set, cache'e bir değer yazar. storedAt = şimdi, süre = ttl.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

// GetOrFetch, cache-miss durumunda fetch'i çalıştırır ve sonucu cache'ler.
//
// Akış:
//  1. Fresh entry varsa onu dön (fetch hiç çalışmaz).
//  2. Aynı key için devam eden bir fetch varsa onu bekle ve sonucunu paylaş.
//  3. Yoksa pending marker'ı koy, kilidi bırak, fetch'i çalıştır.
//     Fetch bitince (başarılı ya da değil) pending marker silinir;
//     sadece başarılı sonuç cache'e yazılır.
//
// Fetch error'ı cache'lenmez — bir sonraki çağrı yeniden dener.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) <= e.ttl {
		c.mu.Unlock()
		return e.value, nil
	}

	if p, ok := c.pending[key]; ok {
		c.mu.Unlock()
		// Devam eden fetch'i bekle. Context iptali bekleyeni serbest bırakır
		// ama fetch'in kendisini durdurmaz — sahibi o değil.
		select {
		case <-p.done:
			return p.value, p.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	p := &pendingFetch[V]{done: make(chan struct{})}
	c.pending[key] = p
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	delete(c.pending, key)
	if err == nil {
		c.setLocked(key, value, ttl)
	}
	c.mu.Unlock()

	p.value, p.err = value, err
	close(p.done)

	return value, err
}

// Invalidate, belirli bir key'i cache'ten siler.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateByPrefix, verilen prefix ile başlayan tüm key'leri siler.
// Bir mutasyon sonrası ilgili türetilmiş sonuçların tamamını düşürmek için
// kullanılır — örn. yeni aktivite yazıldığında "activity_" entry'leri.
func (c *Cache[V]) InvalidateByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// Clear, tüm cache'i boşaltır. Pending fetch'lere dokunmaz —
// devam eden istekler sonuçlarını yine paylaşır, sadece cache'e yazılan
// değerler silinmiş olur.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len, cache'teki entry sayısını döner (süresi dolmuşlar dahil).
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// setLocked, entry yazar ve boyut sınırını uygular. c.mu tutulmuş olmalıdır.
func (c *Cache[V]) setLocked(key string, value V, ttl time.Duration) {
	c.entries[key] = entry[V]{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}

	if c.maxEntries <= 0 {
		return
	}

	// Sınır aşıldıysa en eski yazılan entry'leri sil.
	// maxEntries makul boyutta olduğu için linear tarama yeterli.
	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.storedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.storedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}
