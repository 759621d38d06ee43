// Package realtime — isimlendirilmiş live-query aboneliklerinin yönetimi.
//
// Registry, store.Listen gibi "cancel fonksiyonu dönen" abonelik
// mekanizmalarının üstünde üç garanti sağlar:
//
//  1. Bir key için aynı anda EN FAZLA BİR aktif listener vardır.
//     Aynı key ile tekrar Subscribe çağrılırsa önce eski listener
//     iptal edilir, sonra yenisi takılır (caller açısından idempotent).
//  2. Unsubscribe sonrası callback çalışmaz. İptal senkron döner ama
//     transport'ta yolda olan son bir snapshot hâlâ teslim edilebilir —
//     callback'ler Token.Alive() kontrolü ile bu teslimatı bastırır.
//  3. Abonelik sahipliği izlenebilirdir: mount'ta Subscribe eden component
//     unmount'ta Unsubscribe etmekle yükümlüdür. Registry terk edilmiş
//     abonelikleri tespit ETMEZ — bu çağıranın sorumluluğudur.
//
// Generation mekanizması: her Subscribe çağrısı artan bir generation
// numarası alır. Token o generation'ı taşır; key yeniden subscribe
// edildiğinde veya unsubscribe edildiğinde eski generation'ın token'ları
// ölür. Tek bir bool flag yerine generation kullanmanın sebebi
// re-subscription: eski listener'ın yolda kalan snapshot'ı, yeni
// listener aktifken bile çalışmamalıdır.
package realtime

import "sync"

// subscription, tek bir aktif aboneliği temsil eder.
type subscription struct {
	cancel func()
	gen    uint64
}

// Registry, key → abonelik eşlemesinin sahibidir. Thread-safe'dir.
type Registry struct {
	mu      sync.Mutex
	subs    map[string]*subscription
	lastGen uint64
}

// NewRegistry, boş bir registry oluşturur.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*subscription)}
}

// Token, bir aboneliğin belirli bir generation'ına işaret eder.
// Callback'ler teslimatı işlemeden önce Alive() kontrolü yapar.
type Token struct {
	r   *Registry
	key string
	gen uint64
}

// Alive, token'ın ait olduğu abonelik hâlâ aktif generation'sa true döner.
func (t Token) Alive() bool {
	if t.r == nil {
		return false
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()

	sub, ok := t.r.subs[t.key]
	return ok && sub.gen == t.gen
}

// Subscribe, key için yeni bir abonelik başlatır.
//
// start fonksiyonu gerçek listener'ı takar (örn. store.Listen çağrısı)
// ve cancel fonksiyonunu döner. start'a verilen Token, listener'ın
// callback'lerinde Alive() kontrolü için kullanılmalıdır.
//
// Aynı key için mevcut bir abonelik varsa önce o iptal edilir —
// kaçak listener bağlantısı oluşmaz.
func (r *Registry) Subscribe(key string, start func(Token) (cancel func())) {
	r.mu.Lock()
	var prior func()
	if old, ok := r.subs[key]; ok {
		prior = old.cancel
	}
	r.lastGen++
	token := Token{r: r, key: key, gen: r.lastGen}
	r.subs[key] = &subscription{gen: token.gen}
	r.mu.Unlock()

	// Eski listener'ı kilit dışında iptal et — cancel, store tarafında
	// kendi kilitlerini alabilir.
	if prior != nil {
		prior()
	}

	cancel := start(token)

	r.mu.Lock()
	if cur, ok := r.subs[key]; ok && cur.gen == token.gen {
		cur.cancel = cancel
		r.mu.Unlock()
		return
	}
	// start çalışırken key yeniden subscribe/unsubscribe edilmiş —
	// bizim listener artık sahipsiz, hemen kapat.
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Unsubscribe, key'in aboneliğini iptal eder. Key yoksa no-op.
// Çağıran açısından senkrondur; yolda kalan son snapshot Token.Alive()
// kontrolüne takılır.
func (r *Registry) Unsubscribe(key string) {
	r.mu.Lock()
	sub, ok := r.subs[key]
	if ok {
		delete(r.subs, key)
	}
	r.mu.Unlock()

	if ok && sub.cancel != nil {
		sub.cancel()
	}
}

// Active, key için aktif bir abonelik olup olmadığını döner.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[key]
	return ok
}

// Close, tüm abonelikleri iptal eder (shutdown path'i).
func (r *Registry) Close() {
	r.mu.Lock()
	cancels := make([]func(), 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.cancel != nil {
			cancels = append(cancels, sub.cancel)
		}
	}
	r.subs = make(map[string]*subscription)
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
