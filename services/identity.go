package services

import "sync"

// Identity, oturum açmış kullanıcının kimliği.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// IdentityBroker, mevcut oturum kimliğini tutar ve değişikliklerini yayar.
//
// Oturum state machine'i basittir: signed-out <-> signed-in. Dinleyiciler
// abone olduktan sonra her geçişte, kayıt sırasında da mevcut durumla bir
// kez çağrılır — "geç gelen abone ilk durumu kaçırmaz" kuralı.
type IdentityBroker struct {
	mu        sync.Mutex
	current   Identity
	signedIn  bool
	nextID    int
	listeners map[int]func(Identity, bool)
}

// NewIdentityBroker, constructor.
func NewIdentityBroker() *IdentityBroker {
	return &IdentityBroker{
		listeners: make(map[int]func(Identity, bool)),
	}
}

// CurrentIdentity, mevcut kimliği döner. İkinci değer oturum açık mı bildirir.
func (b *IdentityBroker) CurrentIdentity() (Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.signedIn
}

// OnIdentityChanged, kimlik değişikliklerine abone olur ve abonelik iptal
// fonksiyonu döner. Callback kayıt anında mevcut durumla hemen çağrılır.
func (b *IdentityBroker) OnIdentityChanged(cb func(Identity, bool)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = cb
	current, signedIn := b.current, b.signedIn
	b.mu.Unlock()

	cb(current, signedIn)

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// SignIn, oturumu verilen kimlikle açar ve dinleyicilere duyurur.
func (b *IdentityBroker) SignIn(identity Identity) {
	b.mu.Lock()
	b.current = identity
	b.signedIn = true
	cbs := b.snapshot()
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(identity, true)
	}
}

// SignOut, oturumu kapatır ve dinleyicilere duyurur.
func (b *IdentityBroker) SignOut() {
	b.mu.Lock()
	b.current = Identity{}
	b.signedIn = false
	cbs := b.snapshot()
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(Identity{}, false)
	}
}

// snapshot, callback listesini lock altında kopyalar.
// Callback'ler lock DIŞINDA çağrılır — bir dinleyici broker'a geri
// dönse bile deadlock olmaz.
func (b *IdentityBroker) snapshot() []func(Identity, bool) {
	cbs := make([]func(Identity, bool), 0, len(b.listeners))
	for _, cb := range b.listeners {
		cbs = append(cbs, cb)
	}
	return cbs
}
