// TypingService — "yazıyor..." göstergesi için ephemeral state.
//
// Typing kayıtları kalıcı veri DEĞİLDİR: deterministic id'li küçük
// dokümanlardır (yazarken upsert, durunca delete). Aynı çift için
// ikinci bir set yeni kayıt oluşturmaz, mevcut kaydın üstüne yazar —
// stale kayıt birikmez.
package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/akinalp/kadraj/pkg/realtime"
	"github.com/akinalp/kadraj/store"
)

const typingCollection = "typing"

// typingDocID, gönderen+alıcı çifti için deterministic doküman id'si.
func typingDocID(fromID, toID string) string {
	return "typing_" + fromID + "_" + toID
}

// TypingService, typing göstergesi işlemleri için public interface.
type TypingService interface {
	// SetTyping, typing durumunu yazar veya siler. typing=true upsert,
	// typing=false delete'tir; var olmayan kaydı silmek no-op'tur.
	SetTyping(ctx context.Context, fromID, toID string, typing bool) error

	// SubscribeTyping, kullanıcıya yazan kişilerin id listesine canlı
	// abonelik açar. Liste sıralı ve tekrarsızdır.
	SubscribeTyping(userID string, cb func(senderIDs []string))
	UnsubscribeTyping(userID string)

	// Notifier, tuş vuruşlarını typing durumuna çeviren yardımcı döner.
	// Her Keystroke idle sayacını sıfırlar; sayaç dolunca durum otomatik
	// temizlenir.
	Notifier(fromID, toID string) *TypingNotifier

	Close()
}

type typingService struct {
	store    store.Store
	registry *realtime.Registry

	// idle: son tuş vuruşundan sonra typing durumunun otomatik
	// temizlenmesine kadar geçen süre.
	idle time.Duration
}

// NewTypingService, constructor.
func NewTypingService(st store.Store, idle time.Duration) TypingService {
	return &typingService{
		store:    st,
		registry: realtime.NewRegistry(),
		idle:     idle,
	}
}

func (s *typingService) SetTyping(ctx context.Context, fromID, toID string, typing bool) error {
	id := typingDocID(fromID, toID)

	if !typing {
		if err := s.store.Delete(ctx, typingCollection, id); err != nil {
			return fmt.Errorf("failed to clear typing state: %w", err)
		}
		return nil
	}

	_, err := s.store.Write(ctx, typingCollection, store.Document{
		"id":         id,
		"from":       fromID,
		"to":         toID,
		"started_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set typing state: %w", err)
	}
	return nil
}

func (s *typingService) SubscribeTyping(userID string, cb func(senderIDs []string)) {
	key := "typing_" + userID
	s.registry.Subscribe(key, func(token realtime.Token) func() {
		return s.store.Listen(typingCollection, store.Eq("to", userID),
			func(docs []store.Document) {
				if !token.Alive() {
					return
				}
				cb(senderIDs(docs))
			},
			func(err error) {
				log.Printf("[typing] listener error for %s: %v", userID, err)
				if token.Alive() {
					cb([]string{})
				}
			})
	})
}

func (s *typingService) UnsubscribeTyping(userID string) {
	s.registry.Unsubscribe("typing_" + userID)
}

func (s *typingService) Notifier(fromID, toID string) *TypingNotifier {
	return &TypingNotifier{
		service:   s,
		fromID:    fromID,
		toID:      toID,
		debounced: debounce.New(s.idle),
	}
}

func (s *typingService) Close() {
	s.registry.Close()
}

// senderIDs, typing kayıtlarından sıralı, tekrarsız gönderen listesi çıkarır.
func senderIDs(docs []store.Document) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		from := doc.String("from")
		if from == "" || seen[from] {
			continue
		}
		seen[from] = true
		ids = append(ids, from)
	}
	sort.Strings(ids)
	return ids
}

// TypingNotifier, tuş vuruşu akışını typing yazma/silme çiftine çevirir.
//
// İlk Keystroke durumu açar; sonraki vuruşlar yalnızca idle sayacını
// sıfırlar (her vuruşta yazma YAPILMAZ). Sayaç dolunca veya Stop
// çağrılınca durum silinir.
type TypingNotifier struct {
	service   *typingService
	fromID    string
	toID      string
	debounced func(func())

	mu     sync.Mutex
	active bool
}

// Keystroke, bir tuş vuruşu bildirir.
func (n *TypingNotifier) Keystroke(ctx context.Context) {
	n.mu.Lock()
	wasActive := n.active
	n.active = true
	n.mu.Unlock()

	if !wasActive {
		if err := n.service.SetTyping(ctx, n.fromID, n.toID, true); err != nil {
			log.Printf("[typing] failed to announce typing: %v", err)
		}
	}

	n.debounced(func() {
		n.clear()
	})
}

// Stop, typing durumunu hemen temizler (mesaj gönderildi veya ekran kapandı).
func (n *TypingNotifier) Stop(ctx context.Context) {
	n.mu.Lock()
	wasActive := n.active
	n.active = false
	n.mu.Unlock()

	if wasActive {
		if err := n.service.SetTyping(ctx, n.fromID, n.toID, false); err != nil {
			log.Printf("[typing] failed to clear typing: %v", err)
		}
	}
}

func (n *TypingNotifier) clear() {
	n.mu.Lock()
	wasActive := n.active
	n.active = false
	n.mu.Unlock()

	if wasActive {
		if err := n.service.SetTyping(context.Background(), n.fromID, n.toID, false); err != nil {
			log.Printf("[typing] failed to clear typing: %v", err)
		}
	}
}
