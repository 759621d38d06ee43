// ConversationService — direkt mesajlaşma iş mantığı.
//
// Okuma yolu (Summaries) cache'lidir: özet listesi mesaj kümesinden her
// tazelemede yeniden türetilir, TTL + request deduplication ile korunur.
// Yazma yolu (Send, MarkRead) hatayı çağırana AYNEN döndürür — toast
// göstermek ve optimistic entry'yi geri almak UI'ın işidir.
//
// Optimistic update kontratı: Send, oluşturulan mesajı ÜRETİLEN ID'Sİ
// ile döner. UI, geçici entry'yi bu id ile değiştirir — timestamp
// eşleştirmesi ile değil. (Upstream'in Date.now() bazlı geri alma
// yaklaşımı bilinen bir bug'dı; burada bilinçli olarak düzeltildi.)
package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/pkg/cache"
	"github.com/akinalp/kadraj/pkg/ratelimit"
	"github.com/akinalp/kadraj/pkg/realtime"
	"github.com/akinalp/kadraj/store"
	"github.com/akinalp/kadraj/ws"
)

const messagesCollection = "messages"

// Abonelik ve cache key'leri. Aynı türetilmiş veri için cache key'i ile
// abonelik key'i aynıdır — snapshot reconcile doğrudan cache'e yazar.
func summariesKey(userID string) string {
	return "conversations_" + userID
}

func conversationKey(a, b string) string {
	first, second := sortUserIDs(a, b)
	return "conversation_" + first + "_" + second
}

// sortUserIDs, iki userID'yi sıralı döndürür.
// Aynı çift için her zaman aynı key üretilmesini sağlar.
func sortUserIDs(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// ConversationService, mesajlaşma işlemleri için public interface.
type ConversationService interface {
	// Send, mesaj gönderir. Politika kontrolü ve rate limit yazmadan
	// ÖNCE çalışır; yazma hatası çağırana döner.
	Send(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error)

	// Messages, iki kullanıcı arasındaki mesajları eskiden yeniye döner.
	Messages(ctx context.Context, userID, peerID string) ([]models.Message, error)

	// Summaries, kullanıcının konuşma özetlerini döner (TTL cache'li,
	// eşzamanlı çağrılar tek türetme paylaşır). Son mesajı en yeni olan
	// konuşma başta olacak şekilde sıralıdır.
	Summaries(ctx context.Context, userID string) ([]models.ConversationSummary, error)

	// UnreadCount, bir peer'dan gelen okunmamış mesaj sayısını cache'e
	// uğramadan taze okur.
	UnreadCount(ctx context.Context, userID, peerID string) (int, error)

	// MarkRead, peer'dan gelen tüm okunmamış mesajları okundu işaretler.
	MarkRead(ctx context.Context, userID, peerID string) error

	// SubscribeSummaries, kullanıcının özet listesine canlı abonelik açar.
	// Her mesaj mutasyonunda özetler yeniden türetilir, cache'e yazılır
	// ve callback çağrılır. Aynı kullanıcı için tekrar çağrılırsa önceki
	// listener kapatılır.
	SubscribeSummaries(userID string, cb func([]models.ConversationSummary))
	UnsubscribeSummaries(userID string)

	// SubscribeConversation, iki kullanıcı arasındaki mesaj akışına
	// canlı abonelik açar.
	SubscribeConversation(userID, peerID string, cb func([]models.Message))
	UnsubscribeConversation(userID, peerID string)

	// Close, tüm canlı abonelikleri kapatır (shutdown path'i).
	Close()
}

type conversationService struct {
	store    store.Store
	profiles ProfileService
	social   SocialService
	hub      ws.EventPublisher
	registry *realtime.Registry
	cache    *cache.Cache[[]models.ConversationSummary]
	limiter  *ratelimit.MessageRateLimiter

	// summaryTTL: özetlerin tazelik penceresi — kabul edilen staleness
	// sınırı budur, mutasyonlar ayrıca explicit invalidation yapar.
	summaryTTL time.Duration
}

// NewConversationService, constructor.
func NewConversationService(
	st store.Store,
	profiles ProfileService,
	social SocialService,
	hub ws.EventPublisher,
	limiter *ratelimit.MessageRateLimiter,
	summaryTTL time.Duration,
	cacheMaxEntries int,
) ConversationService {
	return &conversationService{
		store:      st,
		profiles:   profiles,
		social:     social,
		hub:        hub,
		registry:   realtime.NewRegistry(),
		cache:      cache.New[[]models.ConversationSummary](cacheMaxEntries),
		limiter:    limiter,
		summaryTTL: summaryTTL,
	}
}

func (s *conversationService) Send(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error) {
	// 1. Validasyon
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if req.RecipientID == senderID {
		return nil, fmt.Errorf("%w: cannot message yourself", pkg.ErrBadRequest)
	}

	// 2. Mesaj politikası — yazma denemesinden önce lokal kural kontrolü
	if err := s.social.CanMessage(ctx, senderID, req.RecipientID); err != nil {
		return nil, err
	}

	// 3. Spam koruması
	if s.limiter != nil && !s.limiter.Allow(senderID) {
		return nil, fmt.Errorf("%w: sending messages too fast, slow down", pkg.ErrRateLimited)
	}

	// 4. Yazma — hata çağırana döner, optimistic rollback UI'da
	message := &models.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		CreatedAt:   time.Now().UTC(),
	}

	id, err := s.store.Write(ctx, messagesCollection, store.Document{
		"sender_id":    message.SenderID,
		"recipient_id": message.RecipientID,
		"content":      message.Content,
		"created_at":   message.CreatedAt,
		"read":         false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	message.ID = id

	// 5. Explicit invalidation — her iki tarafın özeti bir sonraki
	// okumada yeniden türetilsin
	s.cache.Invalidate(summariesKey(senderID))
	s.cache.Invalidate(summariesKey(req.RecipientID))

	// 6. WS broadcast — her iki tarafa
	event := ws.Event{Op: ws.OpMessageCreate, Data: message}
	s.hub.BroadcastToUser(senderID, event)
	s.hub.BroadcastToUser(req.RecipientID, event)

	return message, nil
}

func (s *conversationService) Messages(ctx context.Context, userID, peerID string) ([]models.Message, error) {
	docs, err := s.store.Read(ctx, messagesCollection, pairFilter(userID, peerID))
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messagesFromDocs(docs), nil
}

func (s *conversationService) Summaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	summaries, err := s.cache.GetOrFetch(ctx, summariesKey(userID), s.summaryTTL,
		func(ctx context.Context) ([]models.ConversationSummary, error) {
			docs, err := s.store.Read(ctx, messagesCollection, participantFilter(userID))
			if err != nil {
				return nil, err
			}
			return s.deriveSummaries(ctx, userID, docs), nil
		})
	if err != nil {
		// Okuma yolu hatası — boş listeye düş, diagnostic logla.
		log.Printf("[conversations] failed to load summaries for %s: %v", userID, err)
		return []models.ConversationSummary{}, nil
	}
	return summaries, nil
}

func (s *conversationService) UnreadCount(ctx context.Context, userID, peerID string) (int, error) {
	docs, err := s.store.Read(ctx, messagesCollection, store.And(
		store.Eq("sender_id", peerID),
		store.Eq("recipient_id", userID),
		store.Eq("read", false),
	))
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return len(docs), nil
}

func (s *conversationService) MarkRead(ctx context.Context, userID, peerID string) error {
	docs, err := s.store.Read(ctx, messagesCollection, store.And(
		store.Eq("sender_id", peerID),
		store.Eq("recipient_id", userID),
		store.Eq("read", false),
	))
	if err != nil {
		return fmt.Errorf("failed to read unread messages: %w", err)
	}

	for _, doc := range docs {
		if err := s.store.Update(ctx, messagesCollection, doc.ID(), store.Document{"read": true}); err != nil {
			return fmt.Errorf("failed to mark message %s read: %w", doc.ID(), err)
		}
	}

	s.cache.Invalidate(summariesKey(userID))

	s.hub.BroadcastToUser(peerID, ws.Event{
		Op:   ws.OpMessageRead,
		Data: map[string]string{"reader_id": userID},
	})
	return nil
}

func (s *conversationService) SubscribeSummaries(userID string, cb func([]models.ConversationSummary)) {
	key := summariesKey(userID)
	s.registry.Subscribe(key, func(token realtime.Token) func() {
		return s.store.Listen(messagesCollection, participantFilter(userID),
			func(docs []store.Document) {
				// Unsubscribe/re-subscribe sonrası yolda kalan snapshot'ı bastır
				if !token.Alive() {
					return
				}
				// Reconcile: last-snapshot-wins, cache'e toptan yaz
				summaries := s.deriveSummaries(context.Background(), userID, docs)
				s.cache.Set(key, summaries, s.summaryTTL)
				cb(summaries)
			},
			func(err error) {
				// Transport hatası UI'ı asla çökertmez — logla, boş değerle yanıtla
				log.Printf("[conversations] summaries listener error for %s: %v", userID, err)
				if token.Alive() {
					cb([]models.ConversationSummary{})
				}
			})
	})
}

func (s *conversationService) UnsubscribeSummaries(userID string) {
	s.registry.Unsubscribe(summariesKey(userID))
}

func (s *conversationService) SubscribeConversation(userID, peerID string, cb func([]models.Message)) {
	key := conversationKey(userID, peerID)
	s.registry.Subscribe(key, func(token realtime.Token) func() {
		return s.store.Listen(messagesCollection, pairFilter(userID, peerID),
			func(docs []store.Document) {
				if !token.Alive() {
					return
				}
				cb(messagesFromDocs(docs))
			},
			func(err error) {
				log.Printf("[conversations] conversation listener error for %s: %v", key, err)
				if token.Alive() {
					cb([]models.Message{})
				}
			})
	})
}

func (s *conversationService) UnsubscribeConversation(userID, peerID string) {
	s.registry.Unsubscribe(conversationKey(userID, peerID))
}

func (s *conversationService) Close() {
	s.registry.Close()
}

// deriveSummaries, kullanıcının mesaj kümesinden peer başına özet türetir.
// Peer profilleri tek batch'te çözülür; online bilgisi hub'ın bağlı
// kullanıcı kümesinden gelir.
func (s *conversationService) deriveSummaries(ctx context.Context, userID string, docs []store.Document) []models.ConversationSummary {
	type bucket struct {
		last   models.Message
		unread int
	}
	peers := make(map[string]*bucket)

	for _, msg := range messagesFromDocs(docs) {
		peerID := msg.SenderID
		if peerID == userID {
			peerID = msg.RecipientID
		}
		if peerID == userID {
			continue
		}

		b, ok := peers[peerID]
		if !ok {
			b = &bucket{}
			peers[peerID] = b
		}
		if msg.CreatedAt.After(b.last.CreatedAt) {
			b.last = msg
		}
		if msg.RecipientID == userID && !msg.Read {
			b.unread++
		}
	}

	peerIDs := make([]string, 0, len(peers))
	for id := range peers {
		peerIDs = append(peerIDs, id)
	}
	profiles := s.profiles.GetMany(ctx, peerIDs)

	online := make(map[string]bool)
	for _, id := range s.hub.GetOnlineUserIDs() {
		online[id] = true
	}

	summaries := make([]models.ConversationSummary, 0, len(peers))
	for peerID, b := range peers {
		summary := models.ConversationSummary{
			PeerID:        peerID,
			PeerName:      placeholderName(peerID),
			LastMessage:   b.last.Content,
			LastMessageAt: b.last.CreatedAt,
			UnreadCount:   b.unread,
			Online:        online[peerID],
		}
		if profile := profiles[peerID]; profile != nil {
			summary.PeerName = profile.DisplayName
			summary.PeerAvatarURL = profile.AvatarURL
		}
		summaries = append(summaries, summary)
	}

	// En güncel konuşma başta
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})

	return summaries
}

// participantFilter, kullanıcının taraf olduğu tüm mesajları eşler.
func participantFilter(userID string) store.Filter {
	return store.Or(
		store.Eq("sender_id", userID),
		store.Eq("recipient_id", userID),
	)
}

// pairFilter, iki kullanıcı arasındaki mesajları (iki yönde) eşler.
func pairFilter(a, b string) store.Filter {
	return store.Or(
		store.And(store.Eq("sender_id", a), store.Eq("recipient_id", b)),
		store.And(store.Eq("sender_id", b), store.Eq("recipient_id", a)),
	)
}

// messagesFromDocs, store kayıtlarını modele çevirir ve eskiden yeniye sıralar.
func messagesFromDocs(docs []store.Document) []models.Message {
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, models.Message{
			ID:          doc.ID(),
			SenderID:    doc.String("sender_id"),
			RecipientID: doc.String("recipient_id"),
			Content:     doc.String("content"),
			CreatedAt:   doc.Time("created_at"),
			Read:        doc.Bool("read"),
		})
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages
}
