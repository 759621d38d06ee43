package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Message, iki kullanıcı arasındaki tek bir direkt mesajı temsil eder.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
}

// ConversationSummary, bir karşı taraf (peer) ile olan mesajlaşma
// ilişkisinin türetilmiş görünümüdür. Mesaj kümesinden her tazelemede
// yeniden hesaplanır; persist edilmez — sahibi conversations cache'idir,
// TTL dolunca veya explicit invalidation'da düşer.
type ConversationSummary struct {
	PeerID        string    `json:"peer_id"`
	PeerName      string    `json:"peer_name"`
	PeerAvatarURL string    `json:"peer_avatar_url,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
	Online        bool      `json:"online"`
}

// SendMessageRequest, mesaj gönderme isteği.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// Validate, SendMessageRequest'i kontrol eder.
// Content 1-4000 karakter olmalıdır (sadece boşluk kabul edilmez).
func (r *SendMessageRequest) Validate() error {
	if strings.TrimSpace(r.RecipientID) == "" {
		return fmt.Errorf("recipient_id is required")
	}

	r.Content = strings.TrimSpace(r.Content)
	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen == 0 {
		return fmt.Errorf("message content cannot be empty")
	}
	if contentLen > 4000 {
		return fmt.Errorf("message content must be at most 4000 characters")
	}

	return nil
}
