package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Activity, global aktivite feed'indeki tek bir girdiyi temsil eder.
// Örnek: "ayse (1st AD) joined project Gece Vardiyası".
type Activity struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Verb      string    `json:"verb"`    // "joined", "posted", "completed" vb.
	Subject   string    `json:"subject"` // Eylemin hedefi: proje adı, görev başlığı vb.
	CreatedAt time.Time `json:"created_at"`

	// Enrichment ile doldurulan alan — feed okunurken batch profile
	// loader üzerinden çözülür, persist edilmez.
	Actor *UserProfile `json:"actor,omitempty"`
}

// PostActivityRequest, yeni aktivite girdisi oluşturma isteği.
type PostActivityRequest struct {
	Verb    string `json:"verb"`
	Subject string `json:"subject"`
}

// Validate, PostActivityRequest'i kontrol eder.
func (r *PostActivityRequest) Validate() error {
	r.Verb = strings.TrimSpace(r.Verb)
	if r.Verb == "" {
		return fmt.Errorf("verb is required")
	}

	r.Subject = strings.TrimSpace(r.Subject)
	if utf8.RuneCountInString(r.Subject) > 256 {
		return fmt.Errorf("subject must be at most 256 characters")
	}

	return nil
}
