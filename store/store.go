// Package store, uygulamanın document database arayüzünü tanımlar.
//
// Upstream'de bu katman hosted bir document database'dir (schemaless
// kayıtlar, predicate ile filtreleme, live query). Burada aynı kontrat
// bir Go interface'i olarak ifade edilir; somut sağlayıcı SQLite üzerinde
// çalışır (sqlite_store.go). Cache/subscription katmanı yalnızca bu
// interface'e bağımlıdır — test'lerde ve deploy'da farklı sağlayıcılar
// takılabilir.
//
// Kayıtlar schemaless'tır: Document bir map[string]any'dir ve "id" alanı
// kaydın kimliğidir. Timestamp alanları yazım yoluna göre üç farklı şekilde
// gelebilir (native time.Time, provider Timestamp wrapper'ı, epoch sayısı
// veya RFC3339 string) — her okuyucu ToTime() ile normalize etmek ZORUNDADIR.
package store

import (
	"context"
	"time"
)

// Document, schemaless bir kayıttır. "id" alanı kaydın kimliğidir.
type Document map[string]any

// ID, kaydın kimliğini döner ("id" alanı yoksa boş string).
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// String, verilen alanı string olarak döner (yoksa veya tip uymazsa boş).
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Bool, verilen alanı bool olarak döner (yoksa false).
func (d Document) Bool(field string) bool {
	b, _ := d[field].(bool)
	return b
}

// Time, verilen timestamp alanını normalize ederek döner.
func (d Document) Time(field string) time.Time {
	return ToTime(d[field])
}

// Filter, bir kaydın sorgu sonucuna dahil olup olmadığını belirleyen predicate.
// Kombinatorlarla kurulur: store.And(store.Eq("to", id), store.Eq("read", false)).
type Filter func(Document) bool

// Store, document database kontratı.
//
// Read/Write/Update/Delete tek seferlik işlemlerdir; Listen live query'dir:
// onSnapshot, eşleşen kayıt kümesi her değiştiğinde kümenin TAMAMI ile
// çağrılır (diff değil, full result set). Dönen cancel fonksiyonu listener'ı
// ayırır — ayırma senkrondur ama transport'taki son bir snapshot cancel
// sonrasında hâlâ teslim edilebilir; çağıran taraf buna karşı korunmalıdır
// (realtime.Registry bunu generation token ile yapar).
type Store interface {
	// Read, filtreye uyan tüm kayıtları döner.
	Read(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// Write, yeni bir kayıt ekler ve üretilen id'yi döner.
	// Kayıtta "id" alanı zaten varsa o id kullanılır (upsert).
	Write(ctx context.Context, collection string, doc Document) (string, error)

	// Update, mevcut kaydın alanlarını kısmi olarak günceller.
	// Kayıt yoksa pkg.ErrNotFound döner.
	Update(ctx context.Context, collection, id string, partial Document) error

	// Delete, kaydı siler. Kayıt yoksa hata dönmez (idempotent).
	Delete(ctx context.Context, collection, id string) error

	// Listen, live query başlatır. Listener takılır takılmaz mevcut sonuç
	// kümesi ile bir kez çağrılır, sonrasında koleksiyondaki her mutasyonda
	// yeniden değerlendirilir. onError, sorgu değerlendirme hatalarında
	// çağrılır — listener ayakta kalır.
	Listen(collection string, filter Filter, onSnapshot func([]Document), onError func(error)) (cancel func())
}

// ────────────────────────────────────────────
// Filter kombinatorları
// ────────────────────────────────────────────

// All, her kaydı kabul eden filtredir.
func All() Filter {
	return func(Document) bool { return true }
}

// Eq, verilen alanın değere eşit olmasını şart koşar.
func Eq(field string, want any) Filter {
	return func(d Document) bool {
		return valueEqual(d[field], want)
	}
}

// In, alan değerinin verilen kümede olmasını şart koşar.
func In(field string, values ...any) Filter {
	return func(d Document) bool {
		got := d[field]
		for _, v := range values {
			if valueEqual(got, v) {
				return true
			}
		}
		return false
	}
}

// And, tüm filtrelerin sağlanmasını şart koşar.
func And(filters ...Filter) Filter {
	return func(d Document) bool {
		for _, f := range filters {
			if !f(d) {
				return false
			}
		}
		return true
	}
}

// Or, filtrelerden en az birinin sağlanmasını şart koşar.
func Or(filters ...Filter) Filter {
	return func(d Document) bool {
		for _, f := range filters {
			if f(d) {
				return true
			}
		}
		return false
	}
}

// valueEqual, JSON round-trip'ten geçmiş değerleri karşılaştırır.
// JSON'dan okunan sayılar float64 olarak gelir — int ile karşılaştırma
// için her iki taraf da sayıysa float64 üzerinden eşitlenir.
func valueEqual(got, want any) bool {
	if gf, ok := toFloat(got); ok {
		if wf, ok := toFloat(want); ok {
			return gf == wf
		}
		return false
	}
	return got == want
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
