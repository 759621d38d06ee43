package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/akinalp/kadraj/pkg"
)

// SQLiteStore, Store interface'inin SQLite implementasyonu.
//
// Kayıtlar tek bir documents tablosunda JSON olarak saklanır:
// (collection, id, data). Schemaless model document database'in
// davranışını birebir korur — yeni alan eklemek migration gerektirmez.
//
// Filtreler rastgele predicate'lar olduğu için SQL'e indirgenmez;
// koleksiyon okunur ve filtre Go tarafında uygulanır. Bu katmanın
// koleksiyonları küçüktür (mesajlar, typing kayıtları, takip kayıtları),
// sorgu başına tam tarama kabul edilebilir.
//
// Live query: her mutasyon sonrası o koleksiyonun listener'ları yeniden
// değerlendirilir ve güncel sonuç kümesi teslim edilir. Teslimat
// listener başına SERIALDİR — snapshot'lar alınış sırasıyla işlenir,
// yeniden sıralama veya birleştirme yapılmaz (last-snapshot-wins).
type SQLiteStore struct {
	db *sql.DB

	mu        sync.Mutex
	listeners map[int64]*listener
	nextID    int64
}

// listener, tek bir live query kaydıdır.
// Snapshot'lar önce kuyruğa alınır, listener'a ait tek goroutine
// kuyruktan sırayla teslim eder. Böylece yavaş bir callback mutasyon
// yolunu bloklamaz ama sıra garantisi korunur.
type listener struct {
	collection string
	filter     Filter
	onSnapshot func([]Document)
	onError    func(error)

	qmu   sync.Mutex
	queue [][]Document
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewSQLiteStore, documents tablosu migrate edilmiş bir bağlantı üzerinde
// yeni bir store oluşturur.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		listeners: make(map[int64]*listener),
	}
}

// Read, filtreye uyan tüm kayıtları döner. filter nil ise tüm koleksiyon.
func (s *SQLiteStore) Read(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM documents WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", collection, err)
		}

		if filter == nil || filter(doc) {
			docs = append(docs, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}

	return docs, nil
}

// Write, kaydı ekler ve id'sini döner. Kayıtta "id" varsa upsert yapılır.
func (s *SQLiteStore) Write(ctx context.Context, collection string, doc Document) (string, error) {
	// Çağıranın map'ini mutate etmemek için kopyala
	stored := make(Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}

	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored["id"] = id
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data
	`, collection, id, string(raw)); err != nil {
		return "", fmt.Errorf("failed to write document to %s: %w", collection, err)
	}

	s.notify(collection)
	return id, nil
}

// Update, mevcut kaydın alanlarını kısmi günceller (shallow merge).
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, partial Document) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: document %s/%s", pkg.ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}

	for k, v := range partial {
		doc[k] = v
	}
	doc["id"] = id // partial bir yanlışlıkla id'yi ezmesin

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE documents SET data = ? WHERE collection = ? AND id = ?",
		string(merged), collection, id); err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}

	s.notify(collection)
	return nil
}

// Delete, kaydı siler. Kayıt yoksa sessizce başarılı sayılır.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(collection)
	}
	return nil
}

// Listen, live query başlatır ve listener'ı kaydeder.
// İlk snapshot (mevcut sonuç kümesi) hemen kuyruğa alınır.
func (s *SQLiteStore) Listen(collection string, filter Filter, onSnapshot func([]Document), onError func(error)) func() {
	l := &listener{
		collection: collection,
		filter:     filter,
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.mu.Unlock()

	go l.run()

	// İlk teslimat: listener takıldığı andaki sonuç kümesi
	s.evaluate(l)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
		l.once.Do(func() { close(l.done) })
	}
}

// Close, tüm aktif listener'ları durdurur (shutdown path'i).
// Altta yatan *sql.DB bağlantısını KAPATMAZ — onun sahibi database paketidir.
func (s *SQLiteStore) Close() {
	s.mu.Lock()
	stopped := make([]*listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		stopped = append(stopped, l)
	}
	s.listeners = make(map[int64]*listener)
	s.mu.Unlock()

	for _, l := range stopped {
		l.once.Do(func() { close(l.done) })
	}
}

// notify, koleksiyonun tüm listener'larını yeniden değerlendirir.
func (s *SQLiteStore) notify(collection string) {
	s.mu.Lock()
	matched := make([]*listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l.collection == collection {
			matched = append(matched, l)
		}
	}
	s.mu.Unlock()

	for _, l := range matched {
		s.evaluate(l)
	}
}

// evaluate, listener'ın sorgusunu çalıştırır ve sonucu kuyruğa alır.
// Sorgu hatası onError'a gider; listener ayakta kalır ve bir sonraki
// mutasyonda tekrar değerlendirilir.
func (s *SQLiteStore) evaluate(l *listener) {
	docs, err := s.Read(context.Background(), l.collection, l.filter)
	if err != nil {
		log.Printf("[store] listen evaluation failed for %s: %v", l.collection, err)
		if l.onError != nil {
			l.onError(err)
		}
		return
	}
	l.enqueue(docs)
}

// enqueue, snapshot'ı teslim kuyruğuna ekler ve teslim goroutine'ini uyandırır.
func (l *listener) enqueue(snap []Document) {
	l.qmu.Lock()
	l.queue = append(l.queue, snap)
	l.qmu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run, listener'ın teslim loop'udur — snapshot'ları alınış sırasıyla işler.
func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
			for {
				l.qmu.Lock()
				if len(l.queue) == 0 {
					l.qmu.Unlock()
					break
				}
				snap := l.queue[0]
				l.queue = l.queue[1:]
				l.qmu.Unlock()

				l.onSnapshot(snap)
			}
		}
	}
}
