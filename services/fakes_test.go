package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/store"
	"github.com/akinalp/kadraj/ws"
)

// fakeStore, in-memory store.Store implementasyonu.
//
// Gerçek store'dan farkı: Listen teslimatı SENKRONDUR — mutasyon çağrısı
// dönmeden snapshot'lar işlenmiş olur, testlerde bekleme gerekmez.
// Read çağrıları koleksiyon başına sayılır; cache davranışı store'a
// kaç kez inildiğinden doğrulanır.
type fakeStore struct {
	mu     sync.Mutex
	data   map[string]map[string]store.Document
	reads  map[string]int
	writes map[string]int

	nextListenerID int
	listeners      map[int]*fakeListener

	readErr error
}

type fakeListener struct {
	collection string
	filter     store.Filter
	onSnapshot func([]store.Document)
	onError    func(error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:      make(map[string]map[string]store.Document),
		reads:     make(map[string]int),
		writes:    make(map[string]int),
		listeners: make(map[int]*fakeListener),
	}
}

// seed, notify tetiklemeden kayıt ekler (test ön koşulu kurmak için).
func (f *fakeStore) seed(collection string, doc store.Document) string {
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}
	f.mu.Lock()
	if f.data[collection] == nil {
		f.data[collection] = make(map[string]store.Document)
	}
	f.data[collection][id] = doc
	f.mu.Unlock()
	return id
}

func (f *fakeStore) readCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[collection]
}

func (f *fakeStore) writeCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[collection]
}

func (f *fakeStore) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

func (f *fakeStore) Read(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error) {
	f.mu.Lock()
	f.reads[collection]++
	if err := f.readErr; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	docs := make([]store.Document, 0)
	for _, doc := range f.data[collection] {
		if filter == nil || filter(doc) {
			docs = append(docs, doc)
		}
	}
	f.mu.Unlock()
	return docs, nil
}

func (f *fakeStore) Write(ctx context.Context, collection string, doc store.Document) (string, error) {
	stored := make(store.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored["id"] = id
	}

	f.mu.Lock()
	f.writes[collection]++
	if f.data[collection] == nil {
		f.data[collection] = make(map[string]store.Document)
	}
	f.data[collection][id] = stored
	f.mu.Unlock()

	f.notify(collection)
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, collection, id string, partial store.Document) error {
	f.mu.Lock()
	doc, ok := f.data[collection][id]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: document %s/%s", pkg.ErrNotFound, collection, id)
	}
	merged := make(store.Document, len(doc)+len(partial))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	merged["id"] = id
	f.data[collection][id] = merged
	f.mu.Unlock()

	f.notify(collection)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	_, existed := f.data[collection][id]
	delete(f.data[collection], id)
	f.mu.Unlock()

	if existed {
		f.notify(collection)
	}
	return nil
}

func (f *fakeStore) Listen(collection string, filter store.Filter, onSnapshot func([]store.Document), onError func(error)) func() {
	l := &fakeListener{
		collection: collection,
		filter:     filter,
		onSnapshot: onSnapshot,
		onError:    onError,
	}

	f.mu.Lock()
	f.nextListenerID++
	id := f.nextListenerID
	f.listeners[id] = l
	f.mu.Unlock()

	// İlk teslimat: takıldığı andaki sonuç kümesi
	f.deliver(l)

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeStore) notify(collection string) {
	f.mu.Lock()
	matched := make([]*fakeListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		if l.collection == collection {
			matched = append(matched, l)
		}
	}
	f.mu.Unlock()

	for _, l := range matched {
		f.deliver(l)
	}
}

func (f *fakeStore) deliver(l *fakeListener) {
	docs, err := f.Read(context.Background(), l.collection, l.filter)
	if err != nil {
		if l.onError != nil {
			l.onError(err)
		}
		return
	}
	l.onSnapshot(docs)
}

// fakeHub, ws.EventPublisher implementasyonu — gönderilen event'leri kaydeder.
type fakeHub struct {
	mu       sync.Mutex
	online   []string
	toUser   map[string][]ws.Event
	toAll    []ws.Event
	toExcept []ws.Event
}

func newFakeHub(online ...string) *fakeHub {
	return &fakeHub{
		online: online,
		toUser: make(map[string][]ws.Event),
	}
}

func (h *fakeHub) BroadcastToAll(event ws.Event) {
	h.mu.Lock()
	h.toAll = append(h.toAll, event)
	h.mu.Unlock()
}

func (h *fakeHub) BroadcastToAllExcept(excludeUserID string, event ws.Event) {
	h.mu.Lock()
	h.toExcept = append(h.toExcept, event)
	h.mu.Unlock()
}

func (h *fakeHub) BroadcastToUser(userID string, event ws.Event) {
	h.mu.Lock()
	h.toUser[userID] = append(h.toUser[userID], event)
	h.mu.Unlock()
}

func (h *fakeHub) GetOnlineUserIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.online...)
}

func (h *fakeHub) userEvents(userID string) []ws.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ws.Event(nil), h.toUser[userID]...)
}

// fakeSocial, SocialService implementasyonu — mesaj politikası testlerde
// enjekte edilen hata ile taklit edilir.
type fakeSocial struct {
	canMessageErr error
}

func (s *fakeSocial) SendFollowRequest(ctx context.Context, followerID, followeeID string) (*models.Follow, error) {
	return &models.Follow{FollowerID: followerID, FolloweeID: followeeID}, nil
}

func (s *fakeSocial) AcceptRequest(ctx context.Context, userID, requestID string) (*models.Follow, error) {
	return &models.Follow{ID: requestID}, nil
}

func (s *fakeSocial) DeclineRequest(ctx context.Context, userID, requestID string) error {
	return nil
}

func (s *fakeSocial) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return nil
}

func (s *fakeSocial) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return false, nil
}

func (s *fakeSocial) CanMessage(ctx context.Context, senderID, recipientID string) error {
	return s.canMessageErr
}

func (s *fakeSocial) ListRequests(ctx context.Context, userID string) (*FollowRequestsResponse, error) {
	return &FollowRequestsResponse{}, nil
}
