// Package services — uygulamanın iş mantığı katmanı.
//
// Her service bir interface + private implementasyon çiftidir.
// Handler ve diğer service'ler interface'e bağımlıdır (Dependency
// Inversion) — testlerde sahte implementasyon takılabilir.
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg/cache"
	"github.com/akinalp/kadraj/store"
)

// Profil kayıtlarının okunduğu koleksiyonlar.
// Resolver önce users'a bakar, bulamazsa crew_profiles'a düşer —
// set ekibi üyeleri uygulamaya hiç kayıt olmadan da crew dizininde
// görünebilir, bu yüzden iki ayrı kayıt türü vardır.
const (
	usersCollection        = "users"
	crewProfilesCollection = "crew_profiles"
)

// profileCacheKeyPrefix, resolver'ın cache key namespace'i.
const profileCacheKeyPrefix = "profile_"

// ProfileService, kullanıcı görüntüleme profillerinin read-through
// cache'li çözümlemesi.
//
// Tekil çözümleme (GetProfile) ve toplu çözümleme (GetMany) aynı cache'i
// paylaşır — bir component'in çözdüğü profil diğerine bedavaya gelir.
//
// Hata politikası: okuma hataları çağırana ASLA dönmez. Profil
// çözümlenemezse "absent" kabul edilir ve diagnostic loglanır —
// bir avatar'ın boş görünmesi, ekranın hata ile çökmesinden iyidir.
type ProfileService interface {
	// GetProfile, profili çözer. İkinci dönüş değeri false ise profil
	// iki kayıt türünde de yok demektir (absent).
	GetProfile(ctx context.Context, id string) (*models.UserProfile, bool)

	// GetDisplayName, profilin görünen adını döner; profil absent ise
	// deterministik placeholder üretir: "User " + id'nin son 4 karakteri.
	GetDisplayName(ctx context.Context, id string) string

	// GetMany, birden fazla id'yi topluca çözer. Dönen map yalnızca
	// çözülebilen profilleri içerir — absent id'ler map'te YOKTUR,
	// placeholder üretmek çağıranın işidir. Tek bir id'nin çözülememesi
	// batch'i asla başarısız yapmaz.
	GetMany(ctx context.Context, ids []string) map[string]*models.UserProfile

	// Evict, tek bir profili cache'ten düşürür (profil düzenleme sonrası).
	Evict(id string)

	// Clear, tüm profil cache'ini boşaltır.
	Clear()
}

type profileService struct {
	store store.Store
	cache *cache.Cache[*models.UserProfile]

	// ttl: bulunan VE absent entry'lerin tazelik süresi. Upstream
	// davranışı "süresiz cache" idi — başka oturumların profil
	// düzenlemeleri hiç görünmüyordu. Burada bilinçli olarak
	// konservatif bir TTL uygulanır (dakikalar mertebesi).
	ttl time.Duration

	// chunkSize: GetMany'nin "in" sorgularını böldüğü parça boyutu.
	// Hosted database'in in-query limitinden gelir — tuning sabitidir,
	// doğruluk şartı değildir.
	chunkSize int
}

// NewProfileService, constructor.
func NewProfileService(st store.Store, ttl time.Duration, chunkSize int, maxEntries int) ProfileService {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &profileService{
		store:     st,
		cache:     cache.New[*models.UserProfile](maxEntries),
		ttl:       ttl,
		chunkSize: chunkSize,
	}
}

func (s *profileService) GetProfile(ctx context.Context, id string) (*models.UserProfile, bool) {
	// GetOrFetch hem cache'i hem eşzamanlı istek deduplication'ını
	// sağlar: aynı id için N eşzamanlı çağrı tek lookup çalıştırır.
	profile, err := s.cache.GetOrFetch(ctx, profileCacheKeyPrefix+id, s.ttl,
		func(ctx context.Context) (*models.UserProfile, error) {
			return s.resolve(ctx, id)
		})
	if err != nil {
		// Okuma hatası — absent'e düş ama CACHE'LEME: store toparlanınca
		// bir sonraki çağrı yeniden dener.
		log.Printf("[profiles] failed to resolve %s: %v", id, err)
		return nil, false
	}
	return profile, profile != nil
}

// resolve, iki katmanlı lookup yapar: users → crew_profiles → absent.
// İki koleksiyonda da bulunamayan id nil olarak CACHE'LENİR (cached null) —
// tekrar tekrar sorgu atılmaz, absent bilgisi de TTL'e tabidir.
func (s *profileService) resolve(ctx context.Context, id string) (*models.UserProfile, error) {
	docs, err := s.store.Read(ctx, usersCollection, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		return profileFromUserDoc(docs[0]), nil
	}

	docs, err = s.store.Read(ctx, crewProfilesCollection, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		return profileFromCrewDoc(docs[0]), nil
	}

	return nil, nil
}

func (s *profileService) GetDisplayName(ctx context.Context, id string) string {
	if profile, ok := s.GetProfile(ctx, id); ok && profile.DisplayName != "" {
		return profile.DisplayName
	}
	return placeholderName(id)
}

func (s *profileService) GetMany(ctx context.Context, ids []string) map[string]*models.UserProfile {
	result := make(map[string]*models.UserProfile, len(ids))

	// 1. Cache'tekileri ayıkla — yalnızca cache-miss olan id'ler sorgulanır.
	seen := make(map[string]bool, len(ids))
	var uncached []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if profile, ok := s.cache.Get(profileCacheKeyPrefix + id); ok {
			if profile != nil {
				result[id] = profile
			}
			continue
		}
		uncached = append(uncached, id)
	}

	if len(uncached) == 0 {
		return result
	}

	// 2. Kalanları chunk'lara böl, her chunk'ı paralel çöz.
	// errgroup'a error dönülmez — tek id'nin çözülememesi batch'i bozmaz.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(uncached); start += s.chunkSize {
		end := min(start+s.chunkSize, len(uncached))
		chunk := uncached[start:end]

		g.Go(func() error {
			s.resolveChunk(gctx, chunk, &mu, result)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// resolveChunk, bir chunk'ı iki katmanlı tek geçişte çözer:
// önce users'a tek "in" sorgusu, karşılanamayan id'ler için
// crew_profiles'a ikinci "in" sorgusu. Yine karşılanamayanlar
// absent olarak cache'lenir.
func (s *profileService) resolveChunk(ctx context.Context, chunk []string, mu *sync.Mutex, result map[string]*models.UserProfile) {
	unmet := make(map[string]bool, len(chunk))
	for _, id := range chunk {
		unmet[id] = true
	}

	collect := func(docs []store.Document, fromCrew bool) {
		for _, doc := range docs {
			var profile *models.UserProfile
			if fromCrew {
				profile = profileFromCrewDoc(doc)
			} else {
				profile = profileFromUserDoc(doc)
			}
			if profile.ID == "" {
				continue
			}
			delete(unmet, profile.ID)
			s.cache.Set(profileCacheKeyPrefix+profile.ID, profile, s.ttl)

			mu.Lock()
			result[profile.ID] = profile
			mu.Unlock()
		}
	}

	docs, err := s.store.Read(ctx, usersCollection, store.In("id", toAnySlice(chunk)...))
	if err != nil {
		log.Printf("[profiles] batch users lookup failed: %v", err)
		return
	}
	collect(docs, false)

	if len(unmet) > 0 {
		remaining := make([]any, 0, len(unmet))
		for id := range unmet {
			remaining = append(remaining, id)
		}

		docs, err = s.store.Read(ctx, crewProfilesCollection, store.In("id", remaining...))
		if err != nil {
			log.Printf("[profiles] batch crew lookup failed: %v", err)
			return
		}
		collect(docs, true)
	}

	// İki koleksiyonda da bulunamayanlar: absent olarak cache'le.
	for id := range unmet {
		s.cache.Set(profileCacheKeyPrefix+id, nil, s.ttl)
	}
}

func (s *profileService) Evict(id string) {
	s.cache.Invalidate(profileCacheKeyPrefix + id)
}

func (s *profileService) Clear() {
	s.cache.Clear()
}

// placeholderName, absent profiller için deterministik ad üretir:
// "User " + id'nin son 4 karakteri.
func placeholderName(id string) string {
	tail := id
	if len(id) > 4 {
		tail = id[len(id)-4:]
	}
	return "User " + tail
}

// profileFromUserDoc, bir "users" kaydını görüntüleme profiline çevirir.
func profileFromUserDoc(doc store.Document) *models.UserProfile {
	name := doc.String("display_name")
	if name == "" {
		name = doc.String("username")
	}
	return &models.UserProfile{
		ID:          doc.ID(),
		DisplayName: name,
		AvatarURL:   doc.String("avatar_url"),
		Role:        doc.String("role"),
		Company:     doc.String("company"),
		Location:    doc.String("location"),
	}
}

// profileFromCrewDoc, bir "crew_profiles" kaydını görüntüleme profiline çevirir.
// Crew kayıtları dizin odaklıdır — ad "name" alanında, rol "department" ile
// birleşik gelebilir.
func profileFromCrewDoc(doc store.Document) *models.UserProfile {
	name := doc.String("name")
	if name == "" {
		name = doc.String("display_name")
	}
	return &models.UserProfile{
		ID:          doc.ID(),
		DisplayName: name,
		AvatarURL:   doc.String("photo_url"),
		Role:        doc.String("job_title"),
		Company:     doc.String("company"),
		Location:    doc.String("location"),
	}
}

// toAnySlice, []string'i store.In'in variadic any parametresine çevirir.
func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
