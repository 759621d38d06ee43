package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/kadraj/store"
)

func newTestProfiles(fs *fakeStore) ProfileService {
	return NewProfileService(fs, time.Minute, 2, 0)
}

func TestGetProfileResolvesRegisteredUser(t *testing.T) {
	fs := newFakeStore()
	fs.seed(usersCollection, store.Document{
		"id":           "u1",
		"display_name": "Ayşe Gaffer",
		"avatar_url":   "https://cdn.example/a.png",
		"role":         "Gaffer",
	})
	profiles := newTestProfiles(fs)

	profile, ok := profiles.GetProfile(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "Ayşe Gaffer", profile.DisplayName)
	assert.Equal(t, "Gaffer", profile.Role)

	// İkinci çağrı cache'ten gelmeli — store'a yeni okuma inmez
	before := fs.readCount(usersCollection)
	_, ok = profiles.GetProfile(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, before, fs.readCount(usersCollection))
}

func TestGetProfileFallsBackToCrewDirectory(t *testing.T) {
	fs := newFakeStore()
	fs.seed(crewProfilesCollection, store.Document{
		"id":        "c1",
		"name":      "Mehmet Focus Puller",
		"photo_url": "https://cdn.example/m.png",
		"job_title": "1st AC",
	})
	profiles := newTestProfiles(fs)

	profile, ok := profiles.GetProfile(context.Background(), "c1")
	require.True(t, ok)
	assert.Equal(t, "Mehmet Focus Puller", profile.DisplayName)
	assert.Equal(t, "1st AC", profile.Role)
	assert.Equal(t, "https://cdn.example/m.png", profile.AvatarURL)

	// Önce users'a, bulamayınca crew_profiles'a bakılmış olmalı
	assert.Equal(t, 1, fs.readCount(usersCollection))
	assert.Equal(t, 1, fs.readCount(crewProfilesCollection))
}

func TestGetProfileCachesAbsentResult(t *testing.T) {
	fs := newFakeStore()
	profiles := newTestProfiles(fs)

	_, ok := profiles.GetProfile(context.Background(), "ghost")
	require.False(t, ok)
	assert.Equal(t, 1, fs.readCount(usersCollection))
	assert.Equal(t, 1, fs.readCount(crewProfilesCollection))

	// Absent sonucu da cache'lenir — tekrar sorgu atılmaz
	_, ok = profiles.GetProfile(context.Background(), "ghost")
	require.False(t, ok)
	assert.Equal(t, 1, fs.readCount(usersCollection))
	assert.Equal(t, 1, fs.readCount(crewProfilesCollection))
}

func TestGetProfileDoesNotCacheReadErrors(t *testing.T) {
	fs := newFakeStore()
	fs.seed(usersCollection, store.Document{"id": "u1", "display_name": "Ayşe"})
	fs.setReadErr(errors.New("store unavailable"))
	profiles := newTestProfiles(fs)

	_, ok := profiles.GetProfile(context.Background(), "u1")
	require.False(t, ok)

	// Store toparlandı — hata cache'lenmediği için yeni çağrı çözer
	fs.setReadErr(nil)
	profile, ok := profiles.GetProfile(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "Ayşe", profile.DisplayName)
}

func TestGetDisplayNamePlaceholder(t *testing.T) {
	fs := newFakeStore()
	profiles := newTestProfiles(fs)

	assert.Equal(t, "User 1234", profiles.GetDisplayName(context.Background(), "abcdef1234"))
	assert.Equal(t, "User ab", profiles.GetDisplayName(context.Background(), "ab"))
}

func TestGetManyMergesBothTiersAndSkipsAbsent(t *testing.T) {
	fs := newFakeStore()
	fs.seed(usersCollection, store.Document{"id": "u1", "display_name": "Ayşe"})
	fs.seed(usersCollection, store.Document{"id": "u2", "display_name": "Mehmet"})
	fs.seed(usersCollection, store.Document{"id": "u3", "display_name": "Zeynep"})
	fs.seed(crewProfilesCollection, store.Document{"id": "c1", "name": "Deniz"})
	profiles := newTestProfiles(fs)

	result := profiles.GetMany(context.Background(), []string{"u1", "u2", "u3", "c1", "ghost", "u1", ""})

	require.Len(t, result, 4)
	assert.Equal(t, "Ayşe", result["u1"].DisplayName)
	assert.Equal(t, "Mehmet", result["u2"].DisplayName)
	assert.Equal(t, "Zeynep", result["u3"].DisplayName)
	assert.Equal(t, "Deniz", result["c1"].DisplayName)

	// Absent id map'te YER ALMAZ — placeholder üretmek çağıranın işi
	_, found := result["ghost"]
	assert.False(t, found)
}

func TestGetManySinglePassWithWarmCache(t *testing.T) {
	fs := newFakeStore()
	fs.seed(usersCollection, store.Document{"id": "a", "display_name": "Önbellekli"})
	fs.seed(usersCollection, store.Document{"id": "b", "display_name": "Kayıtlı"})
	fs.seed(crewProfilesCollection, store.Document{"id": "c", "name": "Dizinden"})
	profiles := NewProfileService(fs, time.Minute, 10, 0)

	// a'yı tekil yoldan ısıt
	_, ok := profiles.GetProfile(context.Background(), "a")
	require.True(t, ok)
	usersBefore := fs.readCount(usersCollection)
	crewBefore := fs.readCount(crewProfilesCollection)

	result := profiles.GetMany(context.Background(), []string{"a", "b", "c"})
	require.Len(t, result, 3)
	assert.Equal(t, "Önbellekli", result["a"].DisplayName)
	assert.Equal(t, "Kayıtlı", result["b"].DisplayName)
	assert.Equal(t, "Dizinden", result["c"].DisplayName)

	// Tek geçiş: cache-miss'ler için users'a bir, karşılanamayanlar için
	// crew_profiles'a bir toplu sorgu — id başına ayrı lookup YOK
	assert.Equal(t, usersBefore+1, fs.readCount(usersCollection))
	assert.Equal(t, crewBefore+1, fs.readCount(crewProfilesCollection))
}

func TestGetManyChunksLookups(t *testing.T) {
	fs := newFakeStore()
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		fs.seed(usersCollection, store.Document{"id": id, "display_name": id})
	}
	profiles := newTestProfiles(fs) // chunkSize 2

	result := profiles.GetMany(context.Background(), []string{"u1", "u2", "u3", "u4", "u5"})
	require.Len(t, result, 5)

	// 5 id, chunk boyutu 2 → users'a 3 toplu sorgu; hepsi users'ta
	// bulunduğu için crew_profiles'a hiç inilmez
	assert.Equal(t, 3, fs.readCount(usersCollection))
	assert.Equal(t, 0, fs.readCount(crewProfilesCollection))
}

func TestGetManyWarmsSingleLookupCache(t *testing.T) {
	fs := newFakeStore()
	fs.seed(usersCollection, store.Document{"id": "u1", "display_name": "Ayşe"})
	profiles := newTestProfiles(fs)

	profiles.GetMany(context.Background(), []string{"u1"})
	before := fs.readCount(usersCollection)

	// Batch'in çözdüğü profil tekil yoldan bedavaya gelir
	profile, ok := profiles.GetProfile(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "Ayşe", profile.DisplayName)
	assert.Equal(t, before, fs.readCount(usersCollection))
}

func TestEvictForcesFreshResolve(t *testing.T) {
	fs := newFakeStore()
	id := fs.seed(usersCollection, store.Document{"id": "u1", "display_name": "Ayşe"})
	profiles := newTestProfiles(fs)

	profile, ok := profiles.GetProfile(context.Background(), id)
	require.True(t, ok)
	require.Equal(t, "Ayşe", profile.DisplayName)

	// Profil güncellendi; evict sonrası taze değer okunmalı
	fs.seed(usersCollection, store.Document{"id": "u1", "display_name": "Ayşe Y."})
	profiles.Evict(id)

	profile, ok = profiles.GetProfile(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, "Ayşe Y.", profile.DisplayName)
}

func TestGetProfileDeduplicatesConcurrentResolves(t *testing.T) {
	fs := newFakeStore()
	fs.seed(usersCollection, store.Document{"id": "u1", "display_name": "Ayşe"})
	profiles := newTestProfiles(fs)

	const n = 8
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := profiles.GetProfile(context.Background(), "u1")
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	// Eşzamanlı çağrılar tek lookup paylaşmalı
	assert.Equal(t, 1, fs.readCount(usersCollection))
}
