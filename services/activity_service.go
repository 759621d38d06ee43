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
	"github.com/akinalp/kadraj/pkg/realtime"
	"github.com/akinalp/kadraj/store"
	"github.com/akinalp/kadraj/ws"
)

const (
	activitiesCollection = "activities"

	// activityCachePrefix: feed cache key'lerinin ortak prefix'i.
	// Yeni aktivite yazıldığında tüm limit varyantları tek seferde düşer.
	activityCachePrefix = "activity_"

	activityFeedKey = "activity_feed"
)

// ActivityService, set aktivite akışı (kim hangi projede ne yapıyor).
type ActivityService interface {
	// Feed, en yeni aktiviteleri aktör profilleriyle zenginleştirilmiş
	// döner. Sonuç TTL cache'lidir.
	Feed(ctx context.Context, limit int) ([]models.Activity, error)

	// Post, yeni aktivite yayınlar ve feed cache'ini düşürür.
	Post(ctx context.Context, actorID string, req *models.PostActivityRequest) (*models.Activity, error)

	// SubscribeFeed, feed'e canlı abonelik açar. Tekrar çağrı öncekini kapatır.
	SubscribeFeed(limit int, cb func([]models.Activity))
	UnsubscribeFeed()

	Close()
}

type activityService struct {
	store    store.Store
	profiles ProfileService
	hub      ws.EventPublisher
	registry *realtime.Registry
	cache    *cache.Cache[[]models.Activity]
	feedTTL  time.Duration
}

// NewActivityService, constructor.
func NewActivityService(st store.Store, profiles ProfileService, hub ws.EventPublisher, feedTTL time.Duration, cacheMaxEntries int) ActivityService {
	return &activityService{
		store:    st,
		profiles: profiles,
		hub:      hub,
		registry: realtime.NewRegistry(),
		cache:    cache.New[[]models.Activity](cacheMaxEntries),
		feedTTL:  feedTTL,
	}
}

func (s *activityService) Feed(ctx context.Context, limit int) ([]models.Activity, error) {
	key := fmt.Sprintf("%sfeed_%d", activityCachePrefix, limit)
	feed, err := s.cache.GetOrFetch(ctx, key, s.feedTTL, func(ctx context.Context) ([]models.Activity, error) {
		docs, err := s.store.Read(ctx, activitiesCollection, store.All())
		if err != nil {
			return nil, err
		}
		return s.deriveFeed(ctx, docs, limit), nil
	})
	if err != nil {
		log.Printf("[activity] failed to load feed: %v", err)
		return []models.Activity{}, nil
	}
	return feed, nil
}

func (s *activityService) Post(ctx context.Context, actorID string, req *models.PostActivityRequest) (*models.Activity, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	activity := &models.Activity{
		ActorID:   actorID,
		Verb:      req.Verb,
		Subject:   req.Subject,
		CreatedAt: time.Now().UTC(),
	}

	id, err := s.store.Write(ctx, activitiesCollection, store.Document{
		"actor_id":   activity.ActorID,
		"verb":       activity.Verb,
		"subject":    activity.Subject,
		"created_at": activity.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post activity: %w", err)
	}
	activity.ID = id

	// Tüm feed varyantlarını tek prefix ile düşür
	s.cache.InvalidateByPrefix(activityCachePrefix)

	if actor, ok := s.profiles.GetProfile(ctx, actorID); ok {
		activity.Actor = actor
	}
	s.hub.BroadcastToAll(ws.Event{Op: ws.OpActivityCreate, Data: activity})

	return activity, nil
}

func (s *activityService) SubscribeFeed(limit int, cb func([]models.Activity)) {
	s.registry.Subscribe(activityFeedKey, func(token realtime.Token) func() {
		return s.store.Listen(activitiesCollection, store.All(),
			func(docs []store.Document) {
				if !token.Alive() {
					return
				}
				// Reconcile: last-snapshot-wins, cache'e toptan yaz —
				// Feed() bir sonraki çağrıda TTL dolmasını beklemeden
				// abonelikten gelen güncel veriyi görür
				feed := s.deriveFeed(context.Background(), docs, limit)
				s.cache.Set(fmt.Sprintf("%sfeed_%d", activityCachePrefix, limit), feed, s.feedTTL)
				cb(feed)
			},
			func(err error) {
				log.Printf("[activity] feed listener error: %v", err)
				if token.Alive() {
					cb([]models.Activity{})
				}
			})
	})
}

func (s *activityService) UnsubscribeFeed() {
	s.registry.Unsubscribe(activityFeedKey)
}

func (s *activityService) Close() {
	s.registry.Close()
}

// deriveFeed, aktivite kayıtlarını en yeniden eskiye sıralar, limit uygular
// ve aktör profillerini tek batch'te çözer.
func (s *activityService) deriveFeed(ctx context.Context, docs []store.Document, limit int) []models.Activity {
	activities := make([]models.Activity, 0, len(docs))
	for _, doc := range docs {
		activities = append(activities, models.Activity{
			ID:        doc.ID(),
			ActorID:   doc.String("actor_id"),
			Verb:      doc.String("verb"),
			Subject:   doc.String("subject"),
			CreatedAt: doc.Time("created_at"),
		})
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}

	actorIDs := make([]string, 0, len(activities))
	for _, a := range activities {
		actorIDs = append(actorIDs, a.ActorID)
	}
	actors := s.profiles.GetMany(ctx, actorIDs)
	for i := range activities {
		activities[i].Actor = actors[activities[i].ActorID]
	}

	return activities
}
