// SocialService — takip grafiği iş mantığı.
//
// Business logic:
// - İstek gönderme: Kendine istek yollanamaz; aynı çift için zaten kayıt
//   varsa SESSİZCE YUTULMAZ, ErrAlreadyExists döner. Çağıran taraf
//   "zaten istendi" ile "gönderildi" durumlarını ayırt etmelidir.
// - Kabul etme: Sadece hedef kullanıcı (followee) kabul edebilir.
// - Reddetme/iptal: Hem gönderen hem alan taraf pending kaydı silebilir.
// - Mesaj politikası: CanMessage, yazma denemesinden ÖNCE çalışan lokal
//   bir kural kontrolüdür — store seviyesi bir hata değildir.
//
// WS broadcast: Hem gönderen hem alan tarafa event gönderilir.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/store"
	"github.com/akinalp/kadraj/ws"
)

const followsCollection = "follows"

// SocialService, takip ilişkileri için public interface.
type SocialService interface {
	// SendFollowRequest, pending bir takip isteği oluşturur.
	SendFollowRequest(ctx context.Context, followerID, followeeID string) (*models.Follow, error)

	// AcceptRequest, gelen bir takip isteğini kabul eder.
	AcceptRequest(ctx context.Context, userID, requestID string) (*models.Follow, error)

	// DeclineRequest, gelen isteği reddeder veya gönderilen isteği iptal eder.
	DeclineRequest(ctx context.Context, userID, requestID string) error

	// Unfollow, kabul edilmiş bir takip ilişkisini kaldırır.
	Unfollow(ctx context.Context, followerID, followeeID string) error

	// IsFollowing, follower → followee yönünde kabul edilmiş ilişki var mı.
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)

	// CanMessage, gönderenin alıcıya mesaj atıp atamayacağını kontrol eder.
	// Politika ihlali insan-okunur mesajlı ErrForbidden olarak döner.
	CanMessage(ctx context.Context, senderID, recipientID string) error

	// ListRequests, kullanıcıya gelen ve kullanıcının gönderdiği pending
	// istekleri, karşı taraf profilleri ile zenginleştirerek döner.
	ListRequests(ctx context.Context, userID string) (*FollowRequestsResponse, error)
}

// FollowRequestsResponse, gelen ve giden istekleri ayıran DTO.
type FollowRequestsResponse struct {
	Incoming []models.FollowWithProfile `json:"incoming"`
	Outgoing []models.FollowWithProfile `json:"outgoing"`
}

type socialService struct {
	store    store.Store
	profiles ProfileService
	hub      ws.EventPublisher
}

// NewSocialService, constructor.
func NewSocialService(st store.Store, profiles ProfileService, hub ws.EventPublisher) SocialService {
	return &socialService{
		store:    st,
		profiles: profiles,
		hub:      hub,
	}
}

func (s *socialService) SendFollowRequest(ctx context.Context, followerID, followeeID string) (*models.Follow, error) {
	if followerID == followeeID {
		return nil, fmt.Errorf("%w: cannot follow yourself", pkg.ErrBadRequest)
	}

	// Duplicate-action guard — aynı yönde herhangi bir kayıt (pending veya
	// accepted) varsa yeni istek açılmaz.
	existing, err := s.store.Read(ctx, followsCollection, store.And(
		store.Eq("follower_id", followerID),
		store.Eq("followee_id", followeeID),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing follow: %w", err)
	}
	if len(existing) > 0 {
		if existing[0].String("status") == string(models.FollowStatusAccepted) {
			return nil, fmt.Errorf("%w: already following this user", pkg.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%w: follow request already sent", pkg.ErrAlreadyExists)
	}

	follow := &models.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		Status:     models.FollowStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	id, err := s.store.Write(ctx, followsCollection, store.Document{
		"follower_id": follow.FollowerID,
		"followee_id": follow.FolloweeID,
		"status":      string(follow.Status),
		"created_at":  follow.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create follow request: %w", err)
	}
	follow.ID = id

	s.hub.BroadcastToUser(followeeID, ws.Event{Op: ws.OpFollowRequest, Data: follow})
	return follow, nil
}

func (s *socialService) AcceptRequest(ctx context.Context, userID, requestID string) (*models.Follow, error) {
	doc, err := s.getFollow(ctx, requestID)
	if err != nil {
		return nil, err
	}

	follow := followFromDoc(doc)
	if follow.FolloweeID != userID {
		return nil, fmt.Errorf("%w: only the requested user can accept", pkg.ErrForbidden)
	}
	if follow.Status != models.FollowStatusPending {
		return nil, fmt.Errorf("%w: request is not pending", pkg.ErrBadRequest)
	}

	if err := s.store.Update(ctx, followsCollection, requestID, store.Document{
		"status": string(models.FollowStatusAccepted),
	}); err != nil {
		return nil, fmt.Errorf("failed to accept follow request: %w", err)
	}
	follow.Status = models.FollowStatusAccepted

	s.hub.BroadcastToUser(follow.FollowerID, ws.Event{Op: ws.OpFollowAccepted, Data: follow})
	return follow, nil
}

func (s *socialService) DeclineRequest(ctx context.Context, userID, requestID string) error {
	doc, err := s.getFollow(ctx, requestID)
	if err != nil {
		return err
	}

	follow := followFromDoc(doc)
	if follow.FollowerID != userID && follow.FolloweeID != userID {
		return fmt.Errorf("%w: not a party of this request", pkg.ErrForbidden)
	}
	if follow.Status != models.FollowStatusPending {
		return fmt.Errorf("%w: request is not pending", pkg.ErrBadRequest)
	}

	return s.store.Delete(ctx, followsCollection, requestID)
}

func (s *socialService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	docs, err := s.store.Read(ctx, followsCollection, store.And(
		store.Eq("follower_id", followerID),
		store.Eq("followee_id", followeeID),
		store.Eq("status", string(models.FollowStatusAccepted)),
	))
	if err != nil {
		return fmt.Errorf("failed to look up follow: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: not following this user", pkg.ErrNotFound)
	}

	return s.store.Delete(ctx, followsCollection, docs[0].ID())
}

func (s *socialService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	docs, err := s.store.Read(ctx, followsCollection, store.And(
		store.Eq("follower_id", followerID),
		store.Eq("followee_id", followeeID),
		store.Eq("status", string(models.FollowStatusAccepted)),
	))
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// CanMessage, alıcının mesaj politikasını kontrol eder.
// Politika "followers" ise gönderenin kabul edilmiş bir takipçi olması
// gerekir. Politika alanı yoksa herkes mesaj atabilir.
func (s *socialService) CanMessage(ctx context.Context, senderID, recipientID string) error {
	docs, err := s.store.Read(ctx, usersCollection, store.Eq("id", recipientID))
	if err != nil {
		return fmt.Errorf("failed to read recipient profile: %w", err)
	}

	policy := models.MessagePolicyEveryone
	if len(docs) > 0 && docs[0].String("message_policy") != "" {
		policy = models.MessagePolicy(docs[0].String("message_policy"))
	}

	if policy != models.MessagePolicyFollowers {
		return nil
	}

	following, err := s.IsFollowing(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to check follow status: %w", err)
	}
	if !following {
		return fmt.Errorf("%w: this user only accepts messages from followers", pkg.ErrForbidden)
	}
	return nil
}

func (s *socialService) ListRequests(ctx context.Context, userID string) (*FollowRequestsResponse, error) {
	docs, err := s.store.Read(ctx, followsCollection, store.And(
		store.Eq("status", string(models.FollowStatusPending)),
		store.Or(
			store.Eq("follower_id", userID),
			store.Eq("followee_id", userID),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to list follow requests: %w", err)
	}

	resp := &FollowRequestsResponse{
		Incoming: make([]models.FollowWithProfile, 0),
		Outgoing: make([]models.FollowWithProfile, 0),
	}

	// Karşı taraf profillerini tek batch'te çöz.
	peerIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		follow := followFromDoc(doc)
		if follow.FolloweeID == userID {
			peerIDs = append(peerIDs, follow.FollowerID)
		} else {
			peerIDs = append(peerIDs, follow.FolloweeID)
		}
	}
	profiles := s.profiles.GetMany(ctx, peerIDs)

	for _, doc := range docs {
		follow := followFromDoc(doc)
		if follow.FolloweeID == userID {
			resp.Incoming = append(resp.Incoming, models.FollowWithProfile{
				Follow:  *follow,
				Profile: profiles[follow.FollowerID],
			})
		} else {
			resp.Outgoing = append(resp.Outgoing, models.FollowWithProfile{
				Follow:  *follow,
				Profile: profiles[follow.FolloweeID],
			})
		}
	}

	return resp, nil
}

// getFollow, id ile tek takip kaydı okur.
func (s *socialService) getFollow(ctx context.Context, id string) (store.Document, error) {
	docs, err := s.store.Read(ctx, followsCollection, store.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("failed to read follow request: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: follow request %s", pkg.ErrNotFound, id)
	}
	return docs[0], nil
}

// followFromDoc, store kaydını modele çevirir.
func followFromDoc(doc store.Document) *models.Follow {
	return &models.Follow{
		ID:         doc.ID(),
		FollowerID: doc.String("follower_id"),
		FolloweeID: doc.String("followee_id"),
		Status:     models.FollowStatus(doc.String("status")),
		CreatedAt:  doc.Time("created_at"),
	}
}
