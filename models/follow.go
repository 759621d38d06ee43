package models

import "time"

// FollowStatus, bir takip kaydının durumunu temsil eder.
type FollowStatus string

const (
	FollowStatusPending  FollowStatus = "pending"
	FollowStatusAccepted FollowStatus = "accepted"
)

// Follow, yönlü bir takip ilişkisini temsil eder:
// follower → followee, önce pending, kabul edilince accepted.
type Follow struct {
	ID         string       `json:"id"`
	FollowerID string       `json:"follower_id"`
	FolloweeID string       `json:"followee_id"`
	Status     FollowStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// FollowWithProfile, takip kaydı + karşı tarafın görüntüleme profili.
// Frontend'de istek listelerini render etmek için kullanılır.
type FollowWithProfile struct {
	Follow
	Profile *UserProfile `json:"profile,omitempty"`
}

// MessagePolicy, kullanıcının kimlerden mesaj kabul ettiğini belirler.
// "users" profil kaydındaki "message_policy" alanından okunur;
// alan yoksa varsayılan MessagePolicyEveryone'dır.
type MessagePolicy string

const (
	MessagePolicyEveryone  MessagePolicy = "everyone"
	MessagePolicyFollowers MessagePolicy = "followers"
)
