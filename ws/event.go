// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları yöneten merkezi yapı (Observer pattern)
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Event akışı:
// 1. Kullanıcı mesaj gönderir → HTTP POST → Service → DB kayıt
// 2. Service, Hub'ın BroadcastToUser metodunu çağırır
// 3. Hub, event'i ilgili client'lara iletir
// 4. Her client'ın WritePump'ı event'i WebSocket'e yazar
package ws

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op (operation): Event türü — "message_create", "heartbeat" vb.
// Data: Event'e özgü payload — mesaj objesi, aktivite bilgisi vb.
// Seq (sequence number): Her outbound event'e verilen artan sayı.
//   Frontend eksik event tespit etmek için seq'i takip eder.
//   Örnek: seq 5'ten sonra seq 7 gelirse, 6 kaybolmuş demektir.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// ────────────────────────────────────────────
// Operation sabitleri
// ────────────────────────────────────────────

// Client → Server operasyonları
const (
	OpHeartbeat = "heartbeat" // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali
	OpTyping    = "typing"    // Kullanıcı bir konuşmada yazıyor/yazmayı bıraktı
)

// Server → Client operasyonları
const (
	OpReady        = "ready"         // Bağlantı kurulduğunda ilk gönderilen — online kullanıcı listesi
	OpHeartbeatAck = "heartbeat_ack" // Heartbeat'e yanıt — "seni duydum"

	OpMessageCreate = "message_create" // Yeni mesaj geldi
	OpMessageRead   = "message_read"   // Karşı taraf mesajları okudu

	OpTypingStart = "typing_start" // Bir kullanıcı sana yazıyor
	OpTypingStop  = "typing_stop"  // Yazmayı bıraktı

	OpActivityCreate = "activity_create" // Sette yeni aktivite yayınlandı

	OpFollowRequest  = "follow_request"  // Yeni takip isteği geldi
	OpFollowAccepted = "follow_accepted" // Takip isteğin kabul edildi

	OpPresenceUpdate = "presence_update" // Bir kullanıcı online/offline oldu
)

// ReadyData, bağlantı kurulduğunda client'a gönderilen ilk event'in payload'ı.
// Frontend online kullanıcıları Set'e atar (presence indicator için).
type ReadyData struct {
	OnlineUserIDs []string `json:"online_user_ids"`
}

// PresenceData, bir kullanıcının bağlantı durumu değiştiğinde broadcast edilen payload.
type PresenceData struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// TypingData, typing event'inin Client → Server payload'ı.
type TypingData struct {
	PeerID string `json:"peer_id"`
	Typing bool   `json:"typing"`
}

// TypingEventData, typing_start / typing_stop event'lerinin payload'ı.
type TypingEventData struct {
	UserID string `json:"user_id"`
}
