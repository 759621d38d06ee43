// Package models, uygulamanın domain modellerini (veri yapıları) tanımlar.
//
// Model nedir?
// Document store'daki bir kaydın (veya ondan türetilen görünümün) Go
// karşılığıdır. Aynı zamanda API'den gelen/giden verilerin şeklini belirler.
//
// Go'da `json:"display_name"` gibi tag'ler, struct field'larının JSON'a
// nasıl serialize/deserialize edileceğini belirler.
package models

// UserProfile, görüntüleme amaçlı denormalize kullanıcı projeksiyonudur.
//
// İki farklı kayıt türünden türetilebilir: genel "users" kaydı veya set
// ekibine özgü "crew_profiles" kaydı. Resolver önce birincisini dener,
// bulamazsa ikincisine düşer. Bu katman profili asla kendisi persist etmez —
// başkasının sahip olduğu verinin read-through cache'idir.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        string `json:"role,omitempty"` // Set rolü / iş unvanı: "Gaffer", "1st AD" vb.
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
}
