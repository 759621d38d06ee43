package store

import "time"

// Timestamp, provider'a özgü timestamp wrapper'ı.
// Hosted database bazı yazım yollarında timestamp'leri bu yapıda döner;
// JSON'a {"seconds":..,"nanos":..} olarak serialize olur.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int64 `json:"nanos"`
}

// Time, wrapper'ı time.Time'a çevirir.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, t.Nanos).UTC()
}

// ToTime, bir timestamp alanını normalize eder.
//
// Aynı alan, yazım yoluna göre dört farklı şekilde gelebilir:
//   - time.Time (Go kodundan henüz JSON'a uğramamış değer)
//   - Timestamp wrapper'ı (veya JSON round-trip sonrası map hali)
//   - epoch milisaniye sayısı (int64 veya JSON'dan float64)
//   - RFC3339 string (JSON round-trip'ten geçen time.Time böyle döner)
//
// Her okuyucu bu fonksiyonu kullanır — modül başına kopyalanan üçlü
// tip kontrolü yerine tek merkezi dönüşüm. Tanınmayan değerler zero
// time döner; çağıran taraf IsZero() ile kontrol edebilir.
func ToTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case Timestamp:
		return t.Time()
	case *Timestamp:
		if t == nil {
			return time.Time{}
		}
		return t.Time()
	case map[string]any:
		// JSON round-trip'ten geçmiş Timestamp wrapper'ı
		sec, okSec := toFloat(t["seconds"])
		nanos, _ := toFloat(t["nanos"])
		if okSec {
			return time.Unix(int64(sec), int64(nanos)).UTC()
		}
		return time.Time{}
	case int64:
		return time.UnixMilli(t).UTC()
	case int:
		return time.UnixMilli(int64(t)).UTC()
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
