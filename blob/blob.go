// Package blob, dosya içeriği için depolama soyutlaması.
//
// İki provider vardır: lokal disk (geliştirme) ve Cloudflare R2 (prod).
// Service katmanı yalnızca Storage interface'ini görür — hangi provider'ın
// arkada olduğu config'den gelir.
package blob

import "context"

// Storage, blob depolama interface'i.
type Storage interface {
	// Upload, içeriği verilen path'e yazar ve erişilebilir URL'i döner.
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// PublicURL, path için public erişim URL'ini döner. Upload'dan
	// bağımsız çağrılabilir (URL deterministic'tir).
	PublicURL(path string) string

	// Delete, içeriği siler. Var olmayan path için hata dönmez.
	Delete(ctx context.Context, path string) error
}
