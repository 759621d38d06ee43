package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/akinalp/kadraj/blob"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/store"
)

// UploadService, avatar yükleme iş mantığı interface'i.
type UploadService interface {
	// UploadAvatar, görseli blob storage'a yazar, kullanıcının profilindeki
	// avatar_url alanını günceller ve yeni URL'i döner. Eski avatar (varsa)
	// best-effort silinir.
	UploadAvatar(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (string, error)
}

type uploadService struct {
	storage  blob.Storage
	store    store.Store
	profiles ProfileService
	maxSize  int64
}

// NewUploadService, constructor.
func NewUploadService(storage blob.Storage, st store.Store, profiles ProfileService, maxSize int64) UploadService {
	return &uploadService{
		storage:  storage,
		store:    st,
		profiles: profiles,
		maxSize:  maxSize,
	}
}

// allowedImageTypes, avatar olarak kabul edilen görsel türleri.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func (s *uploadService) UploadAvatar(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (string, error) {
	// Boyut kontrolü
	if header.Size > s.maxSize {
		return "", fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	// MIME type kontrolü — charset vb. parametreleri at
	contentType := header.Header.Get("Content-Type")
	mimeBase := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if !allowedImageTypes[mimeBase] {
		return "", fmt.Errorf("%w: file type not allowed: %s", pkg.ErrBadRequest, mimeBase)
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	// Unique path — {random_hex}_{original_filename} formatı
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random filename: %w", err)
	}
	path := "avatars/" + userID + "/" + hex.EncodeToString(randomBytes) + "_" + sanitizeFilename(header.Filename)

	// Mevcut avatar'ı sonra silebilmek için şimdi oku
	var oldURL string
	docs, err := s.store.Read(ctx, usersCollection, store.Eq("id", userID))
	if err == nil && len(docs) > 0 {
		oldURL = docs[0].String("avatar_url")
	}

	url, err := s.storage.Upload(ctx, path, data, mimeBase)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.store.Update(ctx, usersCollection, userID, store.Document{"avatar_url": url}); err != nil {
		// Profil güncellenemedi — yetim blob'u temizle
		if delErr := s.storage.Delete(ctx, path); delErr != nil {
			log.Printf("[upload] failed to clean orphan blob %s: %v", path, delErr)
		}
		return "", fmt.Errorf("failed to update profile: %w", err)
	}

	// Taze avatar bir sonraki okumada görünsün
	s.profiles.Evict(userID)

	// Eski avatar'ı best-effort sil — hata akışı bozmaz
	if oldPath, ok := storagePathFromURL(oldURL); ok {
		_ = s.storage.Delete(ctx, oldPath)
	}

	return url, nil
}

// sanitizeFilename, dosya adını güvenli hale getirir.
// Path traversal saldırılarını önler (../../etc/passwd gibi).
func sanitizeFilename(name string) string {
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '\x00' {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}

	return name
}

// storagePathFromURL, bizim ürettiğimiz avatar URL'inden storage path'ini
// geri çıkarır. Dış kaynaklı URL'ler (OAuth avatarı gibi) eşleşmez.
func storagePathFromURL(url string) (string, bool) {
	idx := strings.Index(url, "/avatars/")
	if idx < 0 {
		return "", false
	}
	return strings.TrimPrefix(url[idx:], "/"), true
}
