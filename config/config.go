// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Config struct'ı tüm ayarları tek bir yerde toplar, böylece
// her yerde ayrı ayrı os.Getenv() çağırmak yerine tek bir Config nesnesi taşırız.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — Single Responsibility: her struct tek bir concern'ü temsil eder.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Cache    CacheConfig
	Upload   UploadConfig
	Typing   TypingConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/kadraj.db)
}

// JWTConfig, JWT token ayarları.
type JWTConfig struct {
	Secret            string // Token imzalama anahtarı — GİZLİ TUTULMALI
	AccessTokenExpiry int    // Dakika cinsinden (varsayılan: 60)
}

// CacheConfig, okuma katmanı cache ayarları.
//
// ProfileTTL bilinçli olarak sınırlıdır: profiller nadiren değişir ama
// süresiz cache'lenirse isim/avatar güncellemeleri restart'a kadar görünmez.
type CacheConfig struct {
	ProfileTTL      time.Duration // Profil cache ömrü (varsayılan: 5dk)
	ConversationTTL time.Duration // Konuşma özeti cache ömrü (varsayılan: 30sn)
	ActivityTTL     time.Duration // Aktivite feed cache ömrü (varsayılan: 30sn)
	MaxEntries      int           // Cache başına maksimum kayıt sayısı
	ChunkSize       int           // Batch profil sorgularında `in` chunk boyutu
}

// UploadConfig, avatar yükleme ayarları.
type UploadConfig struct {
	// Driver: "disk" (lokal geliştirme) veya "r2" (Cloudflare R2).
	Driver  string
	Dir     string // disk driver: dosyaların kaydedileceği dizin
	BaseURL string // disk driver: servis edilen public URL prefix'i
	MaxSize int64  // Byte cinsinden max dosya boyutu (varsayılan: 5MB)

	// R2 ayarları — Driver "r2" olduğunda zorunlu.
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	R2PublicURL       string
}

// TypingConfig, "yazıyor..." göstergesi ayarları.
type TypingConfig struct {
	// Idle: son tuş vuruşundan typing durumunun otomatik temizlenmesine
	// kadar geçen süre.
	Idle time.Duration
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env dosyasını yükle — dosya yoksa hata vermez, sessizce devam eder.
	// Production'da bu dosya olmaz, gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	profileTTL, err := durationEnv("CACHE_PROFILE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	conversationTTL, err := durationEnv("CACHE_CONVERSATION_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	activityTTL, err := durationEnv("CACHE_ACTIVITY_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	maxEntries, err := strconv.Atoi(getEnv("CACHE_MAX_ENTRIES", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_MAX_ENTRIES: %w", err)
	}

	chunkSize, err := strconv.Atoi(getEnv("CACHE_BATCH_CHUNK_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_BATCH_CHUNK_SIZE: %w", err)
	}

	maxSize, err := strconv.ParseInt(getEnv("UPLOAD_MAX_SIZE", "5242880"), 10, 64) // 5MB
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %w", err)
	}

	typingIdle, err := durationEnv("TYPING_IDLE", 2*time.Second)
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	uploadDriver := getEnv("UPLOAD_DRIVER", "disk")
	switch uploadDriver {
	case "disk", "r2":
		// geçerli
	default:
		return nil, fmt.Errorf("invalid UPLOAD_DRIVER: %s (use disk or r2)", uploadDriver)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/kadraj.db"),
		},
		JWT: JWTConfig{
			Secret:            jwtSecret,
			AccessTokenExpiry: accessExpiry,
		},
		Cache: CacheConfig{
			ProfileTTL:      profileTTL,
			ConversationTTL: conversationTTL,
			ActivityTTL:     activityTTL,
			MaxEntries:      maxEntries,
			ChunkSize:       chunkSize,
		},
		Upload: UploadConfig{
			Driver:            uploadDriver,
			Dir:               getEnv("UPLOAD_DIR", "./data/uploads"),
			BaseURL:           getEnv("UPLOAD_BASE_URL", "/api/uploads"),
			MaxSize:           maxSize,
			R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
			R2Bucket:          getEnv("R2_BUCKET", ""),
			R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),
		},
		Typing: TypingConfig{
			Idle: typingIdle,
		},
	}

	return cfg, nil
}

// Addr, server'ın listen adresini döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv, duration formatındaki env variable'ı parse eder (ör: "5m", "30s").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
