// Package main, kadraj backend uygulamasının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//   1.  Config'i yükle
//   2.  Database'i başlat (embedded migration'lar ile)
//   3.  Document store'u oluştur
//   4.  WebSocket Hub'ı başlat
//   5.  Blob storage provider'ı seç (disk / R2)
//   6.  Service'leri oluştur (store + hub + cache ayarları ile)
//   7.  Handler'ları oluştur (service'ler ile)
//   8.  Middleware'ları oluştur
//   9.  HTTP router'ı kur, route'ları bağla
//  10.  CORS yapılandır
//  11.  HTTP Server'ı başlat
//  12.  Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/akinalp/kadraj/blob"
	"github.com/akinalp/kadraj/config"
	"github.com/akinalp/kadraj/database"
	"github.com/akinalp/kadraj/handlers"
	"github.com/akinalp/kadraj/middleware"
	"github.com/akinalp/kadraj/pkg/ratelimit"
	"github.com/akinalp/kadraj/services"
	"github.com/akinalp/kadraj/store"
	"github.com/akinalp/kadraj/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] kadraj server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to access embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Document Store ───
	//
	// Tüm uygulama verisi tek bir şemasız "documents" tablosunda yaşar.
	// Store, koleksiyon bazlı okuma/yazma ve canlı dinleme (Listen) sağlar —
	// service'lerin abonelik katmanı bunun üzerine kuruludur.
	docStore := store.NewSQLiteStore(db.Conn)
	defer docStore.Close()

	// ─── 4. WebSocket Hub ───
	//
	// Hub, tüm WebSocket bağlantılarını yöneten merkezi yapıdır.
	// `go hub.Run()` ayrı bir goroutine'de event loop başlatır.
	// Hub aynı zamanda EventPublisher interface'ini implement eder —
	// service'ler hub'a interface üzerinden erişir.
	hub := ws.NewHub()
	go hub.Run()

	// ─── 5. Blob Storage ───
	var blobStorage blob.Storage
	switch cfg.Upload.Driver {
	case "r2":
		r2, err := blob.NewR2Storage(context.Background(), blob.R2Config{
			AccountID:       cfg.Upload.R2AccountID,
			AccessKeyID:     cfg.Upload.R2AccessKeyID,
			AccessKeySecret: cfg.Upload.R2AccessKeySecret,
			Bucket:          cfg.Upload.R2Bucket,
			PublicURL:       cfg.Upload.R2PublicURL,
		})
		if err != nil {
			log.Fatalf("[main] failed to initialize R2 storage: %v", err)
		}
		blobStorage = r2
		log.Printf("[main] blob storage: R2 (bucket=%s)", cfg.Upload.R2Bucket)
	default:
		disk, err := blob.NewDiskStorage(cfg.Upload.Dir, cfg.Upload.BaseURL)
		if err != nil {
			log.Fatalf("[main] failed to initialize disk storage: %v", err)
		}
		blobStorage = disk
		log.Printf("[main] blob storage: disk (dir=%s)", cfg.Upload.Dir)
	}

	// ─── 6. Service Layer ───
	identityBroker := services.NewIdentityBroker()

	profileService := services.NewProfileService(
		docStore,
		cfg.Cache.ProfileTTL,
		cfg.Cache.ChunkSize,
		cfg.Cache.MaxEntries,
	)

	authService := services.NewAuthService(
		docStore,
		profileService,
		identityBroker,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
	)

	socialService := services.NewSocialService(docStore, profileService, hub)

	messageLimiter := ratelimit.NewMessageRateLimiter(5, 5*time.Second, 15*time.Second)
	defer messageLimiter.Stop()
	conversationService := services.NewConversationService(
		docStore,
		profileService,
		socialService,
		hub,
		messageLimiter,
		cfg.Cache.ConversationTTL,
		cfg.Cache.MaxEntries,
	)
	defer conversationService.Close()

	activityService := services.NewActivityService(
		docStore,
		profileService,
		hub,
		cfg.Cache.ActivityTTL,
		cfg.Cache.MaxEntries,
	)
	defer activityService.Close()

	typingService := services.NewTypingService(docStore, cfg.Typing.Idle)
	defer typingService.Close()

	uploadService := services.NewUploadService(blobStorage, docStore, profileService, cfg.Upload.MaxSize)

	// Typing akışı: client WS üzerinden typing event'i gönderir → hub
	// callback'i store'a yazar → karşı tarafın typing aboneliği snapshot
	// alır. WS'e ayrıca anlık typing_start/stop event'i de basılır ki
	// store'a abone olmayan basit client'lar da göstergeyi çizebilsin.
	hub.SetTypingCallback(func(fromID, toID string, typing bool) {
		if err := typingService.SetTyping(context.Background(), fromID, toID, typing); err != nil {
			log.Printf("[typing] failed to persist typing state: %v", err)
			return
		}
		op := ws.OpTypingStart
		if !typing {
			op = ws.OpTypingStop
		}
		hub.BroadcastToUser(toID, ws.Event{Op: op, Data: ws.TypingEventData{UserID: fromID}})
	})

	// ─── 7. Handler Layer ───
	loginLimiter := ratelimit.NewLoginRateLimiter(5, 2*time.Minute)
	defer loginLimiter.Stop()

	authHandler := handlers.NewAuthHandler(authService, loginLimiter)
	profileHandler := handlers.NewProfileHandler(profileService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	socialHandler := handlers.NewSocialHandler(socialService)
	activityHandler := handlers.NewActivityHandler(activityService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	wsHandler := ws.NewHandler(hub, authService)

	// ─── 8. Middleware ───
	authMiddleware := middleware.NewAuthMiddleware(authService)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMiddleware.Require(http.HandlerFunc(handler))
	}

	// ─── 9. HTTP Router ───
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"kadraj"}`)
	})

	// Auth — public endpoint'ler (token gerekmez)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("POST /api/auth/logout", auth(authHandler.Logout))

	// User
	mux.Handle("GET /api/users/me", auth(authHandler.Me))
	mux.Handle("POST /api/users/me/avatar", auth(uploadHandler.UploadAvatar))

	// Profiles
	// Route sıralama kuralı: literal path'ler parametrik path'lerden ÖNCE.
	mux.Handle("POST /api/profiles/batch", auth(profileHandler.BatchProfiles))
	mux.Handle("GET /api/profiles/{userId}", auth(profileHandler.GetProfile))

	// Conversations
	mux.Handle("GET /api/conversations", auth(conversationHandler.ListSummaries))
	mux.Handle("GET /api/conversations/{userId}/messages", auth(conversationHandler.GetMessages))
	mux.Handle("POST /api/conversations/{userId}/messages", auth(conversationHandler.SendMessage))
	mux.Handle("POST /api/conversations/{userId}/read", auth(conversationHandler.MarkRead))
	mux.Handle("GET /api/conversations/{userId}/unread", auth(conversationHandler.GetUnreadCount))

	// Follows
	mux.Handle("GET /api/follows/requests", auth(socialHandler.ListRequests))
	mux.Handle("POST /api/follows/requests/{id}/accept", auth(socialHandler.AcceptRequest))
	mux.Handle("DELETE /api/follows/requests/{id}", auth(socialHandler.DeclineRequest))
	mux.Handle("POST /api/follows/{userId}", auth(socialHandler.SendRequest))
	mux.Handle("DELETE /api/follows/{userId}", auth(socialHandler.Unfollow))

	// Activities
	mux.Handle("GET /api/activities", auth(activityHandler.GetFeed))
	mux.Handle("POST /api/activities", auth(activityHandler.PostActivity))

	// Static file serving — disk driver'da yüklenen avatarlara erişim
	//
	// http.StripPrefix: URL'den "/api/uploads/" kısmını çıkarır.
	// http.FileServer: Kalan path'i upload dizininde dosya olarak arar.
	// Avatar path'leri "avatars/<userID>/<file>" şeklinde subdirectory içerir;
	// ".." içeren path'ler reddedilir.
	uploadsHandler := http.StripPrefix("/api/uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "\\") {
			http.NotFound(w, r)
			return
		}
		http.FileServer(http.Dir(cfg.Upload.Dir)).ServeHTTP(w, r)
	}))
	mux.Handle("GET /api/uploads/", uploadsHandler)

	// WebSocket — token query parameter ile authenticate edilir
	//
	// WebSocket upgrade sırasında tarayıcılar custom HTTP header gönderemez.
	// Bu yüzden JWT token URL query parameter olarak gönderilir:
	//   ws://server/ws?token=JWT_TOKEN
	// WS handler kendi içinde token doğrulaması yapar.
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)

	// ─── 10. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000", // Vite dev server
			"http://localhost:1420", // Tauri dev
			"tauri://localhost",     // Tauri production
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            false,
	})

	handler := corsHandler.Handler(mux)

	// ─── 11. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 12. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce WebSocket bağlantılarını kapat — client'lar "server shutting down" bilir.
	// Sonra HTTP server'ı kapat — yeni request kabul etmeyi durdurur,
	// mevcut request'lerin bitmesini bekler (5sn timeout).
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
