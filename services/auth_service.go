package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/store"
)

const accountsCollection = "accounts"

// AuthService interface'i — dışarıya açık API.
// Handler bu interface'e bağımlıdır, concrete struct'a değil.
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error)
	Logout(userID string)
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// AuthResult, login/register sonrası dönen token + hesap bilgisi.
type AuthResult struct {
	AccessToken string         `json:"access_token"`
	Account     models.Account `json:"account"`
}

// authService, AuthService interface'inin implementasyonu.
type authService struct {
	store     store.Store
	profiles  ProfileService
	identity  *IdentityBroker
	jwtSecret []byte
	accessExp time.Duration
}

// NewAuthService, constructor.
func NewAuthService(st store.Store, profiles ProfileService, identity *IdentityBroker, jwtSecret string, accessExp time.Duration) AuthService {
	return &authService{
		store:     st,
		profiles:  profiles,
		identity:  identity,
		jwtSecret: []byte(jwtSecret),
		accessExp: accessExp,
	}
}

// Register, yeni hesap + görünür profil kaydı oluşturur.
//
// Hesap (credentials) ile profil (display bilgisi) ayrı koleksiyonlardır:
// profil herkese okunur, hesap yalnızca login akışında kullanılır.
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error) {
	// 1. Validation
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	// 2. Username tekil mi?
	if _, err := s.getAccountByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username is taken", pkg.ErrAlreadyExists)
	} else if !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	// 3. Bcrypt hash (cost=12)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 4. Hesap kaydı
	accountID, err := s.store.Write(ctx, accountsCollection, store.Document{
		"username":      req.Username,
		"email":         req.Email,
		"password_hash": string(hash),
		"created_at":    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// 5. Görünür profil — hesapla aynı id'yi taşır
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	_, err = s.store.Write(ctx, usersCollection, store.Document{
		"id":             accountID,
		"username":       req.Username,
		"display_name":   displayName,
		"role":           req.Role,
		"company":        req.Company,
		"message_policy": string(models.MessagePolicyEveryone),
		"created_at":     time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	account := models.Account{
		ID:       accountID,
		Username: req.Username,
		Email:    req.Email,
	}
	return s.issueToken(account)
}

// Login, kullanıcı girişi yapar.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	doc, err := s.getAccountByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Username mi yanlış şifre mi — dışarı sızdırma
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(doc.String("password_hash")), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	account := models.Account{
		ID:       doc.ID(),
		Username: doc.String("username"),
		Email:    doc.String("email"),
	}
	return s.issueToken(account)
}

// Logout, oturum kimliğini düşürür. Token stateless olduğu için sunucuda
// iptal edilecek bir şey yoktur; identity dinleyicileri signed-out'a geçer.
func (s *authService) Logout(userID string) {
	if current, ok := s.identity.CurrentIdentity(); ok && current.UserID == userID {
		s.identity.SignOut()
	}
}

// ValidateAccessToken, JWT access token'ı doğrular ve claims'i döner.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	return claims, nil
}

// ─── Private Helpers ───

func (s *authService) getAccountByUsername(ctx context.Context, username string) (store.Document, error) {
	docs, err := s.store.Read(ctx, accountsCollection, store.Eq("username", username))
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if len(docs) == 0 {
		return nil, pkg.ErrNotFound
	}
	return docs[0], nil
}

func (s *authService) issueToken(account models.Account) (*AuthResult, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		UserID:   account.ID,
		Username: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "kadraj",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	s.identity.SignIn(Identity{UserID: account.ID, Username: account.Username})

	return &AuthResult{
		AccessToken: signed,
		Account:     account,
	}, nil
}
