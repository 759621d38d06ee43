package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/kadraj/models"
	"github.com/akinalp/kadraj/pkg"
	"github.com/akinalp/kadraj/store"
)

func newTestAuth(t *testing.T) (*fakeStore, *IdentityBroker, AuthService) {
	t.Helper()
	fs := newFakeStore()
	broker := NewIdentityBroker()
	profiles := NewProfileService(fs, time.Minute, 10, 0)
	return fs, broker, NewAuthService(fs, profiles, broker, "test-secret", time.Hour)
}

func registerReq() *models.RegisterRequest {
	return &models.RegisterRequest{
		Username:    "ayse_gaffer",
		Password:    "correct-horse-9",
		Email:       "ayse@example.com",
		DisplayName: "Ayşe Gaffer",
		Role:        "Gaffer",
		Company:     "Karanlık Oda Film",
	}
}

func TestRegisterCreatesAccountAndVisibleProfile(t *testing.T) {
	fs, broker, svc := newTestAuth(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.Account.ID)
	assert.Equal(t, "ayse_gaffer", result.Account.Username)

	// Profil kaydı hesapla aynı id'yi taşımalı
	docs, err := fs.Read(ctx, usersCollection, store.Eq("id", result.Account.ID))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ayşe Gaffer", docs[0].String("display_name"))
	assert.Equal(t, string(models.MessagePolicyEveryone), docs[0].String("message_policy"))

	// Parola hash'lenmiş olmalı, düz metin saklanmaz
	accounts, err := fs.Read(ctx, accountsCollection, store.All())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.NotEqual(t, "correct-horse-9", accounts[0].String("password_hash"))
	assert.NotEmpty(t, accounts[0].String("password_hash"))

	// Register oturumu açar
	identity, signedIn := broker.CurrentIdentity()
	require.True(t, signedIn)
	assert.Equal(t, result.Account.ID, identity.UserID)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	_, _, svc := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerReq())
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	_, _, svc := newTestAuth(t)

	req := registerReq()
	req.Username = "ab"
	_, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	req = registerReq()
	req.Password = "short"
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestLoginRoundTrip(t *testing.T) {
	_, _, svc := newTestAuth(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	result, err := svc.Login(ctx, &models.LoginRequest{
		Username: "ayse_gaffer",
		Password: "correct-horse-9",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, result.Account.ID)

	claims, err := svc.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, claims.UserID)
	assert.Equal(t, "ayse_gaffer", claims.Username)
}

func TestLoginDoesNotLeakWhichFieldWasWrong(t *testing.T) {
	_, _, svc := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	// Yanlış şifre ve bilinmeyen kullanıcı aynı hatayı dönmeli
	_, errWrongPass := svc.Login(ctx, &models.LoginRequest{Username: "ayse_gaffer", Password: "wrong-password"})
	_, errNoUser := svc.Login(ctx, &models.LoginRequest{Username: "ghost_user", Password: "wrong-password"})

	assert.ErrorIs(t, errWrongPass, pkg.ErrUnauthorized)
	assert.ErrorIs(t, errNoUser, pkg.ErrUnauthorized)
	assert.Equal(t, errWrongPass.Error(), errNoUser.Error())
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	_, _, svc := newTestAuth(t)

	_, err := svc.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	fs := newFakeStore()
	broker := NewIdentityBroker()
	profiles := NewProfileService(fs, time.Minute, 10, 0)
	issuer := NewAuthService(fs, profiles, broker, "secret-a", time.Hour)
	verifier := NewAuthService(fs, profiles, broker, "secret-b", time.Hour)

	result, err := issuer.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(result.AccessToken)
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestLogoutSignsOutOnlyCurrentUser(t *testing.T) {
	_, broker, svc := newTestAuth(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	// Başka bir kullanıcının logout'u mevcut oturumu düşürmez
	svc.Logout("someone-else")
	_, signedIn := broker.CurrentIdentity()
	require.True(t, signedIn)

	svc.Logout(result.Account.ID)
	_, signedIn = broker.CurrentIdentity()
	assert.False(t, signedIn)
}
