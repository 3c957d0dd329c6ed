package impl

import (
	"testing"
	"time"

	"jwtauth/config"
	"jwtauth/internal/domain/entity"
)

type fixture struct {
	store     *memStore
	txManager *fakeTxManager
	codec     *fakeCodec
	generator *fakeGenerator
	rotation  *tokenRotation
	gateway   *fakeGateway
	verifier  *fakeIDTokenVerifier
	states    *fakeStateStore
	hasher    *fakePasswordHasher
	auth      *authService
	now       time.Time
}

const testRefreshTTL = time.Hour

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     newMemStore(),
		codec:     &fakeCodec{},
		generator: &fakeGenerator{},
		gateway:   newFakeGateway(),
		verifier:  &fakeIDTokenVerifier{},
		states:    newFakeStateStore(),
		hasher:    &fakePasswordHasher{},
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.txManager = newFakeTxManager(f.store)

	cfg := &config.Config{
		Token: config.TokenConfig{
			AccessTokenTTL:  1800,
			RefreshTokenTTL: int64(testRefreshTTL / time.Second),
		},
		OAuth: config.OAuthConfig{
			Timeout:  time.Second,
			StateTTL: time.Minute,
		},
	}
	logger := newDiscardLogger()

	f.rotation = NewTokenRotation(TokenRotationParams{
		TxManager: f.txManager,
		Codec:     f.codec,
		Generator: f.generator,
		Hasher:    fakeTokenHasher{},
		Config:    cfg,
		Logger:    logger,
	}).(*tokenRotation)
	f.rotation.now = func() time.Time { return f.now }

	linker := NewIdentityLinker(IdentityLinkerParams{
		TxManager: f.txManager,
		Logger:    logger,
	})

	f.auth = NewAuthService(AuthServiceParams{
		TxManager:       f.txManager,
		Hasher:          f.hasher,
		Rotation:        f.rotation,
		Linker:          linker,
		Gateway:         f.gateway,
		IDTokenVerifier: f.verifier,
		StateStore:      f.states,
		StateGenerator:  &fakeGenerator{},
		Config:          cfg,
		Logger:          logger,
	}).(*authService)

	return f
}

func (f *fixture) seedAccount(username, password string) *entity.Account {
	hash := "hashed:" + password

	return f.store.addAccount(&entity.Account{
		Username:     username,
		PasswordHash: &hash,
		Nickname:     username,
		Role:         entity.RoleUser,
	})
}

func strPtr(s string) *string {
	return &s
}
