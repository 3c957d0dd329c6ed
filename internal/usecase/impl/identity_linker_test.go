package impl

import (
	"context"
	"sync"
	"testing"

	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingTxManager lets a competing sign-in commit right before the first
// identity insert, as if it won the race for the same provider subject.
type racingTxManager struct {
	*fakeTxManager
	once   sync.Once
	winner func()
}

func (tm *racingTxManager) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	return tm.fakeTxManager.Execute(ctx, func(factory repository.RepositoryFactory) error {
		return fn(&racingFactory{RepositoryFactory: factory, tm: tm})
	})
}

type racingFactory struct {
	repository.RepositoryFactory
	tm *racingTxManager
}

func (f *racingFactory) OAuthIdentityRepo() repository.OAuthIdentityRepository {
	return &racingIdentityRepo{
		OAuthIdentityRepository: f.RepositoryFactory.OAuthIdentityRepo(),
		tm:                      f.tm,
	}
}

type racingIdentityRepo struct {
	repository.OAuthIdentityRepository
	tm *racingTxManager
}

func (r *racingIdentityRepo) Create(ctx context.Context, identity *entity.OAuthIdentity) error {
	r.tm.once.Do(r.tm.winner)

	return r.OAuthIdentityRepository.Create(ctx, identity)
}

func TestIdentityLinker_ConcurrentFirstLoginRetries(t *testing.T) {
	store := newMemStore()
	winner := &entity.Account{Base: entity.Base{ID: uuid.New()}, Username: "winner", Email: strPtr("winner@example.com"), Role: entity.RoleUser}

	tm := &racingTxManager{fakeTxManager: newFakeTxManager(store)}
	tm.winner = func() {
		store.addAccount(winner)
		store.mu.Lock()
		store.identities[identityKey(entity.ProviderTypeKakao, "42")] = &entity.OAuthIdentity{
			Base:              entity.Base{ID: uuid.New()},
			AccountID:         winner.ID,
			Provider:          entity.ProviderTypeKakao,
			ProviderSubjectID: "42",
		}
		store.mu.Unlock()
	}

	linker := NewIdentityLinker(IdentityLinkerParams{TxManager: tm, Logger: newDiscardLogger()})

	account, err := linker.ResolveOrCreate(context.Background(), entity.ProviderTypeKakao, &service.NormalizedUserInfo{
		ID:    "42",
		Email: "loser@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, winner.ID, account.ID)
	assert.Equal(t, 1, store.accountCount(), "the losing attempt's account is rolled back")
	assert.Equal(t, 1, store.identityCount())
}

func TestIdentityLinker_RejectsMissingSubject(t *testing.T) {
	store := newMemStore()
	linker := NewIdentityLinker(IdentityLinkerParams{TxManager: newFakeTxManager(store), Logger: newDiscardLogger()})

	_, err := linker.ResolveOrCreate(context.Background(), entity.ProviderTypeGoogle, &service.NormalizedUserInfo{Email: "a@example.com"})
	assert.True(t, errors.Is(err, domainerrors.ErrMissingRequiredProfileField))

	_, err = linker.ResolveOrCreate(context.Background(), entity.ProviderTypeGoogle, nil)
	assert.True(t, errors.Is(err, domainerrors.ErrMissingRequiredProfileField))
}

func TestIdentityLinker_ExistingIdentityIgnoresEmail(t *testing.T) {
	store := newMemStore()
	owner := store.addAccount(&entity.Account{Username: "owner", Role: entity.RoleUser})
	store.identities[identityKey(entity.ProviderTypeNaver, "nv-9")] = &entity.OAuthIdentity{
		Base:              entity.Base{ID: uuid.New()},
		AccountID:         owner.ID,
		Provider:          entity.ProviderTypeNaver,
		ProviderSubjectID: "nv-9",
	}
	linker := NewIdentityLinker(IdentityLinkerParams{TxManager: newFakeTxManager(store), Logger: newDiscardLogger()})

	// A returning subject does not need to release its email again.
	account, err := linker.ResolveOrCreate(context.Background(), entity.ProviderTypeNaver, &service.NormalizedUserInfo{ID: "nv-9"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, account.ID)
}

func TestIdentityLinker_UnverifiedEmailNeverLinksExistingAccount(t *testing.T) {
	store := newMemStore()
	hash := "hashed:secret"
	victim := store.addAccount(&entity.Account{
		Username:     "victim",
		PasswordHash: &hash,
		Email:        strPtr("victim@example.com"),
		Role:         entity.RoleUser,
	})
	linker := NewIdentityLinker(IdentityLinkerParams{TxManager: newFakeTxManager(store), Logger: newDiscardLogger()})

	// The gateway blanks an email the provider reports as unverified.
	_, err := linker.ResolveOrCreate(context.Background(), entity.ProviderTypeKakao, &service.NormalizedUserInfo{
		ID:       "kk-1",
		Nickname: "mallory",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrMissingRequiredProfileField), "got %v", err)
	assert.Equal(t, 1, store.accountCount())
	assert.Equal(t, 0, store.identityCount())
	assert.Equal(t, victim.ID, store.findAccountByUsername("victim").ID)
}

func TestIdentityLinker_FailedLinkLeavesNoAccount(t *testing.T) {
	store := newMemStore()
	failing := &failingLinkTxManager{fakeTxManager: newFakeTxManager(store)}

	linker := NewIdentityLinker(IdentityLinkerParams{TxManager: failing, Logger: newDiscardLogger()})

	_, err := linker.ResolveOrCreate(context.Background(), entity.ProviderTypeGoogle, &service.NormalizedUserInfo{ID: "g", Email: "g@example.com"})
	require.Error(t, err)
	assert.Equal(t, 0, store.accountCount())
	assert.Equal(t, 0, store.identityCount())
}

// failingLinkTxManager makes every identity insert fail with a non-retryable error.
type failingLinkTxManager struct {
	*fakeTxManager
}

func (tm *failingLinkTxManager) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	return tm.fakeTxManager.Execute(ctx, func(factory repository.RepositoryFactory) error {
		return fn(&failingLinkFactory{RepositoryFactory: factory})
	})
}

type failingLinkFactory struct {
	repository.RepositoryFactory
}

func (f *failingLinkFactory) OAuthIdentityRepo() repository.OAuthIdentityRepository {
	return &failingIdentityRepo{OAuthIdentityRepository: f.RepositoryFactory.OAuthIdentityRepo()}
}

type failingIdentityRepo struct {
	repository.OAuthIdentityRepository
}

func (r *failingIdentityRepo) Create(context.Context, *entity.OAuthIdentity) error {
	return errors.New("connection reset")
}
