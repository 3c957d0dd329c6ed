package impl

import (
	"context"
	"testing"

	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccountService(store *memStore) usecase.AccountUsecase {
	return NewAccountService(AccountServiceParams{
		AccountRepo: newDirectAccountRepo(store),
		Logger:      newDiscardLogger(),
	})
}

func TestAccountService_GetAccount(t *testing.T) {
	store := newMemStore()
	seeded := store.addAccount(&entity.Account{Username: "alice", Nickname: "Alice", Role: entity.RoleUser})
	svc := newTestAccountService(store)

	account, err := svc.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, account.ID)

	_, err = svc.GetAccount(context.Background(), "nobody")
	assert.True(t, errors.Is(err, domainerrors.ErrAccountNotFound))
}

func TestAccountService_UpdateProfile(t *testing.T) {
	tests := []struct {
		name         string
		input        usecase.UpdateProfileInput
		wantNickname string
		wantImage    *string
	}{
		{
			name:         "replace both",
			input:        usecase.UpdateProfileInput{Nickname: "Ally", ProfileImageURL: strPtr("https://img/new.png")},
			wantNickname: "Ally",
			wantImage:    strPtr("https://img/new.png"),
		},
		{
			name:         "blank nickname keeps the current one",
			input:        usecase.UpdateProfileInput{Nickname: "  "},
			wantNickname: "Alice",
			wantImage:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.addAccount(&entity.Account{
				Username:        "alice",
				Nickname:        "Alice",
				ProfileImageURL: strPtr("https://img/old.png"),
				Role:            entity.RoleUser,
			})
			svc := newTestAccountService(store)

			updated, err := svc.UpdateProfile(context.Background(), "alice", &tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNickname, updated.Nickname)
			assert.Equal(t, tt.wantImage, updated.ProfileImageURL)

			stored := store.findAccountByUsername("alice")
			assert.Equal(t, tt.wantNickname, stored.Nickname)
			assert.Equal(t, tt.wantImage, stored.ProfileImageURL)
		})
	}
}

func TestAccountService_UpdateProfile_UnknownAccount(t *testing.T) {
	svc := newTestAccountService(newMemStore())

	_, err := svc.UpdateProfile(context.Background(), "ghost", &usecase.UpdateProfileInput{Nickname: "x"})
	assert.True(t, errors.Is(err, domainerrors.ErrAccountNotFound))
}
