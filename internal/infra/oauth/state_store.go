package oauth

import (
	"context"
	"time"

	"jwtauth/internal/domain/entity"
	"jwtauth/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth:state:"

var errStateCollision = errors.New("oauth state already issued")

type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore keeps authorization states in redis with a TTL.
// A state can be consumed once.
func NewRedisStateStore(client *redis.Client) service.OAuthStateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) Save(ctx context.Context, state string, provider entity.ProviderType, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, stateKeyPrefix+state, provider.String(), ttl).Result()
	if err != nil {
		return errors.Wrap(err, "failed to save oauth state")
	}
	if !ok {
		return errStateCollision
	}

	return nil
}

func (s *redisStateStore) Consume(ctx context.Context, state string, provider entity.ProviderType) (bool, error) {
	if state == "" {
		return false, nil
	}

	stored, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to consume oauth state")
	}

	return stored == provider.String(), nil
}
