package mentorbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// tokenVersions is a per-user counter embedded in every issued token.
// Bumping it invalidates all earlier tokens of that user.
type tokenVersions struct {
	redis  redis.UniversalClient
	prefix string
}

func newTokenVersions(client redis.UniversalClient, prefix string) *tokenVersions {
	return &tokenVersions{redis: client, prefix: prefix}
}

func (v *tokenVersions) key(userID string) string {
	return v.prefix + ":" + userID
}

func (v *tokenVersions) Current(ctx context.Context, userID string) (uint64, error) {
	n, err := v.redis.Get(ctx, v.key(userID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n, nil
}

func (v *tokenVersions) Bump(ctx context.Context, userID string) (uint64, error) {
	n, err := v.redis.Incr(ctx, v.key(userID)).Uint64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n, nil
}
