package auth

import (
	"context"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/redis/go-redis/v9"
	"github.com/siahsang/blogplatform/internal/utils/collectionutils"
)

// Blacklist records revoked token ids until the token would have expired
// anyway. Revoke is a claim: it fails with ErrTokenRevoked when the id is
// already on the list, so a token can be spent only once.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type MemoryBlacklist struct {
	revoked *collectionutils.SafeMap[string, time.Time]
	now     func() time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		revoked: collectionutils.New[string, time.Time](),
		now:     time.Now,
	}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, until time.Time) error {
	now := b.now()
	claimed := b.revoked.StoreIf(jti, until, func(current time.Time, exists bool) bool {
		return !exists || !now.Before(current)
	})
	if !claimed {
		return xerrors.New(ErrTokenRevoked)
	}
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	until, ok := b.revoked.Get(jti)
	if !ok {
		return false, nil
	}
	if !b.now().Before(until) {
		b.revoked.Delete(jti)
		return false, nil
	}
	return true, nil
}

// Purge drops entries whose tokens have expired.
func (b *MemoryBlacklist) Purge() int {
	now := b.now()
	return b.revoked.DeleteIf(func(_ string, until time.Time) bool {
		return !now.Before(until)
	})
}

type RedisBlacklist struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBlacklist(rdb *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb, prefix: "token:revoked:"}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	claimed, err := b.rdb.SetNX(ctx, b.prefix+jti, 1, ttl).Result()
	if err != nil {
		return xerrors.Newf("blacklist: revoke %s: %w", jti, err)
	}
	if !claimed {
		return xerrors.New(ErrTokenRevoked)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.prefix+jti).Result()
	if err != nil {
		return false, xerrors.Newf("blacklist: lookup %s: %w", jti, err)
	}
	return n > 0, nil
}
