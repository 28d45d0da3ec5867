package cache

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errVersionChanged = stderrors.New("cache: version changed")

// versionKey shares the hash slot of key so both can be used in one transaction on a cluster.
func versionKey(key string) string {
	return "{" + key + "}:version"
}

// Version returns the current version of key. A key that was never invalidated is at version 0.
// Read it before loading from the store and pass it to SetIfVersion.
func Version(ctx context.Context, rc redis.UniversalClient, key string) (int64, error) {
	v, err := rc.Get(ctx, versionKey(key)).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Invalidate deletes key and bumps its version, so reads that loaded before the invalidation
// can no longer store what they loaded.
func Invalidate(ctx context.Context, rc redis.UniversalClient, key string) error {
	_, err := rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionKey(key))
		p.Del(ctx, key)
		return nil
	})
	return err
}

// SetIfVersion stores value under key unless key was invalidated after version was read. It
// reports whether the value was stored.
func SetIfVersion(ctx context.Context, rc redis.UniversalClient, key string, version int64, value []byte, ttl time.Duration) (bool, error) {
	vk := versionKey(key)

	err := rc.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Int64()
		if err != nil && !stderrors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errVersionChanged
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, value, ttl)
			return nil
		})
		return err
	}, vk)

	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, errVersionChanged), stderrors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}
