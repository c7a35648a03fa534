package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "otp"
	maxWatchRetries    = 4
)

// RedisRegistry stores challenges in Redis so several API instances share
// them. Verification runs as an optimistic WATCH transaction on the key.
type RedisRegistry struct {
	redis  redis.UniversalClient
	prefix string
	opts   Options
}

func NewRedisRegistry(client redis.UniversalClient, prefix string, opts Options) *RedisRegistry {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRegistry{
		redis:  client,
		prefix: prefix,
		opts:   opts.withDefaults(),
	}
}

func (r *RedisRegistry) key(username string) string {
	return r.prefix + ":" + username
}

func (r *RedisRegistry) Issue(ctx context.Context, p Pending) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(newChallenge(p, code, r.opts.Now(), r.opts.TTL))
	if err != nil {
		return "", err
	}
	if err := r.redis.Set(ctx, r.key(p.Username), encoded, r.opts.TTL+expiredGrace).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return code, nil
}

func (r *RedisRegistry) Verify(ctx context.Context, username, code string) (Result, error) {
	key := r.key(username)

	for i := 0; i < maxWatchRetries; i++ {
		var result Result
		err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					result = Result{Outcome: NotFound}
					return nil
				}
				return err
			}

			var c Challenge
			if err := json.Unmarshal(data, &c); err != nil {
				return err
			}

			now := r.opts.Now()
			outcome, updated, remove := evaluate(c, code, now, r.opts.MaxAttempts)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if remove {
					pipe.Del(ctx, key)
					return nil
				}
				encoded, err := json.Marshal(updated)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key, encoded, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			result = Result{Outcome: outcome}
			if outcome == Verified {
				result.Challenge = updated
			}
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		return result, nil
	}

	return Result{}, fmt.Errorf("%w: too much contention on %s", ErrBackend, key)
}
