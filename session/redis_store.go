package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the Redis persister cannot reach Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldToken     = "token"
	fieldRole      = "role"
	fieldUpdatedAt = "updated_at"
)

// rotateIfPresentScript replaces the token only while the session hash still exists,
// so a logout by another process is never undone by a late rotation.
const rotateIfPresentScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "token", ARGV[1], "updated_at", ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var rotateIfPresentLua = redis.NewScript(rotateIfPresentScript)

// RedisStore persists the session in a Redis hash keyed by prefix and profile, letting
// several client processes share one login. With a positive ttl the key expires after
// ttl of inactivity; every save and rotation re-arms it.
type RedisStore struct {
	redis   redis.UniversalClient
	prefix  string
	profile string
	ttl     time.Duration
}

// NewRedisStore returns a RedisStore. Empty prefix and profile default to "sc" and
// "default".
func NewRedisStore(client redis.UniversalClient, prefix, profile string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sc"
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:   client,
		prefix:  prefix,
		profile: profile,
		ttl:     ttl,
	}
}

func (r *RedisStore) key() string {
	return r.prefix + ":session:" + r.profile
}

// Load reads the persisted session hash.
func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	fields, err := r.redis.HGetAll(ctx, r.key()).Result()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 || fields[fieldToken] == "" {
		return Session{}, nil
	}

	s := Session{
		Token: fields[fieldToken],
		Role:  fields[fieldRole],
	}
	if raw := fields[fieldUpdatedAt]; raw != "" {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("%w: bad updated_at field", ErrBlobCorrupt)
		}
		if nanos != 0 {
			s.UpdatedAt = time.Unix(0, nanos)
		}
	}
	return s, nil
}

// Save replaces the persisted session hash.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	key := r.key()
	updated := "0"
	if !s.UpdatedAt.IsZero() {
		updated = strconv.FormatInt(s.UpdatedAt.UnixNano(), 10)
	}
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldToken, s.Token,
			fieldRole, s.Role,
			fieldUpdatedAt, updated,
		)
		if r.ttl > 0 {
			pipe.PExpire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes the persisted session hash. Deleting a missing key is not an error.
func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate implements [Rotator].
func (r *RedisStore) Rotate(ctx context.Context, token string, at time.Time) (bool, error) {
	res, err := rotateIfPresentLua.Run(ctx, r.redis, []string{r.key()},
		token,
		strconv.FormatInt(at.UnixNano(), 10),
		strconv.FormatInt(r.ttl.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}
