package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/slatekit/slateauth"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultTTL is used when NewStore receives a non-positive ttl.
const DefaultTTL = 24 * time.Hour

const minSlidingTTL = time.Second

// Store is a Redis-backed session store with optional sliding expiry and
// an absolute lifetime cap.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	ttl         time.Duration
	sliding     bool
	absolute    time.Duration
	jitterRange time.Duration
}

// Option customises a [Store].
type Option func(*Store)

// WithJitter adds a random duration in [0, d) to sliding renewals so that
// sessions created together do not expire together.
func WithJitter(d time.Duration) Option {
	return func(s *Store) {
		s.jitterRange = d
	}
}

// WithAbsoluteLifetime caps a session's total life regardless of sliding
// renewals. Zero means no cap.
func WithAbsoluteLifetime(d time.Duration) Option {
	return func(s *Store) {
		s.absolute = d
	}
}

// NewStore creates a session store. prefix namespaces every key; ttl is the
// idle lifetime; with sliding set, each Read renews it.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration, sliding bool, opts ...Option) *Store {
	if prefix == "" {
		prefix = "slateauth:sess"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		redis:   client,
		prefix:  prefix,
		ttl:     ttl,
		sliding: sliding,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Slot returns the slot for session id. It performs no I/O.
func (s *Store) Slot(id string) *Slot {
	return &Slot{store: s, id: id}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(username string) string {
	return s.prefix + ":u:" + username
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func (s *Store) load(ctx context.Context, sessionID string) (*record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	rec, err := decode(data)
	if err != nil {
		// Unreadable records are treated as absent and removed.
		_ = s.redis.Del(ctx, s.key(sessionID)).Err()
		return nil, nil
	}
	return rec, nil
}

func (s *Store) read(ctx context.Context, sessionID string) (*slateauth.Profile, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil || rec == nil {
		return nil, err
	}

	now := time.Now()
	if rec.ExpiresAt > 0 && !now.Before(time.Unix(rec.ExpiresAt, 0)) {
		if err := s.destroy(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if s.sliding {
		next, err := s.nextSlidingTTL(rec, now)
		if err != nil {
			return nil, err
		}
		if err := s.redis.Expire(ctx, s.key(sessionID), next).Err(); err != nil {
			return nil, unavailable(err)
		}
	}

	profile := rec.Profile
	return &profile, nil
}

func (s *Store) write(ctx context.Context, sessionID string, profile slateauth.Profile) error {
	prev, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	rec := &record{Profile: profile, CreatedAt: now.Unix()}
	ttl := s.ttl
	if prev != nil && prev.Profile.Username == profile.Username {
		rec.CreatedAt = prev.CreatedAt
		rec.ExpiresAt = prev.ExpiresAt
	} else if s.absolute > 0 {
		rec.ExpiresAt = now.Add(s.absolute).Unix()
	}
	if rec.ExpiresAt > 0 {
		if remaining := time.Unix(rec.ExpiresAt, 0).Sub(now); remaining < ttl {
			ttl = max(remaining, minSlidingTTL)
		}
	}

	data, err := encode(rec)
	if err != nil {
		return err
	}

	userKey := s.userKey(profile.Username)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil && prev.Profile.Username != profile.Username {
			pipe.SRem(ctx, s.userKey(prev.Profile.Username), sessionID)
		}
		pipe.Set(ctx, s.key(sessionID), data, ttl)
		pipe.SAdd(ctx, userKey, sessionID)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// destroy removes the session and its index entry. Destroying a missing
// session is a no-op.
func (s *Store) destroy(ctx context.Context, sessionID string) error {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(rec.Profile.Username), sessionID)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Count reports the live sessions indexed for username.
func (s *Store) Count(ctx context.Context, username string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(username)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	n, err := s.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// DeleteAllForUser drops every session of username and reports how many
// existed. Hosts call it after removing an account.
//
// The index is read before the delete, so a session written between the
// two survives until its TTL or the next call.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	userKey := s.userKey(username)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	dels := make([]*redis.IntCmd, 0, len(ids))
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			dels = append(dels, pipe.Del(ctx, s.key(id)))
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}

	deleted := 0
	for _, cmd := range dels {
		deleted += int(cmd.Val())
	}
	return deleted, nil
}

func (s *Store) nextSlidingTTL(rec *record, now time.Time) (time.Duration, error) {
	next := s.ttl
	if s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		next += jitter
	}
	if rec.ExpiresAt > 0 {
		remaining := time.Unix(rec.ExpiresAt, 0).Sub(now)
		if next > remaining {
			next = remaining
		}
	}
	if next < minSlidingTTL {
		next = minSlidingTTL
	}
	return next, nil
}

func randomJitter(limit time.Duration) (time.Duration, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0, err
	}
	return time.Duration(n.Int64()), nil
}
