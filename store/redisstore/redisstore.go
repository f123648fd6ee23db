// Package redisstore implements store.Backend on Redis: one hash per
// namespace plus a set registering the namespace names.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/slatekit/slateauth/store"
)

// DefaultPrefix is used when New receives an empty prefix.
const DefaultPrefix = "slateauth"

// Backend is a [store.Backend] over a go-redis client. The client is owned
// by the caller; Close does not close it.
type Backend struct {
	redis  redis.UniversalClient
	prefix string
}

var _ store.Backend = (*Backend)(nil)

// New returns a backend storing keys under prefix.
func New(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{redis: client, prefix: prefix}
}

func (b *Backend) nsKey(namespace string) string {
	return b.prefix + ":ns:" + namespace
}

func (b *Backend) registryKey() string {
	return b.prefix + ":namespaces"
}

// unavailable tags transport failures so the store degrades on them.
// Replies from the server, such as WRONGTYPE, pass through unchanged.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	var reply redis.Error
	if errors.As(err, &reply) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// Connect pings the server. Redis creates structures on write, so create
// has no effect.
func (b *Backend) Connect(ctx context.Context, create bool) error {
	return unavailable(b.redis.Ping(ctx).Err())
}

func (b *Backend) EnsureNamespace(ctx context.Context, namespace string) error {
	return unavailable(b.redis.SAdd(ctx, b.registryKey(), namespace).Err())
}

func (b *Backend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	v, err := b.redis.HGet(ctx, b.nsKey(namespace), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, namespace, key string, value []byte) error {
	return unavailable(b.redis.HSet(ctx, b.nsKey(namespace), key, value).Err())
}

func (b *Backend) SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	ok, err := b.redis.HSetNX(ctx, b.nsKey(namespace), key, value).Result()
	return ok, unavailable(err)
}

func (b *Backend) Delete(ctx context.Context, namespace, key string) error {
	return unavailable(b.redis.HDel(ctx, b.nsKey(namespace), key).Err())
}

func (b *Backend) Has(ctx context.Context, namespace, key string) (bool, error) {
	ok, err := b.redis.HExists(ctx, b.nsKey(namespace), key).Result()
	return ok, unavailable(err)
}

func (b *Backend) Keys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := b.redis.HKeys(ctx, b.nsKey(namespace)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear drops the namespace hash and its registry entry in one transaction.
func (b *Backend) Clear(ctx context.Context, namespace string) error {
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.nsKey(namespace))
		pipe.SRem(ctx, b.registryKey(), namespace)
		return nil
	})
	return unavailable(err)
}

// Namespaces lists the registered namespace names.
func (b *Backend) Namespaces(ctx context.Context) ([]string, error) {
	names, err := b.redis.SMembers(ctx, b.registryKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) Close(ctx context.Context) error {
	return nil
}
