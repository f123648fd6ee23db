// Package mongostore implements store.Backend on MongoDB: one collection
// per namespace holding {_id: key, value: <json>} documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/slatekit/slateauth/store"
)

// DefaultCollectionPrefix is prepended to namespace names when New
// receives an empty prefix.
const DefaultCollectionPrefix = "kv_"

// codeNamespaceExists is returned by createCollection for an existing collection.
const codeNamespaceExists = 48

// Backend is a [store.Backend] over a mongo database. The client is owned
// by the caller.
type Backend struct {
	db     *mongo.Database
	prefix string
}

var _ store.Backend = (*Backend)(nil)

type entry struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// New returns a backend using db. Collections are named prefix+namespace.
func New(db *mongo.Database, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}
	return &Backend{db: db, prefix: prefix}
}

func (b *Backend) coll(namespace string) *mongo.Collection {
	return b.db.Collection(b.prefix + namespace)
}

// unavailable tags network failures so the store degrades on them.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func (b *Backend) Connect(ctx context.Context, create bool) error {
	if err := b.db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (b *Backend) EnsureNamespace(ctx context.Context, namespace string) error {
	err := b.db.CreateCollection(ctx, b.prefix+namespace)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists {
		return nil
	}
	return unavailable(err)
}

func (b *Backend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var e entry
	err := b.coll(namespace).FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}
	return []byte(e.Value), true, nil
}

func (b *Backend) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := b.coll(namespace).ReplaceOne(ctx,
		bson.M{"_id": key},
		entry{Key: key, Value: string(value)},
		options.Replace().SetUpsert(true),
	)
	return unavailable(err)
}

func (b *Backend) SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	_, err := b.coll(namespace).InsertOne(ctx, entry{Key: key, Value: string(value)})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(err)
	}
	return true, nil
}

func (b *Backend) Delete(ctx context.Context, namespace, key string) error {
	_, err := b.coll(namespace).DeleteOne(ctx, bson.M{"_id": key})
	return unavailable(err)
}

func (b *Backend) Has(ctx context.Context, namespace, key string) (bool, error) {
	n, err := b.coll(namespace).CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (b *Backend) Keys(ctx context.Context, namespace string) ([]string, error) {
	cur, err := b.coll(namespace).Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, unavailable(err)
	}
	var docs []entry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable(err)
	}
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear drops the namespace collection.
func (b *Backend) Clear(ctx context.Context, namespace string) error {
	return unavailable(b.coll(namespace).Drop(ctx))
}

func (b *Backend) Close(ctx context.Context) error {
	return nil
}
