package store

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/hatlonely/nosqlx/ref"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CacheStoreOptions 按 _id 读缓存的 Store 装饰器选项
type CacheStoreOptions struct {
	Store ref.TypeOptions `cfg:"store"`
	// Cache 为空时使用 FreeCache
	Cache ref.TypeOptions `cfg:"cache"`
	TTL   time.Duration   `cfg:"ttl" def:"5m"`
}

// CacheStore 缓存按 _id 的 FindOne 结果
// 按 _id 的写操作删除对应缓存，其他条件的写操作使整个集合的缓存失效
type CacheStore struct {
	store Store
	cache Cache
	ttl   time.Duration
}

func NewCacheStoreWithOptions(options *CacheStoreOptions) (*CacheStore, error) {
	if options == nil {
		return nil, errors.New("cache store options is nil")
	}
	if err := def.SetDefaults(options); err != nil {
		return nil, err
	}

	s, err := NewStoreWithOptions(&options.Store)
	if err != nil {
		return nil, errors.WithMessage(err, "create underlying store failed")
	}

	var cache Cache
	if options.Cache.Type == "" {
		cache, err = NewFreeCacheWithOptions(nil)
	} else {
		cache, err = newCacheWithOptions(&options.Cache)
	}
	if err != nil {
		_ = s.Close()
		return nil, errors.WithMessage(err, "create cache failed")
	}

	return NewCacheStore(s, cache, options.TTL), nil
}

func newCacheWithOptions(options *ref.TypeOptions) (Cache, error) {
	obj, err := ref.NewWithOptions(options, Namespace)
	if err != nil {
		return nil, err
	}
	cache, ok := obj.(Cache)
	if !ok {
		return nil, errors.Errorf("%T is not a Cache", obj)
	}
	return cache, nil
}

func NewCacheStore(s Store, cache Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{store: s, cache: cache, ttl: ttl}
}

func (s *CacheStore) Collection(database string, collection string) Collection {
	return &cachedCollection{
		Collection: s.store.Collection(database, collection),
		cache:      s.cache,
		prefix:     database + "." + collection,
		ttl:        s.ttl,
	}
}

func (s *CacheStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *CacheStore) Close() error {
	cacheErr := s.cache.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return cacheErr
}

type cachedCollection struct {
	Collection
	cache  Cache
	prefix string
	ttl    time.Duration
}

func (c *cachedCollection) generationKey() string {
	return c.prefix + ":gen"
}

// documentKey 文档缓存 key 带有集合当前的 generation
// generation 不存在时（从未写入或已被缓存淘汰）生成新的 generation，之前的缓存都不再命中
func (c *cachedCollection) documentKey(ctx context.Context, id any) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	key, err := encodeKey(id)
	if err != nil {
		return "", err
	}
	return c.prefix + ":" + gen + ":" + hex.EncodeToString(key), nil
}

func (c *cachedCollection) generation(ctx context.Context) (string, error) {
	value, err := c.cache.Get(ctx, c.generationKey())
	if err == nil {
		return string(value), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return "", err
	}
	return c.bumpGeneration(ctx)
}

func (c *cachedCollection) bumpGeneration(ctx context.Context) (string, error) {
	gen := primitive.NewObjectID().Hex()
	if err := c.cache.Set(ctx, c.generationKey(), []byte(gen), 0); err != nil {
		return "", err
	}
	return gen, nil
}

// invalidate 删除 filter 对应的缓存，filter 不是按 _id 查询时使整个集合失效
func (c *cachedCollection) invalidate(ctx context.Context, filter bson.M) error {
	if id, ok := idOnly(filter); ok {
		return c.invalidateID(ctx, id)
	}
	_, err := c.bumpGeneration(ctx)
	return err
}

func (c *cachedCollection) invalidateID(ctx context.Context, id any) error {
	key, err := c.documentKey(ctx, id)
	if err != nil {
		return err
	}
	return c.cache.Del(ctx, key)
}

func (c *cachedCollection) Insert(ctx context.Context, doc bson.D) (any, error) {
	id, err := c.Collection.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := c.invalidateID(ctx, id); err != nil {
		return id, errors.WithMessage(err, "invalidate cache failed")
	}
	return id, nil
}

func (c *cachedCollection) Save(ctx context.Context, doc bson.D) (any, error) {
	id, err := c.Collection.Save(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := c.invalidateID(ctx, id); err != nil {
		return id, errors.WithMessage(err, "invalidate cache failed")
	}
	return id, nil
}

func (c *cachedCollection) Update(ctx context.Context, filter bson.M, update bson.M, multi bool) (*UpdateResult, error) {
	result, err := c.Collection.Update(ctx, filter, update, multi)
	if invalidateErr := c.invalidate(ctx, filter); invalidateErr != nil && err == nil {
		return result, errors.WithMessage(invalidateErr, "invalidate cache failed")
	}
	return result, err
}

func (c *cachedCollection) Remove(ctx context.Context, filter bson.M) (*RemoveResult, error) {
	result, err := c.Collection.Remove(ctx, filter)
	if invalidateErr := c.invalidate(ctx, filter); invalidateErr != nil && err == nil {
		return result, errors.WithMessage(invalidateErr, "invalidate cache failed")
	}
	return result, err
}

func (c *cachedCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	id, ok := idOnly(filter)
	if !ok {
		return c.Collection.FindOne(ctx, filter)
	}

	key, err := c.documentKey(ctx, id)
	if err != nil {
		return c.Collection.FindOne(ctx, filter)
	}
	if data, err := c.cache.Get(ctx, key); err == nil {
		var doc bson.M
		if err := bson.Unmarshal(data, &doc); err == nil {
			return doc, nil
		}
	}

	doc, err := c.Collection.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if data, err := bson.Marshal(doc); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return doc, nil
}
