package store

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/hatlonely/nosqlx/cfg/def"
)

// FreeCacheOptions 进程内缓存选项
type FreeCacheOptions struct {
	// 缓存大小，单位字节
	Size int `cfg:"size" def:"33554432"`
}

type FreeCache struct {
	cache *freecache.Cache
}

func NewFreeCacheWithOptions(options *FreeCacheOptions) (*FreeCache, error) {
	if options == nil {
		options = &FreeCacheOptions{}
	}
	if err := def.SetDefaults(options); err != nil {
		return nil, err
	}
	return &FreeCache{cache: freecache.NewCache(options.Size)}, nil
}

func (c *FreeCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.cache.Get([]byte(key))
	if err == freecache.ErrNotFound {
		return nil, ErrCacheMiss
	}
	return value, err
}

// Set freecache 的过期时间精度为秒，不足一秒按一秒计算
func (c *FreeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expire := 0
	if ttl > 0 {
		expire = int((ttl + time.Second - 1) / time.Second)
	}
	return c.cache.Set([]byte(key), value, expire)
}

func (c *FreeCache) Del(ctx context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

func (c *FreeCache) Close() error {
	c.cache.Clear()
	return nil
}
