package store

import (
	"context"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCacheOptions Redis 缓存选项，Endpoint 和 Endpoints 二选一
type RedisCacheOptions struct {
	// host:port 地址
	Endpoint string `cfg:"endpoint"`
	// 集群节点地址
	Endpoints    []string      `cfg:"endpoints"`
	Username     string        `cfg:"username"`
	Password     string        `cfg:"password"`
	DB           int           `cfg:"db"`
	KeyPrefix    string        `cfg:"keyPrefix" def:"nosqlx:"`
	MaxRetries   int           `cfg:"maxRetries" def:"3"`
	DialTimeout  time.Duration `cfg:"dialTimeout" def:"5s"`
	ReadTimeout  time.Duration `cfg:"readTimeout" def:"3s"`
	WriteTimeout time.Duration `cfg:"writeTimeout" def:"3s"`
	PoolSize     int           `cfg:"poolSize" def:"100"`
}

type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisCacheWithOptions(options *RedisCacheOptions) (*RedisCache, error) {
	if options == nil {
		return nil, errors.New("redis options is nil")
	}
	if err := def.SetDefaults(options); err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	if options.Endpoint != "" {
		client = redis.NewClient(&redis.Options{
			Addr:         options.Endpoint,
			Username:     options.Username,
			Password:     options.Password,
			DB:           options.DB,
			MaxRetries:   options.MaxRetries,
			DialTimeout:  options.DialTimeout,
			ReadTimeout:  options.ReadTimeout,
			WriteTimeout: options.WriteTimeout,
			PoolSize:     options.PoolSize,
		})
	} else if len(options.Endpoints) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        options.Endpoints,
			Username:     options.Username,
			Password:     options.Password,
			MaxRetries:   options.MaxRetries,
			DialTimeout:  options.DialTimeout,
			ReadTimeout:  options.ReadTimeout,
			WriteTimeout: options.WriteTimeout,
			PoolSize:     options.PoolSize,
		})
	} else {
		return nil, errors.New("Endpoint or Endpoints must be set")
	}

	return &RedisCache{client: client, keyPrefix: options.KeyPrefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get failed")
	}
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(), "redis set failed")
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return errors.Wrap(c.client.Del(ctx, c.keyPrefix+key).Err(), "redis del failed")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
