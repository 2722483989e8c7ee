package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltStoreOptions BoltDB 存储选项，每个集合对应一个 bucket
type BoltStoreOptions struct {
	Path     string        `cfg:"path" validate:"required"`
	Timeout  time.Duration `cfg:"timeout" def:"1s"`
	ReadOnly bool          `cfg:"readOnly"`
}

type BoltBackend struct {
	db *bolt.DB
}

func NewBoltBackendWithOptions(options *BoltStoreOptions) (*BoltBackend, error) {
	if options == nil || options.Path == "" {
		return nil, errors.New("bolt path is required")
	}
	if err := def.SetDefaults(options); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(options.Path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s failed", options.Path)
	}

	db, err := bolt.Open(options.Path, 0600, &bolt.Options{
		Timeout:  options.Timeout,
		ReadOnly: options.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bolt.Open failed")
	}
	return &BoltBackend{db: db}, nil
}

// NewBoltStoreWithOptions 返回基于 BoltDB 的 KVStore
func NewBoltStoreWithOptions(options *BoltStoreOptions) (*KVStore, error) {
	backend, err := NewBoltBackendWithOptions(options)
	if err != nil {
		return nil, err
	}
	return NewKVStore(backend), nil
}

func (b *BoltBackend) Get(bucket string, key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return ErrRecordNotFound
		}
		v := bkt.Get(key)
		if v == nil {
			return ErrRecordNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

func (b *BoltBackend) Put(bucket string, key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return errors.Wrapf(err, "create bucket %s failed", bucket)
		}
		return bkt.Put(key, value)
	})
}

func (b *BoltBackend) Delete(bucket string, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		return bkt.Delete(key)
	})
}

func (b *BoltBackend) ForEach(bucket string, fn func(key []byte, value []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			return fn(append([]byte(nil), k...), append([]byte(nil), v...))
		})
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
