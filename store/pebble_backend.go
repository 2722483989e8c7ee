package store

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// PebbleStoreOptions Pebble 存储选项，集合通过 key 前缀区分
type PebbleStoreOptions struct {
	Path   string `cfg:"path" validate:"required"`
	NoSync bool   `cfg:"noSync"`
}

type PebbleBackend struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

func NewPebbleBackendWithOptions(options *PebbleStoreOptions) (*PebbleBackend, error) {
	if options == nil || options.Path == "" {
		return nil, errors.New("pebble path is required")
	}
	db, err := pebble.Open(options.Path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "pebble.Open failed")
	}

	writeOpts := pebble.Sync
	if options.NoSync {
		writeOpts = pebble.NoSync
	}
	return &PebbleBackend{db: db, writeOpts: writeOpts}, nil
}

// NewPebbleStoreWithOptions 返回基于 Pebble 的 KVStore
func NewPebbleStoreWithOptions(options *PebbleStoreOptions) (*KVStore, error) {
	backend, err := NewPebbleBackendWithOptions(options)
	if err != nil {
		return nil, err
	}
	return NewKVStore(backend), nil
}

func (b *PebbleBackend) Get(bucket string, key []byte) ([]byte, error) {
	value, closer, err := b.db.Get(bucketKey(bucket, key))
	if err == pebble.ErrNotFound {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "pebble get failed")
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func (b *PebbleBackend) Put(bucket string, key []byte, value []byte) error {
	return errors.Wrap(b.db.Set(bucketKey(bucket, key), value, b.writeOpts), "pebble set failed")
}

func (b *PebbleBackend) Delete(bucket string, key []byte) error {
	return errors.Wrap(b.db.Delete(bucketKey(bucket, key), b.writeOpts), "pebble delete failed")
}

func (b *PebbleBackend) ForEach(bucket string, fn func(key []byte, value []byte) error) error {
	prefix := bucketPrefix(bucket)
	upper := append([]byte(bucket), 1)

	iter, err := b.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return errors.Wrap(err, "pebble new iterator failed")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()[len(prefix):]...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "pebble iterate failed")
}

func (b *PebbleBackend) Close() error {
	return b.db.Close()
}
