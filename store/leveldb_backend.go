package store

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStoreOptions LevelDB 存储选项，集合通过 key 前缀区分
type LevelDBStoreOptions struct {
	Path string `cfg:"path" validate:"required"`
}

type LevelDBBackend struct {
	db *leveldb.DB
}

func NewLevelDBBackendWithOptions(options *LevelDBStoreOptions) (*LevelDBBackend, error) {
	if options == nil || options.Path == "" {
		return nil, errors.New("leveldb path is required")
	}
	db, err := leveldb.OpenFile(options.Path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "leveldb.OpenFile failed")
	}
	return &LevelDBBackend{db: db}, nil
}

// NewLevelDBStoreWithOptions 返回基于 LevelDB 的 KVStore
func NewLevelDBStoreWithOptions(options *LevelDBStoreOptions) (*KVStore, error) {
	backend, err := NewLevelDBBackendWithOptions(options)
	if err != nil {
		return nil, err
	}
	return NewKVStore(backend), nil
}

// bucketPrefix 集合名和 key 之间用 0 字节分隔
func bucketPrefix(bucket string) []byte {
	return append([]byte(bucket), 0)
}

func bucketKey(bucket string, key []byte) []byte {
	return append(bucketPrefix(bucket), key...)
}

func (b *LevelDBBackend) Get(bucket string, key []byte) ([]byte, error) {
	value, err := b.db.Get(bucketKey(bucket, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "leveldb get failed")
	}
	return value, nil
}

func (b *LevelDBBackend) Put(bucket string, key []byte, value []byte) error {
	return errors.Wrap(b.db.Put(bucketKey(bucket, key), value, nil), "leveldb put failed")
}

func (b *LevelDBBackend) Delete(bucket string, key []byte) error {
	return errors.Wrap(b.db.Delete(bucketKey(bucket, key), nil), "leveldb delete failed")
}

func (b *LevelDBBackend) ForEach(bucket string, fn func(key []byte, value []byte) error) error {
	prefix := bucketPrefix(bucket)
	iter := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := append([]byte(nil), iter.Key()[len(prefix):]...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "leveldb iterate failed")
}

func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}
