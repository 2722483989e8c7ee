package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// MemoryBackend 进程内的 Backend，主要用于测试和示例
type MemoryBackend struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	closed  bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: map[string]map[string][]byte{}}
}

// NewMemoryStore 返回基于内存的 KVStore
func NewMemoryStore() *KVStore {
	return NewKVStore(NewMemoryBackend())
}

var errBackendClosed = errors.New("backend is closed")

func (b *MemoryBackend) Get(bucket string, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errBackendClosed
	}
	value, ok := b.buckets[bucket][string(key)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return append([]byte(nil), value...), nil
}

func (b *MemoryBackend) Put(bucket string, key []byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBackendClosed
	}
	m, ok := b.buckets[bucket]
	if !ok {
		m = map[string][]byte{}
		b.buckets[bucket] = m
	}
	m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (b *MemoryBackend) Delete(bucket string, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBackendClosed
	}
	delete(b.buckets[bucket], string(key))
	return nil
}

func (b *MemoryBackend) ForEach(bucket string, fn func(key []byte, value []byte) error) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errBackendClosed
	}
	m := b.buckets[bucket]
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	values := make(map[string][]byte, len(m))
	for _, k := range keys {
		values[k] = m[k]
	}
	b.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), values[k]); err != nil {
			return err
		}
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
