package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Backend 有序的 KV 存储，bucket 对应一个集合
type Backend interface {
	// Get 返回 key 对应的值，不存在时返回 ErrRecordNotFound
	Get(bucket string, key []byte) ([]byte, error)
	Put(bucket string, key []byte, value []byte) error
	Delete(bucket string, key []byte) error
	// ForEach 按 key 的字节序遍历 bucket，fn 返回错误时停止
	ForEach(bucket string, fn func(key []byte, value []byte) error) error
	Close() error
}

// KVStore 把文档以 BSON 编码保存在 Backend 中，在本地执行过滤和更新
// 写操作串行执行，保证单个文档更新的原子性
type KVStore struct {
	backend Backend
	mu      sync.RWMutex
}

func NewKVStore(backend Backend) *KVStore {
	return &KVStore{backend: backend}
}

func (s *KVStore) Collection(database string, collection string) Collection {
	return &kvCollection{store: s, bucket: database + "." + collection}
}

func (s *KVStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

type kvCollection struct {
	store  *KVStore
	bucket string
}

// encodeKey 把 _id 编码成有序的 key，数值相等的 _id 得到相同的 key
// 整数和整数值的浮点数按 int64 编码，其他浮点数按 float64 编码
func encodeKey(id any) ([]byte, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return append([]byte{'o'}, v[:]...), nil
	case string:
		return append([]byte{'s'}, v...), nil
	case float32, float64, primitive.Decimal128:
		f, ok := toFloat(v)
		if !ok {
			break
		}
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return intKey(int64(f)), nil
		}
		key := make([]byte, 9)
		key[0] = 'f'
		binary.BigEndian.PutUint64(key[1:], math.Float64bits(f))
		return key, nil
	}
	if n, ok := toInt(id); ok {
		return intKey(n), nil
	}
	data, err := bson.Marshal(bson.D{{Key: "v", Value: id}})
	if err != nil {
		return nil, errors.Wrapf(err, "encode _id %v failed", id)
	}
	return append([]byte{'b'}, data...), nil
}

func intKey(n int64) []byte {
	key := make([]byte, 9)
	key[0] = 'i'
	binary.BigEndian.PutUint64(key[1:], uint64(n)^(1<<63))
	return key
}

// idOnly 返回只按 _id 等值查询时的 _id
func idOnly(filter bson.M) (any, bool) {
	if len(filter) != 1 {
		return nil, false
	}
	id, ok := filter["_id"]
	if !ok || id == nil {
		return nil, false
	}
	if _, isOp := isOperatorDoc(id); isOp {
		return nil, false
	}
	switch rank(id) {
	case rankDocument, rankArray:
		return nil, false
	}
	return id, true
}

type kvEntry struct {
	key []byte
	raw []byte
	doc bson.D
}

// scan 返回所有匹配 filter 的文档，limit 大于 0 时最多返回 limit 个
func (c *kvCollection) scan(filter bson.M, limit int) ([]kvEntry, error) {
	if id, ok := idOnly(filter); ok {
		key, err := encodeKey(id)
		if err != nil {
			return nil, err
		}
		raw, err := c.store.backend.Get(c.bucket, key)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var doc bson.D
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(err, "decode document failed")
		}
		return []kvEntry{{key: key, raw: raw, doc: doc}}, nil
	}

	var entries []kvEntry
	errStop := errors.New("stop")
	err := c.store.backend.ForEach(c.bucket, func(key []byte, raw []byte) error {
		var doc bson.D
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return errors.Wrap(err, "decode document failed")
		}
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		entries = append(entries, kvEntry{
			key: append([]byte(nil), key...),
			raw: append([]byte(nil), raw...),
			doc: doc,
		})
		if limit > 0 && len(entries) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && err != errStop {
		return nil, err
	}
	return entries, nil
}

func (c *kvCollection) Insert(ctx context.Context, doc bson.D) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, id := withID(doc)
	key, err := encodeKey(id)
	if err != nil {
		return nil, err
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encode document failed")
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, err := c.store.backend.Get(c.bucket, key); err == nil {
		return nil, errors.Wrapf(ErrDuplicateKey, "insert %v", id)
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	if err := c.store.backend.Put(c.bucket, key, data); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *kvCollection) Save(ctx context.Context, doc bson.D) (any, error) {
	id := IDOf(doc)
	if id == nil {
		return c.Insert(ctx, doc)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := encodeKey(id)
	if err != nil {
		return nil, err
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encode document failed")
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.backend.Put(c.bucket, key, data); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *kvCollection) Update(ctx context.Context, filter bson.M, update bson.M, multi bool) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter, err := normalize(filter)
	if err != nil {
		return nil, err
	}
	update, err = normalize(update)
	if err != nil {
		return nil, err
	}
	if !hasOperator(update) && multi {
		return nil, errors.Wrap(ErrInvalidCondition, "replacement document cannot update multiple documents")
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	limit := 0
	if !multi {
		limit = 1
	}
	entries, err := c.scan(filter, limit)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	for _, entry := range entries {
		result.MatchedCount++
		doc, err := applyUpdate(entry.doc, update)
		if err != nil {
			return result, err
		}
		data, err := bson.Marshal(doc)
		if err != nil {
			return result, errors.Wrap(err, "encode document failed")
		}
		if bytes.Equal(data, entry.raw) {
			continue
		}
		if err := c.store.backend.Put(c.bucket, entry.key, data); err != nil {
			return result, err
		}
		result.ModifiedCount++
	}
	return result, nil
}

func (c *kvCollection) Remove(ctx context.Context, filter bson.M) (*RemoveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	entries, err := c.scan(filter, 0)
	if err != nil {
		return nil, err
	}
	result := &RemoveResult{}
	for _, entry := range entries {
		if err := c.store.backend.Delete(c.bucket, entry.key); err != nil {
			return result, err
		}
		result.DeletedCount++
	}
	return result, nil
}

func (c *kvCollection) Find(ctx context.Context, filter bson.M, opts ...QueryOption) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryOpts := applyQueryOptions(opts)
	filter, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	limit := 0
	if queryOpts.OrderBy == "" && queryOpts.Limit > 0 {
		limit = int(queryOpts.Offset + queryOpts.Limit)
	}

	c.store.mu.RLock()
	entries, err := c.scan(filter, limit)
	c.store.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if queryOpts.OrderBy != "" {
		path := strings.Split(queryOpts.OrderBy, ".")
		sort.SliceStable(entries, func(i, j int) bool {
			cmp := compareValues(sortKey(entries[i].doc, path), sortKey(entries[j].doc, path))
			if queryOpts.OrderDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if queryOpts.Offset > 0 {
		if queryOpts.Offset >= int64(len(entries)) {
			entries = nil
		} else {
			entries = entries[queryOpts.Offset:]
		}
	}
	if queryOpts.Limit > 0 && queryOpts.Limit < int64(len(entries)) {
		entries = entries[:queryOpts.Limit]
	}

	docs := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, entry.raw)
	}
	return &sliceCursor{docs: docs}, nil
}

func sortKey(doc bson.D, path []string) any {
	if values := lookupExact(doc, path); len(values) > 0 {
		return values[0]
	}
	return nil
}

func (c *kvCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	entries, err := c.scan(filter, 1)
	c.store.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrRecordNotFound
	}

	var result bson.M
	if err := bson.Unmarshal(entries[0].raw, &result); err != nil {
		return nil, errors.Wrap(err, "decode document failed")
	}
	return result, nil
}

func (c *kvCollection) Count(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	filter, err := normalize(filter)
	if err != nil {
		return 0, err
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	entries, err := c.scan(filter, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// sliceCursor 遍历已经取出的 BSON 文档
type sliceCursor struct {
	docs    [][]byte
	pos     int
	current []byte
	err     error
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos >= len(c.docs) {
		c.current = nil
		return false
	}
	c.current = c.docs[c.pos]
	c.pos++
	return true
}

func (c *sliceCursor) Decode(val any) error {
	if c.current == nil {
		return errors.New("cursor has no current document")
	}
	return bson.Unmarshal(c.current, val)
}

func (c *sliceCursor) Err() error {
	return c.err
}

func (c *sliceCursor) Close(ctx context.Context) error {
	c.docs = nil
	c.current = nil
	return nil
}
