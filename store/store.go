package store

import (
	"context"

	"github.com/hatlonely/nosqlx/ref"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Namespace store 在 ref 中的命名空间
const Namespace = "github.com/hatlonely/nosqlx/store"

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidCondition = errors.New("invalid condition")
)

func init() {
	ref.MustRegister(Namespace, "MongoStore", NewMongoStoreWithOptions)
	ref.MustRegister(Namespace, "MemoryStore", NewMemoryStore)
	ref.MustRegister(Namespace, "BoltStore", NewBoltStoreWithOptions)
	ref.MustRegister(Namespace, "LevelDBStore", NewLevelDBStoreWithOptions)
	ref.MustRegister(Namespace, "PebbleStore", NewPebbleStoreWithOptions)
	ref.MustRegister(Namespace, "CacheStore", NewCacheStoreWithOptions)
	ref.MustRegister(Namespace, "ObservableStore", NewObservableStoreWithOptions)
	ref.MustRegister(Namespace, "RedisCache", NewRedisCacheWithOptions)
	ref.MustRegister(Namespace, "FreeCache", NewFreeCacheWithOptions)
}

// Store 文档数据库客户端，按 database/collection 划分集合
type Store interface {
	Collection(database string, collection string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// Collection 集合上的文档操作，filter 为 nil 时匹配全部文档
type Collection interface {
	// Insert 插入文档，文档没有 _id 时自动生成 ObjectID，返回 _id
	Insert(ctx context.Context, doc bson.D) (any, error)
	// Save 按 _id 覆盖写入，没有 _id 时等同 Insert，返回 _id
	Save(ctx context.Context, doc bson.D) (any, error)
	// Update 更新匹配的文档，multi 为 false 时只更新第一个
	Update(ctx context.Context, filter bson.M, update bson.M, multi bool) (*UpdateResult, error)
	// Remove 删除所有匹配的文档
	Remove(ctx context.Context, filter bson.M) (*RemoveResult, error)
	Find(ctx context.Context, filter bson.M, opts ...QueryOption) (Cursor, error)
	// FindOne 返回第一个匹配的文档，没有时返回 ErrRecordNotFound
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// Cursor 单次遍历的结果游标，*mongo.Cursor 满足该接口
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    any
}

type RemoveResult struct {
	DeletedCount int64
}

// QueryOptions 查询选项
type QueryOptions struct {
	Limit     int64
	Offset    int64
	OrderBy   string
	OrderDesc bool
}

type QueryOption func(*QueryOptions)

func WithLimit(limit int64) QueryOption {
	return func(o *QueryOptions) {
		o.Limit = limit
	}
}

func WithOffset(offset int64) QueryOption {
	return func(o *QueryOptions) {
		o.Offset = offset
	}
}

func WithOrderBy(field string, desc bool) QueryOption {
	return func(o *QueryOptions) {
		o.OrderBy = field
		o.OrderDesc = desc
	}
}

func applyQueryOptions(opts []QueryOption) *QueryOptions {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// NewStoreWithOptions 通过 ref 创建 Store，未指定命名空间时使用 Namespace
func NewStoreWithOptions(options *ref.TypeOptions) (Store, error) {
	obj, err := ref.NewWithOptions(options, Namespace)
	if err != nil {
		return nil, errors.WithMessage(err, "create store failed")
	}
	s, ok := obj.(Store)
	if !ok {
		return nil, errors.Errorf("%T is not a Store", obj)
	}
	return s, nil
}

// IDOf 返回文档的 _id，不存在时返回 nil
func IDOf(doc bson.D) any {
	for _, e := range doc {
		if e.Key == "_id" {
			return e.Value
		}
	}
	return nil
}

// withID 返回带 _id 的文档副本，_id 缺失时生成 ObjectID 并放在最前面
func withID(doc bson.D) (bson.D, any) {
	if id := IDOf(doc); id != nil {
		return doc, id
	}
	id := primitive.NewObjectID()
	result := make(bson.D, 0, len(doc)+1)
	result = append(result, bson.E{Key: "_id", Value: id})
	for _, e := range doc {
		if e.Key != "_id" {
			result = append(result, e)
		}
	}
	return result, id
}
