package odm

import (
	"context"

	"github.com/hatlonely/nosqlx/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

type QueryOption = store.QueryOption

var (
	WithLimit   = store.WithLimit
	WithOffset  = store.WithOffset
	WithOrderBy = store.WithOrderBy
)

// Query 读取一个 schema 对应集合中的文档并还原成记录
type Query struct {
	session    *Session
	schema     *Schema
	collection store.Collection
}

func newQuery(session *Session, schema *Schema) *Query {
	return &Query{
		session:    session,
		schema:     schema,
		collection: session.collection(schema),
	}
}

// All 遍历集合中的全部记录
func (q *Query) All(ctx context.Context, opts ...QueryOption) (*Iterator, error) {
	return q.Find(ctx, nil, opts...)
}

// Find 遍历匹配 filter 的记录
func (q *Query) Find(ctx context.Context, filter bson.M, opts ...QueryOption) (*Iterator, error) {
	cursor, err := q.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "find in %s.%s", q.schema.database, q.schema.collection)
	}
	return &Iterator{ctx: ctx, cursor: cursor, query: q}, nil
}

// FindOne 返回第一个匹配的记录，没有时返回 ErrNotFound
func (q *Query) FindOne(ctx context.Context, filter bson.M) (*Record, error) {
	doc, err := q.collection.FindOne(ctx, filter)
	if err != nil {
		return nil, errors.WithMessagef(err, "find one in %s.%s", q.schema.database, q.schema.collection)
	}
	return q.rehydrate(doc)
}

// Get 按 _id 查找，字符串按十六进制转换成 ObjectID
func (q *Query) Get(ctx context.Context, id any) (*Record, error) {
	oid, err := ObjectIDFrom(id)
	if err != nil {
		return nil, err
	}
	return q.FindOne(ctx, bson.M{FieldID: oid})
}

// Remove 删除所有匹配的文档
func (q *Query) Remove(ctx context.Context, filter bson.M) (*RemoveResult, error) {
	result, err := q.collection.Remove(ctx, filter)
	if err != nil {
		return nil, errors.WithMessagef(err, "remove from %s.%s", q.schema.database, q.schema.collection)
	}
	return result, nil
}

// Count filter 为空时返回集合中的文档总数
func (q *Query) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := q.collection.Count(ctx, filter)
	if err != nil {
		return 0, errors.WithMessagef(err, "count %s.%s", q.schema.database, q.schema.collection)
	}
	return n, nil
}

func (q *Query) rehydrate(doc bson.M) (*Record, error) {
	r, err := NewRecord(q.schema, q.session, doc)
	if err != nil {
		return nil, errors.WithMessagef(err, "rehydrate %s record %v", q.schema.collection, doc[FieldID])
	}
	return r, nil
}
