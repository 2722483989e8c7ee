package odm

import (
	"context"
	"strings"
	"time"

	"github.com/hatlonely/nosqlx/log"
	"github.com/hatlonely/nosqlx/log/logger"
	"github.com/hatlonely/nosqlx/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

type (
	UpdateResult = store.UpdateResult
	RemoveResult = store.RemoveResult
)

// Session 在连接上执行记录的增删改，写入时维护 time_created 和 time_updated
type Session struct {
	conn   *Connection
	logger logger.Logger
	now    func() time.Time
}

type SessionOption func(*Session)

func WithLogger(l logger.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithClock 替换生成时间戳的时钟
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(conn *Connection, opts ...SessionOption) *Session {
	s := &Session{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default().WithGroup("odm")
	}
	return s
}

func (s *Session) Connection() *Connection {
	return s.conn
}

// New 构造绑定到该 Session 的记录
func (s *Session) New(schema *Schema, data map[string]any) (*Record, error) {
	return NewRecord(schema, s, data)
}

func (s *Session) Query(schema *Schema) *Query {
	return newQuery(s, schema)
}

func (s *Session) collection(schema *Schema) store.Collection {
	return s.conn.Collection(schema.database, schema.collection)
}

// timestamp 存储中时间精度为毫秒，截断后内存中的值与读回的值一致
func (s *Session) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Add 设置 time_created 和 time_updated 后插入记录，返回存储分配的 _id
func (s *Session) Add(ctx context.Context, r *Record) (any, error) {
	now := s.timestamp()
	if err := r.Set(FieldTimeCreated, now); err != nil {
		return nil, err
	}
	if err := r.Set(FieldTimeUpdated, now); err != nil {
		return nil, err
	}

	id, err := s.collection(r.schema).Insert(ctx, r.Document())
	if err != nil {
		s.logger.ErrorContext(ctx, "add record failed", "collection", r.schema.collection, "error", err.Error())
		return nil, errors.WithMessagef(err, "insert into %s.%s", r.schema.database, r.schema.collection)
	}
	r.setID(id)
	r.bind(s)
	s.logger.DebugContext(ctx, "add record", "collection", r.schema.collection, "id", id)
	return id, nil
}

// Save 按 _id 覆盖写入，没有 _id 时插入
// time_created 只在为空时设置，time_updated 每次刷新
func (s *Session) Save(ctx context.Context, r *Record) (any, error) {
	now := s.timestamp()
	if r.Get(FieldTimeCreated) == nil {
		if err := r.Set(FieldTimeCreated, now); err != nil {
			return nil, err
		}
	}
	if err := r.Set(FieldTimeUpdated, now); err != nil {
		return nil, err
	}

	id, err := s.collection(r.schema).Save(ctx, r.Document())
	if err != nil {
		s.logger.ErrorContext(ctx, "save record failed", "collection", r.schema.collection, "error", err.Error())
		return nil, errors.WithMessagef(err, "save into %s.%s", r.schema.database, r.schema.collection)
	}
	r.setID(id)
	r.bind(s)
	s.logger.DebugContext(ctx, "save record", "collection", r.schema.collection, "id", id)
	return id, nil
}

// Remove 删除与记录 _id 相同的文档
func (s *Session) Remove(ctx context.Context, r *Record) error {
	id := r.ID()
	if id == nil {
		return ErrNotMapped
	}
	result, err := s.collection(r.schema).Remove(ctx, bson.M{FieldID: id})
	if err != nil {
		return errors.WithMessagef(err, "remove from %s.%s", r.schema.database, r.schema.collection)
	}
	s.logger.DebugContext(ctx, "remove record", "collection", r.schema.collection, "id", id, "deleted", result.DeletedCount)
	return nil
}

// DropAll 删除集合中的全部文档，返回删除的数量
func (s *Session) DropAll(ctx context.Context, schema *Schema) (int64, error) {
	result, err := s.collection(schema).Remove(ctx, nil)
	if err != nil {
		return 0, errors.WithMessagef(err, "drop all from %s.%s", schema.database, schema.collection)
	}
	s.logger.InfoContext(ctx, "drop all records", "collection", schema.collection, "deleted", result.DeletedCount)
	return result.DeletedCount, nil
}

// Update 对匹配 filter 的文档执行 $set，同时刷新 time_updated
// 字段名可以是点分路径，不能以 $ 开头；multi 为 false 时只更新第一个匹配的文档
func (s *Session) Update(ctx context.Context, schema *Schema, filter bson.M, fields map[string]any, multi bool) (*UpdateResult, error) {
	set := make(bson.M, len(fields)+1)
	for k, v := range fields {
		if k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".$") {
			return nil, invalidArgument("update field %q is not a plain field", k)
		}
		set[k] = storeValue(v)
	}
	set[FieldTimeUpdated] = s.timestamp()

	result, err := s.collection(schema).Update(ctx, filter, bson.M{"$set": set}, multi)
	if err != nil {
		return nil, errors.WithMessagef(err, "update %s.%s", schema.database, schema.collection)
	}
	s.logger.DebugContext(ctx, "update records", "collection", schema.collection, "matched", result.MatchedCount, "modified", result.ModifiedCount)
	return result, nil
}
