package odm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record 对应集合中的一个文档
type Record struct {
	document
	session *Session
}

// NewRecord 按 schema 构造记录，未提供的字段使用默认值，data 中未声明的键被忽略
// session 可以为空，此时 Remove、Present、Update 返回 ErrNoSession
func NewRecord(schema *Schema, session *Session, data map[string]any) (*Record, error) {
	return newRecordFrom(schema, session, sortedPairs(data))
}

func newRecordFrom(schema *Schema, session *Session, pairs bson.D) (*Record, error) {
	if !schema.IsRoot() {
		return nil, invalidArgument("record requires a schema with a collection")
	}
	r := &Record{session: session}
	if err := r.init(schema, pairs); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRecordFromStruct 把 bson 编码后的结构体作为数据构造记录
func NewRecordFromStruct(schema *Schema, session *Session, v any) (*Record, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal struct failed")
	}
	var pairs bson.D
	if err := bson.Unmarshal(data, &pairs); err != nil {
		return nil, errors.Wrap(err, "unmarshal struct failed")
	}
	return newRecordFrom(schema, session, pairs)
}

func (r *Record) Session() *Session {
	return r.session
}

// ID 返回 _id，未保存过的记录返回 nil
func (r *Record) ID() any {
	return r.Get(FieldID)
}

func (r *Record) ObjectID() (primitive.ObjectID, bool) {
	oid, ok := r.ID().(primitive.ObjectID)
	return oid, ok
}

func (r *Record) setID(id any) {
	r.values[r.schema.index[FieldID]] = id
}

func (r *Record) bind(session *Session) {
	if r.session == nil {
		r.session = session
	}
}

// Remove 按 _id 删除文档
func (r *Record) Remove(ctx context.Context) error {
	if r.session == nil {
		return ErrNoSession
	}
	return r.session.Remove(ctx, r)
}

// Present 集合中是否存在与该记录 _id 相同的文档，没有 _id 时返回 false
func (r *Record) Present(ctx context.Context) (bool, error) {
	id := r.ID()
	if id == nil {
		return false, nil
	}
	if r.session == nil {
		return false, ErrNoSession
	}
	n, err := r.session.collection(r.schema).Count(ctx, bson.M{FieldID: id})
	if err != nil {
		return false, errors.WithMessagef(err, "count %s", r.schema.collection)
	}
	return n > 0, nil
}

// Update 按 _id 对文档做部分字段更新，不修改内存中的记录
func (r *Record) Update(ctx context.Context, fields map[string]any) (*UpdateResult, error) {
	id := r.ID()
	if id == nil {
		return nil, ErrNotMapped
	}
	if r.session == nil {
		return nil, ErrNoSession
	}
	return r.session.Update(ctx, r.schema, bson.M{FieldID: id}, fields, false)
}

// ScanStruct 把记录按 bson tag 解码到结构体
func (r *Record) ScanStruct(dest any) error {
	data, err := bson.Marshal(r.Document())
	if err != nil {
		return errors.Wrap(err, "marshal record failed")
	}
	return errors.Wrap(bson.Unmarshal(data, dest), "unmarshal record failed")
}

// JSONEncode 返回普通映射，ObjectID 类型的 _id 转换为十六进制字符串
func (r *Record) JSONEncode() map[string]any {
	m := r.Map()
	switch id := m[FieldID].(type) {
	case nil:
	case primitive.ObjectID:
		m[FieldID] = id.Hex()
	default:
		m[FieldID] = fmt.Sprint(id)
	}
	return m
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.JSONEncode())
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString(r.schema.collection)
	sb.WriteString(" Object:\n")
	for i, f := range r.schema.fields {
		v := plainValue(r.values[i])
		if oid, ok := v.(primitive.ObjectID); ok {
			v = oid.Hex()
		}
		fmt.Fprintf(&sb, "    %s => %v\n", f.name, v)
	}
	return sb.String()
}
