package odm

import (
	"fmt"
	"sync/atomic"
)

// 每个顶层记录都隐式声明的字段，按此顺序排在最前面
const (
	FieldID          = "_id"
	FieldTimeCreated = "time_created"
	FieldTimeUpdated = "time_updated"
)

// Schema 记录的声明：所属的数据库和集合，以及有序的字段声明
// 第一次用于构造记录后不能再修改
type Schema struct {
	database   string
	collection string
	fields     []*field
	index      map[string]int
	used       atomic.Bool
}

// NewSchema 创建顶层记录的声明，自动声明 _id、time_created、time_updated
func NewSchema(database string, collection string) *Schema {
	s := &Schema{database: database, collection: collection, index: map[string]int{}}
	s.Key(FieldID, Key{})
	s.Key(FieldTimeCreated, Key{})
	s.Key(FieldTimeUpdated, Key{})
	return s
}

// NewSubSchema 创建嵌套记录的声明，没有集合和隐式字段
func NewSubSchema() *Schema {
	return &Schema{index: map[string]int{}}
}

func (s *Schema) Database() string {
	return s.database
}

func (s *Schema) Collection() string {
	return s.collection
}

// IsRoot 是否是对应一个集合的顶层声明
func (s *Schema) IsRoot() bool {
	return s.collection != ""
}

// Fields 按声明顺序返回字段名
func (s *Schema) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FieldType 返回字段的类型说明，未声明时返回空
func (s *Schema) FieldType(name string) string {
	if f := s.field(name); f != nil {
		return f.typ
	}
	return ""
}

// Key 声明标量字段
func (s *Schema) Key(name string, key Key) *Schema {
	return s.declare(keyField(name, key))
}

// Sub 声明嵌套记录字段
func (s *Schema) Sub(name string, sub *Schema) *Schema {
	if sub.IsRoot() {
		panic(fmt.Sprintf("odm: field %s: sub field requires a sub schema", name))
	}
	return s.declare(subField(name, sub))
}

// List 声明元素类型为 elem 的列表字段
func (s *Schema) List(name string, elem Elem) *Schema {
	return s.declare(listField(name, elem))
}

// Lazy 声明无模式的映射字段
func (s *Schema) Lazy(name string) *Schema {
	return s.declare(lazyField(name))
}

// declare 重复声明的字段替换原有声明并保持位置
func (s *Schema) declare(f *field) *Schema {
	if s.used.Load() {
		panic(fmt.Sprintf("odm: declare field %s on a schema already in use", f.name))
	}
	if i, ok := s.index[f.name]; ok {
		s.fields[i] = f
		return s
	}
	s.index[f.name] = len(s.fields)
	s.fields = append(s.fields, f)
	return s
}

func (s *Schema) field(name string) *field {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.fields[i]
}

func (s *Schema) markUsed() {
	s.used.Store(true)
}
