package odm

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// document 记录和嵌套记录共用的有序字段存储，values 与 schema.fields 一一对应
type document struct {
	schema *Schema
	values []any
}

func (d *document) init(schema *Schema, pairs bson.D) error {
	schema.markUsed()
	d.schema = schema
	d.values = make([]any, len(schema.fields))
	for i, f := range schema.fields {
		d.values[i] = f.seed()
	}
	for _, e := range pairs {
		i, ok := schema.index[e.Key]
		if !ok {
			continue
		}
		f := schema.fields[i]
		v, err := f.build(e.Value)
		if err != nil {
			return f.wrap(err)
		}
		d.values[i] = v
	}
	return nil
}

func (d *document) Schema() *Schema {
	return d.schema
}

// Get 返回字段值，嵌套记录、列表和映射字段分别返回 *SubDocument、*TypedList、*LazyDocument，未声明的字段返回 nil
func (d *document) Get(name string) any {
	i, ok := d.schema.index[name]
	if !ok {
		return nil
	}
	return d.values[i]
}

// Set 为已声明的字段赋值
// 嵌套记录字段按键逐个赋值，列表字段追加或拼接，映射字段整体替换
func (d *document) Set(name string, value any) error {
	i, ok := d.schema.index[name]
	if !ok {
		return invalidArgument("field %s is not declared", name)
	}
	f := d.schema.fields[i]
	v, err := f.assign(d.values[i], value)
	if err != nil {
		return f.wrap(err)
	}
	if f.kind == kindKey {
		d.values[i] = v
	} else {
		d.values[i] = commit(d.values[i], v)
	}
	return nil
}

// commit 用 values 更新字段值，容器字段写回已有的容器
func (d *document) commit(values []any) {
	for i, f := range d.schema.fields {
		if f.kind == kindKey {
			d.values[i] = values[i]
		} else {
			d.values[i] = commit(d.values[i], values[i])
		}
	}
}

// commit 把 src 的内容写入 dst 指向的容器并返回 dst，调用方之前取得的容器引用保持有效
// 类型不同的值直接返回 src
func commit(dst any, src any) any {
	switch d := dst.(type) {
	case *SubDocument:
		if s, ok := src.(*SubDocument); ok && d != nil && s != nil && d != s && d.schema == s.schema {
			d.commit(s.values)
			return d
		}
	case *TypedList:
		if s, ok := src.(*TypedList); ok && d != nil && s != nil && d != s && d.elem == s.elem {
			items := make([]any, len(s.items))
			for i, item := range s.items {
				if i < len(d.items) {
					items[i] = commit(d.items[i], item)
				} else {
					items[i] = item
				}
			}
			d.items = items
			return d
		}
	case *LazyDocument:
		if s, ok := src.(*LazyDocument); ok && d != nil && s != nil && d != s {
			d.keys, d.data = s.keys, s.data
			return d
		}
	}
	return src
}

// Keys 按声明顺序返回字段名
func (d *document) Keys() []string {
	return d.schema.Fields()
}

func (d *document) GetString(name string) string {
	s, _ := d.Get(name).(string)
	return s
}

func (d *document) GetInt(name string) int64 {
	n, _ := toInt64(d.Get(name))
	return n
}

func (d *document) GetFloat(name string) float64 {
	f, _ := toFloat64(d.Get(name))
	return f
}

func (d *document) GetBool(name string) bool {
	b, _ := d.Get(name).(bool)
	return b
}

func (d *document) GetTime(name string) time.Time {
	t, _ := toTime(d.Get(name))
	return t
}

// Sub 返回嵌套记录字段，字段不是嵌套记录时返回 nil
func (d *document) Sub(name string) *SubDocument {
	sub, _ := d.Get(name).(*SubDocument)
	return sub
}

// List 返回列表字段，字段不是列表时返回 nil
func (d *document) List(name string) *TypedList {
	list, _ := d.Get(name).(*TypedList)
	return list
}

// Lazy 返回映射字段，字段不是映射时返回 nil
func (d *document) Lazy(name string) *LazyDocument {
	lazy, _ := d.Get(name).(*LazyDocument)
	return lazy
}

// Map 返回由 map[string]any 和 []any 组成的普通值
func (d *document) Map() map[string]any {
	m := make(map[string]any, len(d.values))
	for i, f := range d.schema.fields {
		m[f.name] = plainValue(d.values[i])
	}
	return m
}

// Document 按声明顺序返回写入存储的文档，值为 nil 的 _id 不输出
func (d *document) Document() bson.D {
	doc := make(bson.D, 0, len(d.values))
	for i, f := range d.schema.fields {
		if f.name == FieldID && d.values[i] == nil {
			continue
		}
		doc = append(doc, bson.E{Key: f.name, Value: storeValue(d.values[i])})
	}
	return doc
}

func (d *document) pairs() bson.D {
	pairs := make(bson.D, len(d.values))
	for i, f := range d.schema.fields {
		pairs[i] = bson.E{Key: f.name, Value: d.values[i]}
	}
	return pairs
}

func (d *document) cloneValues() []any {
	values := make([]any, len(d.values))
	for i, v := range d.values {
		values[i] = cloneValue(v)
	}
	return values
}

// SubDocument 嵌套记录，只能作为其他记录的字段
type SubDocument struct {
	document
}

// NewSubDocument 按 schema 构造嵌套记录，data 中未声明的键被忽略
func NewSubDocument(schema *Schema, data map[string]any) (*SubDocument, error) {
	return newSubDocumentFrom(schema, sortedPairs(data))
}

func newSubDocument(schema *Schema) *SubDocument {
	sub, _ := newSubDocumentFrom(schema, nil)
	return sub
}

func newSubDocumentFrom(schema *Schema, pairs bson.D) (*SubDocument, error) {
	sub := &SubDocument{}
	if err := sub.init(schema, pairs); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubDocument) clone() *SubDocument {
	return &SubDocument{document: document{schema: s.schema, values: s.cloneValues()}}
}
