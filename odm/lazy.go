package odm

import (
	"go.mongodb.org/mongo-driver/bson"
)

// LazyDocument 无模式的有序键值容器，按插入顺序保存
type LazyDocument struct {
	keys []string
	data map[string]any
}

// NewLazyDocument 从映射创建，普通 map 按键排序插入
func NewLazyDocument(data map[string]any) *LazyDocument {
	l := newLazyDocument()
	for _, e := range sortedPairs(data) {
		l.Set(e.Key, e.Value)
	}
	return l
}

func newLazyDocument() *LazyDocument {
	return &LazyDocument{data: map[string]any{}}
}

func newLazyDocumentFrom(pairs bson.D) *LazyDocument {
	l := newLazyDocument()
	for _, e := range pairs {
		l.Set(e.Key, cloneValue(e.Value))
	}
	return l
}

func (l *LazyDocument) Get(key string) any {
	return l.data[key]
}

func (l *LazyDocument) Lookup(key string) (any, bool) {
	v, ok := l.data[key]
	return v, ok
}

// Set 新的键追加到末尾，已有的键保持位置
func (l *LazyDocument) Set(key string, value any) {
	if _, ok := l.data[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.data[key] = value
}

func (l *LazyDocument) Delete(key string) {
	if _, ok := l.data[key]; !ok {
		return
	}
	delete(l.data, key)
	for i, k := range l.keys {
		if k == key {
			l.keys = append(l.keys[:i:i], l.keys[i+1:]...)
			break
		}
	}
}

func (l *LazyDocument) Keys() []string {
	return append([]string(nil), l.keys...)
}

func (l *LazyDocument) Len() int {
	return len(l.keys)
}

func (l *LazyDocument) Map() map[string]any {
	m := make(map[string]any, len(l.keys))
	for _, k := range l.keys {
		m[k] = plainValue(l.data[k])
	}
	return m
}

func (l *LazyDocument) Document() bson.D {
	d := make(bson.D, 0, len(l.keys))
	for _, k := range l.keys {
		d = append(d, bson.E{Key: k, Value: storeValue(l.data[k])})
	}
	return d
}

func (l *LazyDocument) pairs() bson.D {
	d := make(bson.D, 0, len(l.keys))
	for _, k := range l.keys {
		d = append(d, bson.E{Key: k, Value: l.data[k]})
	}
	return d
}

func (l *LazyDocument) clone() *LazyDocument {
	return newLazyDocumentFrom(l.pairs())
}
