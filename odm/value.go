package odm

import (
	"reflect"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mappingOf 把映射类的值转换成有序的键值对，普通 map 按键排序
func mappingOf(v any) (bson.D, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case bson.D:
		return m, true
	case map[string]any:
		return sortedPairs(m), true
	case bson.M:
		return sortedPairs(m), true
	case *LazyDocument:
		if m == nil {
			return nil, false
		}
		return m.pairs(), true
	case *SubDocument:
		if m == nil {
			return nil, false
		}
		return m.pairs(), true
	case *Record:
		if m == nil {
			return nil, false
		}
		return m.pairs(), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return sortedPairs(m), true
}

func sortedPairs(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make(bson.D, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, bson.E{Key: k, Value: m[k]})
	}
	return pairs
}

// sliceOf 把列表类的值转换成 []any，字符串、[]byte 和 ObjectID 不视为列表
func sliceOf(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil, string, []byte, bson.D, primitive.ObjectID:
		return nil, false
	case []any:
		return s, true
	case bson.A:
		return s, true
	case *TypedList:
		if s == nil {
			return nil, false
		}
		return s.Items(), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// cloneValue 深拷贝容器类型，其他值原样返回
func cloneValue(v any) any {
	switch x := v.(type) {
	case *SubDocument:
		return x.clone()
	case *LazyDocument:
		return x.clone()
	case *TypedList:
		return x.clone()
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case bson.M:
		m := make(bson.M, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case bson.D:
		d := make(bson.D, len(x))
		for i, e := range x {
			d[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return d
	case bson.A:
		a := make(bson.A, len(x))
		for i, e := range x {
			a[i] = cloneValue(e)
		}
		return a
	case []any:
		a := make([]any, len(x))
		for i, e := range x {
			a[i] = cloneValue(e)
		}
		return a
	}
	return v
}

// storeValue 把容器转换成可以直接写入存储的 BSON 值
func storeValue(v any) any {
	switch x := v.(type) {
	case *SubDocument:
		return x.Document()
	case *LazyDocument:
		return x.Document()
	case *Record:
		return x.Document()
	case *TypedList:
		a := make(bson.A, 0, x.Len())
		for _, item := range x.items {
			a = append(a, storeValue(item))
		}
		return a
	}
	return v
}

// plainValue 把容器转换成 map[string]any 和 []any 组成的普通值
func plainValue(v any) any {
	switch x := v.(type) {
	case *SubDocument:
		return x.Map()
	case *LazyDocument:
		return x.Map()
	case *Record:
		return x.Map()
	case *TypedList:
		a := make([]any, 0, x.Len())
		for _, item := range x.items {
			a = append(a, plainValue(item))
		}
		return a
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = plainValue(e)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = plainValue(e)
		}
		return m
	case bson.A:
		a := make([]any, len(x))
		for i, e := range x {
			a[i] = plainValue(e)
		}
		return a
	case primitive.DateTime:
		return x.Time().UTC()
	}
	return v
}

// fromStore 把存储中的标量转换成 Go 的常用类型
func fromStore(v any) any {
	if t, ok := v.(primitive.DateTime); ok {
		return t.Time().UTC()
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time().UTC(), true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}
