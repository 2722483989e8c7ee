package odm

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Elem 列表的元素类型
type Elem interface {
	Name() string
	// coerce 返回满足元素类型的值，无法满足时返回 ErrInvalidArgument
	coerce(v any) (any, error)
}

var (
	AnyElem      Elem = &scalarElem{name: "any", accept: func(v any) bool { return true }}
	StringElem   Elem = &scalarElem{name: "string", accept: isKind(reflect.String)}
	IntElem      Elem = &scalarElem{name: "int", accept: isKind(reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64)}
	FloatElem    Elem = &scalarElem{name: "float", accept: isKind(reflect.Float32, reflect.Float64)}
	BoolElem     Elem = &scalarElem{name: "bool", accept: isKind(reflect.Bool)}
	TimeElem     Elem = &scalarElem{name: "time", accept: isTime, convert: fromStore}
	ObjectIDElem Elem = &scalarElem{name: "objectid", accept: isObjectID}
	LazyElem     Elem = &lazyElem{}
)

type scalarElem struct {
	name    string
	accept  func(v any) bool
	convert func(v any) any
}

func (e *scalarElem) Name() string {
	return e.name
}

func (e *scalarElem) coerce(v any) (any, error) {
	if !e.accept(v) {
		return nil, invalidArgument("%v (%T) is not %s", v, v, e.name)
	}
	if e.convert != nil {
		return e.convert(v), nil
	}
	return v, nil
}

func isKind(kinds ...reflect.Kind) func(v any) bool {
	return func(v any) bool {
		if v == nil {
			return false
		}
		k := reflect.TypeOf(v).Kind()
		for _, kind := range kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
}

func isTime(v any) bool {
	_, ok := toTime(v)
	return ok
}

func isObjectID(v any) bool {
	_, ok := v.(primitive.ObjectID)
	return ok
}

// SubElem 元素为 schema 描述的嵌套记录，映射类的值按 schema 构造
func SubElem(schema *Schema) Elem {
	if schema.IsRoot() {
		panic("odm: list element schema must be a sub schema")
	}
	return &subElem{schema: schema}
}

type subElem struct {
	schema *Schema
}

func (e *subElem) Name() string {
	return "sub"
}

func (e *subElem) coerce(v any) (any, error) {
	if sub, ok := v.(*SubDocument); ok && sub != nil {
		if sub.schema != e.schema {
			return nil, invalidArgument("sub document has a different schema")
		}
		return sub, nil
	}
	pairs, ok := mappingOf(v)
	if !ok {
		return nil, invalidArgument("%v (%T) is not a sub document", v, v)
	}
	return newSubDocumentFrom(e.schema, pairs)
}

type lazyElem struct{}

func (e *lazyElem) Name() string {
	return "lazy"
}

func (e *lazyElem) coerce(v any) (any, error) {
	if lazy, ok := v.(*LazyDocument); ok && lazy != nil {
		return lazy, nil
	}
	pairs, ok := mappingOf(v)
	if !ok {
		return nil, invalidArgument("%v (%T) is not a mapping", v, v)
	}
	return newLazyDocumentFrom(pairs), nil
}
