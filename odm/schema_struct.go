package odm

import (
	"reflect"
	"strings"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	objectIDType = reflect.TypeOf(primitive.ObjectID{})
)

// SchemaFromStruct 按结构体字段声明 schema，collection 为空时返回嵌套记录的声明
//
// 字段名取 bson tag，没有 tag 时使用小写的字段名，"-" 表示忽略，inline 的结构体字段展开到当前层级。
// 结构体字段声明为嵌套记录，切片字段声明为列表，map 字段声明为映射，其余字段声明为标量。
// 标量字段的默认值来自 def tag，类型说明来自 odm tag，没有 odm tag 时使用 Go 类型名。
func SchemaFromStruct(database string, collection string, v any) (*Schema, error) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, invalidArgument("%T is not a struct", v)
	}

	var schema *Schema
	if collection == "" {
		schema = NewSubSchema()
	} else {
		schema = NewSchema(database, collection)
	}
	if err := declareStruct(schema, rt, map[reflect.Type]bool{}); err != nil {
		return nil, err
	}
	return schema, nil
}

// declareStruct visiting 记录正在声明的结构体类型，自引用的结构体返回 ErrInvalidArgument
func declareStruct(schema *Schema, rt reflect.Type, visiting map[reflect.Type]bool) error {
	if visiting[rt] {
		return invalidArgument("struct %s refers to itself", rt)
	}
	visiting[rt] = true
	defer delete(visiting, rt)

	defaults := reflect.New(rt)
	if err := def.SetDefaults(defaults.Interface()); err != nil {
		return errors.WithMessagef(err, "set defaults for %s", rt.Name())
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, inline, skip := bsonName(sf)
		if skip {
			continue
		}

		ft := sf.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if inline {
			if ft.Kind() != reflect.Struct {
				return invalidArgument("inline field %s is not a struct", sf.Name)
			}
			if err := declareStruct(schema, ft, visiting); err != nil {
				return err
			}
			continue
		}

		if schema.IsRoot() && (name == FieldID || name == FieldTimeCreated || name == FieldTimeUpdated) {
			continue
		}

		switch {
		case ft.Kind() == reflect.Struct && ft != timeType:
			sub := NewSubSchema()
			if err := declareStruct(sub, ft, visiting); err != nil {
				return errors.WithMessagef(err, "field %s", sf.Name)
			}
			schema.Sub(name, sub)
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8, ft.Kind() == reflect.Array && ft != objectIDType:
			elem, err := elemOf(ft.Elem(), visiting)
			if err != nil {
				return errors.WithMessagef(err, "field %s", sf.Name)
			}
			schema.List(name, elem)
		case ft.Kind() == reflect.Map && ft.Key().Kind() == reflect.String:
			schema.Lazy(name)
		default:
			key := Key{Type: sf.Tag.Get("odm")}
			if key.Type == "" {
				key.Type = ft.String()
			}
			if _, ok := sf.Tag.Lookup("def"); ok {
				key.Default = defaults.Elem().Field(i).Interface()
			}
			schema.Key(name, key)
		}
	}
	return nil
}

func elemOf(rt reflect.Type, visiting map[reflect.Type]bool) (Elem, error) {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	switch {
	case rt == timeType:
		return TimeElem, nil
	case rt == objectIDType:
		return ObjectIDElem, nil
	case rt.Kind() == reflect.Struct:
		sub := NewSubSchema()
		if err := declareStruct(sub, rt, visiting); err != nil {
			return nil, err
		}
		return SubElem(sub), nil
	case rt.Kind() == reflect.Map && rt.Key().Kind() == reflect.String:
		return LazyElem, nil
	case rt.Kind() == reflect.String:
		return StringElem, nil
	case rt.Kind() == reflect.Bool:
		return BoolElem, nil
	case rt.Kind() >= reflect.Int && rt.Kind() <= reflect.Uint64:
		return IntElem, nil
	case rt.Kind() == reflect.Float32 || rt.Kind() == reflect.Float64:
		return FloatElem, nil
	}
	return AnyElem, nil
}

// bsonName 解析 bson tag，返回字段名、是否内联以及是否忽略
func bsonName(sf reflect.StructField) (string, bool, bool) {
	tag := sf.Tag.Get("bson")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	inline := false
	for _, opt := range parts[1:] {
		if opt == "inline" {
			inline = true
		}
	}
	if name == "" {
		name = strings.ToLower(sf.Name)
	}
	return name, inline, false
}
