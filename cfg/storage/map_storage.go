package storage

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/hatlonely/nosqlx/cfg/validator"
	"github.com/pkg/errors"
)

// MapStorage 基于 map 和 slice 的配置树
// key 使用点号表示多级嵌套，[i] 表示数组下标，例如 "stores[0].options.port"
type MapStorage struct {
	data any
}

func NewMapStorage(data any) *MapStorage {
	return &MapStorage{data: data}
}

// Data 返回原始数据
func (s *MapStorage) Data() any {
	return s.data
}

// Get 返回 key 对应的原始值，不存在时返回 nil
func (s *MapStorage) Get(key string) any {
	current := s.data
	for _, k := range parseKey(key) {
		current = child(current, k)
		if current == nil {
			return nil
		}
	}
	return current
}

// Sub 返回 key 对应的子树
func (s *MapStorage) Sub(key string) *MapStorage {
	if key == "" {
		return s
	}
	return NewMapStorage(s.Get(key))
}

// Set 设置 key 对应的值，中间节点不存在时自动创建
// 已有的键按大小写不敏感匹配
func (s *MapStorage) Set(key string, value any) error {
	keys := parseKey(key)
	if len(keys) == 0 {
		s.data = value
		return nil
	}

	root, ok := s.data.(map[string]any)
	if !ok {
		if s.data != nil {
			return errors.Errorf("cannot set %q on %T", key, s.data)
		}
		root = map[string]any{}
		s.data = root
	}

	current := root
	for i, k := range keys {
		name := matchKey(current, k)
		if i == len(keys)-1 {
			current[name] = value
			return nil
		}
		next, ok := current[name].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[name] = next
		}
		current = next
	}
	return nil
}

// ConvertTo 把配置转换成 object 指向的对象，结构体会填充 def 默认值并做 validate 校验
func (s *MapStorage) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	if err := convertValue(s.data, rv.Elem()); err != nil {
		return err
	}

	target := rv.Elem()
	for target.Kind() == reflect.Ptr && !target.IsNil() {
		target = target.Elem()
	}
	if target.Kind() != reflect.Struct {
		return nil
	}
	if err := def.SetDefaults(target.Addr().Interface()); err != nil {
		return errors.WithMessage(err, "set defaults failed")
	}
	if err := validator.ValidateStruct(target.Addr().Interface()); err != nil {
		return errors.Wrap(err, "validate failed")
	}
	return nil
}

func parseKey(key string) []string {
	var keys []string
	for _, part := range strings.Split(key, ".") {
		for part != "" {
			idx := strings.IndexByte(part, '[')
			if idx < 0 {
				keys = append(keys, part)
				break
			}
			if idx > 0 {
				keys = append(keys, part[:idx])
			}
			end := strings.IndexByte(part[idx:], ']')
			if end < 0 {
				keys = append(keys, part[idx+1:])
				break
			}
			keys = append(keys, part[idx+1:idx+end])
			part = part[idx+end+1:]
		}
	}
	return keys
}

func matchKey(m map[string]any, key string) string {
	if _, ok := m[key]; ok {
		return key
	}
	for k := range m {
		if strings.EqualFold(k, key) {
			return k
		}
	}
	return key
}

func child(data any, key string) any {
	rv := reflect.ValueOf(data)
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		if v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())); v.IsValid() {
			return v.Interface()
		}
		iter := rv.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), key) {
				return iter.Value().Interface()
			}
		}
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil
		}
		return rv.Index(idx).Interface()
	}
	return nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func convertValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}
	if inner, ok := src.(*MapStorage); ok {
		src = inner.data
		if src == nil {
			return nil
		}
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	sv := reflect.ValueOf(src)
	switch dst.Type() {
	case durationType:
		return convertDuration(sv, dst)
	case timeType:
		return convertTime(sv, dst)
	}

	if sv.Type().AssignableTo(dst.Type()) && dst.Kind() != reflect.Map && dst.Kind() != reflect.Slice {
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Interface:
		if sv.Type().Implements(dst.Type()) {
			dst.Set(sv)
			return nil
		}
	case reflect.Struct:
		return convertStruct(sv, dst)
	case reflect.Map:
		return convertMap(sv, dst)
	case reflect.Slice:
		return convertSlice(sv, dst)
	case reflect.String:
		switch sv.Kind() {
		case reflect.String:
			dst.SetString(sv.String())
		default:
			dst.SetString(fmt.Sprint(src))
		}
		return nil
	case reflect.Bool:
		if sv.Kind() == reflect.String {
			b, err := strconv.ParseBool(sv.String())
			if err != nil {
				return errors.Wrapf(err, "cannot convert %q to bool", sv.String())
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return convertNumber(sv, dst)
	}

	return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
}

func convertNumber(sv, dst reflect.Value) error {
	if sv.Kind() == reflect.String {
		f, err := strconv.ParseFloat(sv.String(), 64)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %q to %v", sv.String(), dst.Type())
		}
		sv = reflect.ValueOf(f)
	}
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
}

func convertDuration(sv, dst reflect.Value) error {
	switch sv.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(sv.String())
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", sv.String())
		}
		dst.SetInt(int64(d))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(sv.Int())
		return nil
	case reflect.Float32, reflect.Float64:
		dst.SetInt(int64(sv.Float() * float64(time.Second)))
		return nil
	}
	return errors.Errorf("cannot convert %v to time.Duration", sv.Type())
}

func convertTime(sv, dst reflect.Value) error {
	if t, ok := sv.Interface().(time.Time); ok {
		dst.Set(reflect.ValueOf(t))
		return nil
	}
	if sv.Kind() == reflect.String {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, sv.String()); err == nil {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return errors.Errorf("invalid time %q", sv.String())
	}
	return errors.Errorf("cannot convert %v to time.Time", sv.Type())
}

func fieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("cfg")
	if tag == "-" {
		return "", false
	}
	if name := strings.Split(tag, ",")[0]; name != "" {
		return name, true
	}
	return field.Name, true
}

func convertStruct(sv, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := dst.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Anonymous && field.Tag.Get("cfg") == "" {
			if err := convertValue(sv.Interface(), fv); err != nil {
				return err
			}
			continue
		}

		name, ok := fieldName(field)
		if !ok {
			continue
		}
		value := child(sv.Interface(), name)
		if value == nil {
			continue
		}

		// 未定型的子树交给 ref 按构造函数参数类型再转换
		if fv.Kind() == reflect.Interface && fv.NumMethod() == 0 {
			switch reflect.ValueOf(value).Kind() {
			case reflect.Map, reflect.Slice:
				fv.Set(reflect.ValueOf(NewMapStorage(value)))
				continue
			}
		}

		if err := convertValue(value, fv); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

func convertMap(sv, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), sv.Len()))
	}

	iter := sv.MapRange()
	for iter.Next() {
		key := reflect.New(dst.Type().Key()).Elem()
		if err := convertValue(iter.Key().Interface(), key); err != nil {
			return errors.WithMessagef(err, "map key %v", iter.Key())
		}
		value := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(iter.Value().Interface(), value); err != nil {
			return errors.WithMessagef(err, "map value %v", iter.Key())
		}
		dst.SetMapIndex(key, value)
	}
	return nil
}

func convertSlice(sv, dst reflect.Value) error {
	if sv.Kind() == reflect.String && dst.Type().Elem().Kind() == reflect.String {
		parts := strings.Split(sv.String(), ",")
		slice := reflect.MakeSlice(dst.Type(), len(parts), len(parts))
		for i, part := range parts {
			slice.Index(i).SetString(strings.TrimSpace(part))
		}
		dst.Set(slice)
		return nil
	}
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
	}

	slice := reflect.MakeSlice(dst.Type(), sv.Len(), sv.Len())
	for i := 0; i < sv.Len(); i++ {
		if err := convertValue(sv.Index(i).Interface(), slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(slice)
	return nil
}
