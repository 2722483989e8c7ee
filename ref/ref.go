package ref

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// TypeOptions 通过命名空间和类型名描述一个可构造对象
// Namespace 为空时使用调用方给出的默认命名空间
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

// Convertable 可以把自身转换成构造函数参数类型的配置数据
// object 是指向目标对象的指针
type Convertable interface {
	ConvertTo(object any) error
}

type constructor struct {
	fn           reflect.Value
	paramType    reflect.Type
	returnsError bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newConstructor(fn any) (*constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor must be a function, got %T", fn)
	}

	ft := fv.Type()
	if ft.NumIn() > 1 {
		return nil, errors.Errorf("constructor must have 0 or 1 input parameters, got %d", ft.NumIn())
	}
	if ft.NumOut() != 1 && ft.NumOut() != 2 {
		return nil, errors.Errorf("constructor must have 1 or 2 return values, got %d", ft.NumOut())
	}
	if ft.NumOut() == 2 && !ft.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error type")
	}

	c := &constructor{fn: fv, returnsError: ft.NumOut() == 2}
	if ft.NumIn() == 1 {
		c.paramType = ft.In(0)
	}
	return c, nil
}

// argument 把 options 转换成构造函数需要的参数
// nil 转换成参数类型的零值，指针参数会分配一个新对象
func (c *constructor) argument(options any) (reflect.Value, error) {
	pt := c.paramType

	if options == nil {
		if pt.Kind() == reflect.Ptr {
			return reflect.New(pt.Elem()), nil
		}
		return reflect.Zero(pt), nil
	}

	if convertable, ok := options.(Convertable); ok {
		if pt.Kind() == reflect.Ptr {
			target := reflect.New(pt.Elem())
			if err := convertable.ConvertTo(target.Interface()); err != nil {
				return reflect.Value{}, errors.Wrapf(err, "convert options to %v failed", pt)
			}
			return target, nil
		}
		target := reflect.New(pt)
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "convert options to %v failed", pt)
		}
		return target.Elem(), nil
	}

	ov := reflect.ValueOf(options)
	if ov.Type().AssignableTo(pt) {
		return ov, nil
	}
	// 允许直接传入结构体值给指针参数
	if pt.Kind() == reflect.Ptr && ov.Type().AssignableTo(pt.Elem()) {
		target := reflect.New(pt.Elem())
		target.Elem().Set(ov)
		return target, nil
	}
	return reflect.Value{}, errors.Errorf("options type %T is not assignable to %v", options, pt)
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value
	if c.paramType != nil {
		arg, err := c.argument(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	results := c.fn.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

var constructors sync.Map

func key(namespace, typ string) string {
	return namespace + ":" + typ
}

// Register 注册构造函数，相同的函数重复注册会被忽略
func Register(namespace string, typ string, fn any) error {
	c, err := newConstructor(fn)
	if err != nil {
		return errors.WithMessagef(err, "register %s:%s failed", namespace, typ)
	}

	if existing, loaded := constructors.LoadOrStore(key(namespace, typ), c); loaded {
		if existing.(*constructor).fn.Pointer() != c.fn.Pointer() {
			return errors.Errorf("constructor for %s:%s already registered with different function", namespace, typ)
		}
	}
	return nil
}

// RegisterT 以 T 的包路径和类型名注册构造函数
func RegisterT[T any](fn any) error {
	namespace, typ, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, typ, fn)
}

func MustRegister(namespace string, typ string, fn any) {
	if err := Register(namespace, typ, fn); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](fn any) {
	if err := RegisterT[T](fn); err != nil {
		panic(err)
	}
}

// New 调用已注册的构造函数创建对象
func New(namespace string, typ string, options any) (any, error) {
	value, ok := constructors.Load(key(namespace, typ))
	if !ok {
		return nil, errors.Errorf("constructor not found for %s:%s", namespace, typ)
	}
	return value.(*constructor).new(options)
}

// NewWithOptions 按 TypeOptions 创建对象，namespace 为空时使用 defaultNamespace
func NewWithOptions(options *TypeOptions, defaultNamespace string) (any, error) {
	if options == nil {
		return nil, errors.New("type options is nil")
	}
	namespace := options.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	return New(namespace, options.Type, options.Options)
}

// NewT 创建对象并断言为 T，T 同时决定命名空间和类型名
func NewT[T any](options any) (T, error) {
	var zero T
	namespace, typ, err := typeKey[T]()
	if err != nil {
		return zero, err
	}
	obj, err := New(namespace, typ, options)
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("created object %T is not of type %T", obj, zero)
	}
	return result, nil
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", fmt.Errorf("cannot determine package path or type name for type %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}
