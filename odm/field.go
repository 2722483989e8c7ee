package odm

import (
	"github.com/pkg/errors"
)

// Key 标量字段声明，Type 仅作说明，赋值时不做校验
type Key struct {
	Type    string
	Default any
}

type fieldKind int

const (
	kindKey fieldKind = iota
	kindSub
	kindList
	kindLazy
)

func (k fieldKind) String() string {
	switch k {
	case kindKey:
		return "key"
	case kindSub:
		return "sub"
	case kindList:
		return "list"
	case kindLazy:
		return "lazy"
	}
	return "unknown"
}

// field 字段声明，构造策略在注册时确定
type field struct {
	name string
	kind fieldKind
	// typ 标量字段的类型说明，容器字段为 kind 名
	typ string
	// seed 返回未提供值时的默认值
	seed func() any
	// build 从原始数据构造字段值，nil 表示未提供
	build func(raw any) (any, error)
	// assign 在已有值上赋值
	assign func(current any, value any) (any, error)
}

func keyField(name string, key Key) *field {
	typ := key.Type
	if typ == "" {
		typ = "no_type"
	}
	return &field{
		name: name,
		kind: kindKey,
		typ:  typ,
		seed: func() any {
			return cloneValue(key.Default)
		},
		build: func(raw any) (any, error) {
			return fromStore(raw), nil
		},
		assign: func(current any, value any) (any, error) {
			return value, nil
		},
	}
}

func subField(name string, schema *Schema) *field {
	return &field{
		name: name,
		kind: kindSub,
		typ:  kindSub.String(),
		seed: func() any {
			return newSubDocument(schema)
		},
		build: func(raw any) (any, error) {
			if raw == nil {
				return newSubDocument(schema), nil
			}
			pairs, ok := mappingOf(raw)
			if !ok {
				return nil, invalidArgument("%v (%T) is not a mapping", raw, raw)
			}
			return newSubDocumentFrom(schema, pairs)
		},
		assign: func(current any, value any) (any, error) {
			sub := current.(*SubDocument)
			pairs, ok := mappingOf(value)
			if !ok {
				return nil, invalidArgument("%v (%T) is not a mapping", value, value)
			}
			// 在副本上逐个赋值，全部成功后再写回
			staged := sub.clone()
			for _, e := range pairs {
				if !schema.Has(e.Key) {
					continue
				}
				if err := staged.Set(e.Key, e.Value); err != nil {
					return nil, err
				}
			}
			sub.commit(staged.values)
			return sub, nil
		},
	}
}

func listField(name string, elem Elem) *field {
	return &field{
		name: name,
		kind: kindList,
		typ:  kindList.String(),
		seed: func() any {
			return &TypedList{elem: elem}
		},
		build: func(raw any) (any, error) {
			if raw == nil {
				return &TypedList{elem: elem}, nil
			}
			items, ok := sliceOf(raw)
			if !ok {
				return nil, invalidArgument("populate list with non-list value %v (%T)", raw, raw)
			}
			return NewTypedList(elem, items...)
		},
		assign: func(current any, value any) (any, error) {
			list := current.(*TypedList)
			if items, ok := sliceOf(value); ok {
				return list, list.Extend(items...)
			}
			return list, list.Append(value)
		},
	}
}

func lazyField(name string) *field {
	build := func(raw any) (any, error) {
		if raw == nil {
			return newLazyDocument(), nil
		}
		pairs, ok := mappingOf(raw)
		if !ok {
			return nil, invalidArgument("%v (%T) is not a mapping", raw, raw)
		}
		return newLazyDocumentFrom(pairs), nil
	}
	return &field{
		name: name,
		kind: kindLazy,
		typ:  kindLazy.String(),
		seed: func() any {
			return newLazyDocument()
		},
		build: build,
		assign: func(current any, value any) (any, error) {
			if value == nil {
				return nil, invalidArgument("nil is not a mapping")
			}
			return build(value)
		},
	}
}

func (f *field) wrap(err error) error {
	return errors.WithMessagef(err, "field %s", f.name)
}
