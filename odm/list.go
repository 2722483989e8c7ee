package odm

import (
	"github.com/pkg/errors"
)

// TypedList 元素类型固定的列表，不满足元素类型的值会被拒绝
type TypedList struct {
	elem  Elem
	items []any
}

// NewTypedList 创建列表，任一元素不满足类型时返回 ErrInvalidArgument
func NewTypedList(elem Elem, items ...any) (*TypedList, error) {
	l := &TypedList{elem: elem}
	if err := l.Extend(items...); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *TypedList) Elem() Elem {
	return l.elem
}

// Append 追加一个元素，失败时列表保持不变
func (l *TypedList) Append(v any) error {
	item, err := l.elem.coerce(v)
	if err != nil {
		return err
	}
	l.items = append(l.items, item)
	return nil
}

// Extend 追加多个元素，任一元素不合法时一个都不追加
func (l *TypedList) Extend(values ...any) error {
	items := make([]any, 0, len(values))
	for i, v := range values {
		item, err := l.elem.coerce(v)
		if err != nil {
			return errors.WithMessagef(err, "element %d", i)
		}
		items = append(items, item)
	}
	l.items = append(l.items, items...)
	return nil
}

func (l *TypedList) Len() int {
	return len(l.items)
}

func (l *TypedList) At(i int) any {
	return l.items[i]
}

// Items 返回元素切片的拷贝
func (l *TypedList) Items() []any {
	return append([]any(nil), l.items...)
}

// Pop 删除并返回最后一个元素
func (l *TypedList) Pop() (any, bool) {
	if len(l.items) == 0 {
		return nil, false
	}
	item := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return item, true
}

func (l *TypedList) clone() *TypedList {
	items := make([]any, len(l.items))
	for i, item := range l.items {
		items[i] = cloneValue(item)
	}
	return &TypedList{elem: l.elem, items: items}
}
