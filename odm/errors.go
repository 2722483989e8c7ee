// Package odm 在文档数据库之上提供声明式的对象文档映射
package odm

import (
	"github.com/hatlonely/nosqlx/store"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument 列表字段收到非列表值、元素类型不匹配、嵌套字段收到非映射值或 _id 无法转换
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotMapped 记录还没有 _id
	ErrNotMapped = errors.New("record is not mapped")
	ErrNotFound  = store.ErrRecordNotFound
	ErrNoSession = errors.New("record is not bound to a session")
)

func invalidArgument(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
