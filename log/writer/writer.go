package writer

import (
	"io"

	"github.com/hatlonely/nosqlx/ref"
)

// Namespace 输出器在 ref 中的命名空间
const Namespace = "github.com/hatlonely/nosqlx/log/writer"

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

func init() {
	ref.MustRegister(Namespace, "ConsoleWriter", NewConsoleWriterWithOptions)
	ref.MustRegister(Namespace, "FileWriter", NewFileWriterWithOptions)
	ref.MustRegister(Namespace, "BufferWriter", NewBufferWriter)
}

// NewWriterWithOptions 按配置创建输出器，未指定类型时输出到标准输出
func NewWriterWithOptions(options *ref.TypeOptions) (Writer, error) {
	if options == nil || options.Type == "" {
		return NewConsoleWriterWithOptions(nil)
	}
	obj, err := ref.NewWithOptions(options, Namespace)
	if err != nil {
		return nil, err
	}
	w, ok := obj.(Writer)
	if !ok {
		return nil, errorf("%T does not implement Writer", obj)
	}
	return w, nil
}
