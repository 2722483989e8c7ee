package writer

import (
	"bytes"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// BufferWriter 把日志保存在内存中，主要用于测试和调试
type BufferWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewBufferWriter() *BufferWriter {
	return &BufferWriter{}
}

func (b *BufferWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *BufferWriter) Close() error {
	return nil
}

// String 返回已写入的全部内容
func (b *BufferWriter) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines 按行返回已写入的内容，忽略空行
func (b *BufferWriter) Lines() []string {
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (b *BufferWriter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func errorf(format string, args ...any) error {
	return errors.Errorf(format, args...)
}
