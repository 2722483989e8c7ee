package log

import (
	"sync"

	"github.com/hatlonely/nosqlx/log/logger"
	"github.com/hatlonely/nosqlx/ref"
	"github.com/pkg/errors"
)

var (
	mu            sync.RWMutex
	defaultLogger logger.Logger
)

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "info", Format: "text"})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = l
}

// Default 返回全局默认日志器，向标准输出写 text 格式日志
func Default() logger.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault 替换全局默认日志器
func SetDefault(l logger.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// NewLoggerWithOptions 按配置创建日志器，options 为空或未指定类型时返回默认日志器
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}

	obj, err := ref.NewWithOptions(options, logger.Namespace)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}
	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%T does not implement Logger", obj)
	}
	return l, nil
}
