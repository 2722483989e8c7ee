package cfg

import (
	"os"
	"strings"

	"github.com/hatlonely/nosqlx/cfg/decoder"
	"github.com/hatlonely/nosqlx/cfg/storage"
	"github.com/pkg/errors"
)

// Config 只读配置，支持 YAML/TOML/INI/JSON 文件和环境变量覆盖
// Config 实现了 ref.Convertable，可以直接作为 ref.TypeOptions 的 Options
type Config struct {
	storage *storage.MapStorage
}

type configOptions struct {
	envPrefix string
	environ   func() []string
	format    string
}

// Option 配置加载选项
type Option func(*configOptions)

// WithEnvPrefix 使用 PREFIX_A_B=value 形式的环境变量覆盖 a.b
func WithEnvPrefix(prefix string) Option {
	return func(o *configOptions) {
		o.envPrefix = prefix
	}
}

// WithEnviron 指定环境变量来源，默认 os.Environ
func WithEnviron(environ func() []string) Option {
	return func(o *configOptions) {
		o.environ = environ
	}
}

// WithFormat 指定格式，忽略文件扩展名
func WithFormat(format string) Option {
	return func(o *configOptions) {
		o.format = format
	}
}

// NewConfig 从文件加载配置，filename 为空时只使用环境变量
func NewConfig(filename string, opts ...Option) (*Config, error) {
	var data []byte
	if filename != "" {
		var err error
		data, err = os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s failed", filename)
		}
	}

	options := applyOptions(opts)
	if options.format == "" {
		options.format = strings.TrimPrefix(strings.ToLower(extension(filename)), ".")
	}
	return newConfig(data, options)
}

// NewConfigWithData 从内存数据加载配置
func NewConfigWithData(data []byte, format string, opts ...Option) (*Config, error) {
	options := applyOptions(append([]Option{WithFormat(format)}, opts...))
	return newConfig(data, options)
}

// NewConfigWithValue 直接包装已有的配置树
func NewConfigWithValue(value any) *Config {
	return &Config{storage: storage.NewMapStorage(value)}
}

func applyOptions(opts []Option) *configOptions {
	options := &configOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func newConfig(data []byte, options *configOptions) (*Config, error) {
	var value any
	if len(data) != 0 {
		d, err := decoder.NewDecoderForFormat(options.format)
		if err != nil {
			return nil, err
		}
		value, err = d.Decode(data)
		if err != nil {
			return nil, errors.WithMessage(err, "decode config failed")
		}
	}

	c := &Config{storage: storage.NewMapStorage(value)}
	if options.envPrefix != "" {
		if err := c.overlayEnv(options.envPrefix, options.environ()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Config) overlayEnv(prefix string, environ []string) error {
	prefix = strings.ToUpper(strings.TrimSuffix(prefix, "_")) + "_"
	for _, kv := range environ {
		idx := strings.IndexByte(kv, '=')
		if idx <= 0 || !strings.HasPrefix(strings.ToUpper(kv[:idx]), prefix) {
			continue
		}
		name := kv[len(prefix):idx]
		if name == "" {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(name, "_", "."))
		if err := c.storage.Set(key, decoder.ParseScalar(kv[idx+1:])); err != nil {
			return errors.WithMessagef(err, "apply environment %s failed", kv[:idx])
		}
	}
	return nil
}

func extension(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}

// Get 返回 key 对应的原始值
func (c *Config) Get(key string) any {
	return c.storage.Get(key)
}

// Sub 返回子配置
func (c *Config) Sub(key string) *Config {
	return &Config{storage: c.storage.Sub(key)}
}

// ConvertTo 把配置转换到 object，结构体按 cfg tag 匹配并填充 def 默认值
func (c *Config) ConvertTo(object any) error {
	return c.storage.ConvertTo(object)
}
