package decoder

import (
	"path/filepath"
	"strings"

	"github.com/hatlonely/nosqlx/ref"
	"github.com/pkg/errors"
)

// Namespace 解码器在 ref 中的命名空间
const Namespace = "github.com/hatlonely/nosqlx/cfg/decoder"

func init() {
	ref.MustRegister(Namespace, "YamlDecoder", NewYamlDecoder)
	ref.MustRegister(Namespace, "TomlDecoder", NewTomlDecoder)
	ref.MustRegister(Namespace, "IniDecoder", NewIniDecoder)
	ref.MustRegister(Namespace, "JsonDecoder", NewJsonDecoder)
}

// Decoder 把配置文件内容解码为 map/slice/标量组成的树
type Decoder interface {
	Decode(data []byte) (any, error)
}

// NewDecoderWithOptions 通过 ref 创建解码器
func NewDecoderWithOptions(options *ref.TypeOptions) (Decoder, error) {
	obj, err := ref.NewWithOptions(options, Namespace)
	if err != nil {
		return nil, errors.WithMessage(err, "create decoder failed")
	}
	d, ok := obj.(Decoder)
	if !ok {
		return nil, errors.Errorf("%T is not a Decoder", obj)
	}
	return d, nil
}

// NewDecoderForFormat 根据格式名创建解码器，支持 yaml/yml/toml/ini/json
func NewDecoderForFormat(format string) (Decoder, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		return NewYamlDecoder(), nil
	case "toml":
		return NewTomlDecoder(), nil
	case "ini":
		return NewIniDecoder(), nil
	case "json":
		return NewJsonDecoder(), nil
	default:
		return nil, errors.Errorf("unsupported config format: %q", format)
	}
}

// NewDecoderForFile 根据文件扩展名创建解码器
func NewDecoderForFile(filename string) (Decoder, error) {
	return NewDecoderForFormat(filepath.Ext(filename))
}
