package decoder

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// YamlDecoder YAML格式解码器
type YamlDecoder struct{}

func NewYamlDecoder() *YamlDecoder {
	return &YamlDecoder{}
}

func (d *YamlDecoder) Decode(data []byte) (any, error) {
	var result any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "decode yaml failed")
	}
	return result, nil
}

// ParseScalar 按 YAML 规则解析单个标量，用于环境变量覆盖
func ParseScalar(value string) any {
	var result any
	if err := yaml.Unmarshal([]byte(value), &result); err != nil {
		return value
	}
	switch result.(type) {
	case map[string]any, []any, nil:
		return value
	}
	return result
}
