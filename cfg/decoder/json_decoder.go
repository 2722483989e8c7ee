package decoder

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// JsonDecoder JSON格式解码器
type JsonDecoder struct{}

func NewJsonDecoder() *JsonDecoder {
	return &JsonDecoder{}
}

func (d *JsonDecoder) Decode(data []byte) (any, error) {
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "decode json failed")
	}
	return result, nil
}
