package logger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hatlonely/nosqlx/log/writer"
	"github.com/hatlonely/nosqlx/ref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, options SLogOptions) (*SLog, *writer.BufferWriter) {
	t.Helper()
	buf := writer.NewBufferWriter()
	l, err := NewSLogWithWriter(&options, buf)
	require.NoError(t, err)
	return l, buf
}

func TestNewSLogWithOptions(t *testing.T) {
	tests := []struct {
		name    string
		options *SLogOptions
		wantErr bool
	}{
		{name: "nil options", options: nil},
		{name: "default", options: &SLogOptions{Level: "info"}},
		{name: "json stderr", options: &SLogOptions{
			Level:  "debug",
			Format: "json",
			Output: ref.TypeOptions{Type: "ConsoleWriter", Options: &writer.ConsoleWriterOptions{Target: "stderr"}},
		}},
		{name: "invalid level", options: &SLogOptions{Level: "invalid"}, wantErr: true},
		{name: "invalid format", options: &SLogOptions{Format: "xml"}, wantErr: true},
		{name: "unknown writer", options: &SLogOptions{Output: ref.TypeOptions{Type: "Nowhere"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSLogWithOptions(tt.options)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestSLogOutput(t *testing.T) {
	l, buf := newBufferLogger(t, SLogOptions{Level: "info", Format: "json", Fields: map[string]any{"app": "nosqlx"}})

	l.Debug("hidden")
	l.Info("visible", "key", "value")
	l.With("component", "odm").WarnContext(context.Background(), "with fields")
	l.WithGroup("store").Error("grouped", "op", "insert")

	lines := buf.Lines()
	require.Len(t, lines, 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "nosqlx", entry["app"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "odm", entry["component"])
	assert.Equal(t, "WARN", entry["level"])

	entry = map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &entry))
	assert.Equal(t, map[string]any{"op": "insert"}, entry["store"])
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Error("nothing")
	assert.NoError(t, l.Close())

	obj, err := ref.New(Namespace, "Nop", nil)
	require.NoError(t, err)
	assert.Implements(t, (*Logger)(nil), obj)
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "", "INFO"} {
		_, err := parseLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLevel("fatal")
	assert.Error(t, err)
}
