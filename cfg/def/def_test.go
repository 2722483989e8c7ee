package def

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolOptions struct {
	MaxSize int `def:"100"`
	MinSize int
}

type testOptions struct {
	Host     string        `def:"localhost"`
	Port     int           `def:"27017"`
	Ratio    float64       `def:"0.5"`
	Enabled  bool          `def:"true"`
	Hosts    []string      `def:"a, b"`
	Ports    []int         `def:"1,2"`
	Timeout  time.Duration `def:"30s"`
	Since    time.Time     `def:"2024-01-02T03:04:05Z"`
	Size     uint32        `def:"0x10"`
	Name     *string       `def:"demo"`
	Pool     poolOptions
	PoolPtr  *poolOptions
	NoDef    string
	internal string `def:"x"`
}

func TestSetDefaults(t *testing.T) {
	t.Run("fill zero values", func(t *testing.T) {
		options := &testOptions{PoolPtr: &poolOptions{}}
		require.NoError(t, SetDefaults(options))

		assert.Equal(t, "localhost", options.Host)
		assert.Equal(t, 27017, options.Port)
		assert.Equal(t, 0.5, options.Ratio)
		assert.True(t, options.Enabled)
		assert.Equal(t, []string{"a", "b"}, options.Hosts)
		assert.Equal(t, []int{1, 2}, options.Ports)
		assert.Equal(t, 30*time.Second, options.Timeout)
		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), options.Since)
		assert.Equal(t, uint32(16), options.Size)
		require.NotNil(t, options.Name)
		assert.Equal(t, "demo", *options.Name)
		assert.Equal(t, 100, options.Pool.MaxSize)
		assert.Equal(t, 100, options.PoolPtr.MaxSize)
		assert.Equal(t, "", options.NoDef)
		assert.Equal(t, "", options.internal)
	})

	t.Run("keep non zero values", func(t *testing.T) {
		options := &testOptions{Host: "mongo", Port: 1, Timeout: time.Second}
		require.NoError(t, SetDefaults(options))
		assert.Equal(t, "mongo", options.Host)
		assert.Equal(t, 1, options.Port)
		assert.Equal(t, time.Second, options.Timeout)
		assert.Nil(t, options.PoolPtr)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		assert.Error(t, SetDefaults(nil))
		assert.Error(t, SetDefaults(testOptions{}))
		var nilOptions *testOptions
		assert.Error(t, SetDefaults(nilOptions))
	})

	t.Run("invalid default", func(t *testing.T) {
		type bad struct {
			Port int `def:"port"`
		}
		assert.Error(t, SetDefaults(&bad{}))
	})
}
