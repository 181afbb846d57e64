package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetClientConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("timeout", 3)
	viper.Set("transport-endpoints", "a:1, b:2,")
	viper.Set("transport-read-buffer", 4)
	viper.Set("transport-tcp-linger", -1)

	conf := GetClientConfig()
	assert.Equal(t, 3, conf.TimeoutSecond)
	assert.Equal(t, []string{"a:1", "b:2"}, conf.Transport.Endpoints)
	assert.Equal(t, 4096, conf.Transport.ReadBufferSize)
	assert.Equal(t, -1, conf.Transport.TCPLingerSec)
}

func TestFactories(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, name := range []string{"json", "gob", "binary"} {
		viper.Set("serializer", name)
		s, err := GetSerializer()
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
	viper.Set("serializer", "xml")
	_, err := GetSerializer()
	assert.Error(t, err)

	for _, name := range []string{"tcp", "unix", "http"} {
		viper.Set("transport", name)
		c, err := GetTransport()
		require.NoError(t, err, name)
		assert.NotNil(t, c)
		s, err := GetServerTransport()
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
	viper.Set("transport", "quic")
	_, err = GetTransport()
	assert.Error(t, err)
}
