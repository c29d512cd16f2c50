package hostinfo

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("localhost"))
	assert.True(t, isLocal("127.0.0.1"))
	assert.True(t, isLocal("."))
	assert.False(t, isLocal("some-remote-host.corp.local"))

	me, err := os.Hostname()
	require.NoError(t, err)
	assert.True(t, isLocal(me))
	assert.True(t, isLocal(strings.ToUpper(me)))
	assert.True(t, isLocal(shortName(me)+".corp.local"))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "host1", shortName("host1.corp.local"))
	assert.Equal(t, "host1", shortName("host1"))
}
