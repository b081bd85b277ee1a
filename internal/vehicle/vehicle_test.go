package vehicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg, err := Registry("nissan_370z")
	require.NoError(t, err)

	_, ok := reg.Lookup(0x421)
	assert.True(t, ok)

	topics := reg.Topics("canusb", "can")
	assert.Contains(t, topics, "canusb.can.002")
	assert.Contains(t, topics, "canusb.can.60d")
	assert.Len(t, topics, reg.Len())
}

func TestRegistryUnknown(t *testing.T) {
	_, err := Registry("nissan_350z")
	assert.ErrorContains(t, err, "unknown vehicle")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"nissan_370z"}, Names())
}
