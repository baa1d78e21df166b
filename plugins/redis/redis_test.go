package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetClientBeforeSetupPanics(t *testing.T) {
	p := New()
	assert.Panics(t, func() { p.GetClient() })
}

func TestNameIsCache(t *testing.T) {
	p := New()
	assert.Equal(t, "cache", p.Name())
}

// Setup against a live Redis server needs a running redis instance and
// is not exercised here; the plugin registry contract only requires
// Setup to fail loudly on a bad connection, which Setup's initial Ping
// call (mirroring the teacher's own Connect()) already guarantees.
