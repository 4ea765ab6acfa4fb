package chains

import (
	"testing"

	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIdempotent(t *testing.T) {
	registry := NewRegistry()

	pool1 := NewPool(1337, []string{"http://a"})
	pool2 := NewPool(1337, []string{"http://b"})

	err := registry.Register(pool1)
	assert.NoError(t, err, "First registration should succeed")

	err = registry.Register(pool2)
	assert.NoError(t, err, "Second registration should succeed (idempotent)")

	retrieved, err := registry.Get(1337)
	assert.NoError(t, err)
	assert.Same(t, pool2, retrieved, "Second pool should have replaced the first")
}

func TestRegistryConcurrentRegistration(t *testing.T) {
	registry := NewRegistry()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			err := registry.Register(NewPool(5, []string{"http://node"}))
			assert.NoError(t, err, "Concurrent registration should not fail")
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.True(t, registry.IsSupported(5))
}

func TestRegistryRejectsNilPool(t *testing.T) {
	registry := NewRegistry()
	assert.Error(t, registry.Register(nil))
}

func TestRegistryGetUnknownChain(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get(99)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "99")
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewPool(10, []string{"http://node"})))

	assert.True(t, registry.IsSupported(10))

	registry.Unregister(10)
	assert.False(t, registry.IsSupported(10))
}

func TestDefaultRegistryHoldsOfficialPools(t *testing.T) {
	registry := NewDefaultRegistry()

	supported := registry.GetSupportedChains()
	assert.Len(t, supported, len(constants.OfficialRPCEndpoints))
	assert.Equal(t, []int64{constants.ChainIDMainnet, constants.ChainIDLocalhost, constants.ChainIDSepolia}, supported)

	pool, err := registry.Get(constants.ChainIDLocalhost)
	require.NoError(t, err)
	assert.Equal(t, constants.OfficialRPCEndpoints[constants.ChainIDLocalhost], pool.Endpoints())
}

func TestInitGlobalRegistry(t *testing.T) {
	first := InitGlobalRegistry()
	second := InitGlobalRegistry()
	assert.Same(t, first, second)
	assert.True(t, first.IsSupported(constants.ChainIDLocalhost))
}

func TestPoolPreferredIndex(t *testing.T) {
	pool := NewPool(1, []string{"a", "b", "c"})
	assert.Equal(t, 0, pool.Preferred())

	pool.SetPreferred(2)
	assert.Equal(t, 2, pool.Preferred())

	pool.SetPreferred(7)
	assert.Equal(t, 2, pool.Preferred(), "out-of-range index is ignored")

	pool.SetEndpoints([]string{"d", "e"})
	assert.Equal(t, 0, pool.Preferred(), "new endpoint list resets the preferred index")
	assert.Equal(t, []string{"d", "e"}, pool.Endpoints())
}

func TestRegistryResetPreferred(t *testing.T) {
	registry := NewRegistry()
	pool := NewPool(1, []string{"a", "b"})
	require.NoError(t, registry.Register(pool))
	pool.SetPreferred(1)

	registry.ResetPreferred()
	assert.Equal(t, 0, pool.Preferred())
}
