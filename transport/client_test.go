package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	config1 := Config{Transport: TransportTelnet, Target: "192.0.2.1", Username: "root", Password: "secret"}
	config2 := Config{Transport: TransportSSH, Target: "192.0.2.1", Username: "root", Password: "secret"}
	config3 := Config{Transport: TransportTelnet, Target: "192.0.2.2", Username: "root", Password: "secret"}
	config4 := Config{Transport: TransportTelnet, Target: "192.0.2.1", Username: "root", Password: "secret", Connection: "mgmt"}

	key1a := cacheKey(config1)
	key1b := cacheKey(config1)
	assert.Equal(t, key1a, key1b, "same config should produce same key")

	keys := map[string]bool{key1a: true}
	for _, cfg := range []Config{config2, config3, config4} {
		key := cacheKey(cfg)
		assert.False(t, keys[key], "config %+v should have a distinct key", cfg)
		keys[key] = true
	}
	assert.Len(t, key1a, 64)
}

func TestGet_Caching(t *testing.T) {
	CloseAll()
	defer CloseAll()

	cfg := Config{Transport: TransportTelnet, Target: "192.0.2.1"}
	client1 := Get(cfg)
	require.NotNil(t, client1)
	assert.Same(t, client1, Get(cfg))

	other := Get(Config{Transport: TransportSSH, Target: "192.0.2.1"})
	assert.NotSame(t, client1, other)
}

func TestGet_TransportKinds(t *testing.T) {
	CloseAll()
	defer CloseAll()

	assert.IsType(t, &TelnetClient{}, Get(Config{Transport: TransportTelnet, Target: "a"}))
	assert.IsType(t, &SSHClient{}, Get(Config{Transport: TransportSSH, Target: "a"}))
	assert.IsType(t, &LocalClient{}, Get(Config{Transport: TransportLocal}))
	assert.IsType(t, &TelnetClient{}, Get(Config{Target: "b"}))
}

func TestCloseAll(t *testing.T) {
	CloseAll()

	local := Get(Config{Transport: TransportLocal, Node: "n1"})
	require.NoError(t, local.Connect())
	require.True(t, local.IsConnected())

	CloseAll()
	assert.False(t, local.IsConnected())

	clientCacheMu.Lock()
	size := len(clientCache)
	clientCacheMu.Unlock()
	assert.Zero(t, size)
}

func TestExpectTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Expect{}.timeout(0))
	assert.Equal(t, 5*time.Second, Expect{}.timeout(5*time.Second))
	assert.Equal(t, time.Second, Expect{Timeout: time.Second}.timeout(5*time.Second))
	assert.Equal(t, time.Duration(-1), Expect{Timeout: -1}.timeout(5*time.Second))
}

func TestDefaultLoginSequence(t *testing.T) {
	assert.Empty(t, defaultLoginSequence(Config{}))

	seq := defaultLoginSequence(Config{Username: "root", Password: "pw"})
	assert.Equal(t, []AuthPrompt{
		{WaitFor: PromptLogin, SendCmd: "root\n"},
		{WaitFor: PromptPassword, SendCmd: "pw\n"},
	}, seq)

	custom := []AuthPrompt{{WaitFor: "Username:", SendCmd: "admin\n"}}
	assert.Equal(t, custom, defaultLoginSequence(Config{Username: "root", LoginSequence: custom}))
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "192.0.2.1:23", hostPort("192.0.2.1", 0, TelnetPort))
	assert.Equal(t, "192.0.2.1:2222", hostPort("192.0.2.1", 2222, SSHPort))
	assert.Equal(t, "[2001:db8::1]:22", hostPort("2001:db8::1", 0, SSHPort))
}
