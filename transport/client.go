package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

const (
	DefaultTimeout = 120 * time.Second // apt-get runs are slow on fresh nodes
	BufferSize     = 4096

	TransportTelnet = "telnet"
	TransportSSH    = "ssh"
	TransportLocal  = "local"
)

// Client abstracts a session to a node
type Client interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	Execute(ctx context.Context, cmd string, exp Expect) (string, error)
}

// Expect describes how a command is sent and when its output is complete
type Expect struct {
	Patterns []string      // any of these ends the read
	Newline  bool          // append "\n" to the command
	Timeout  time.Duration // zero uses the client default, negative never expires
	Binary   string        // shell binary for clients that spawn one per command
}

func (e Expect) timeout(fallback time.Duration) time.Duration {
	if e.Timeout != 0 {
		return e.Timeout
	}
	if fallback != 0 {
		return fallback
	}
	return DefaultTimeout
}

// AuthPrompt represents a prompt-response pair during login
type AuthPrompt struct {
	WaitFor string // prompt to wait for
	SendCmd string // text to send (empty means just wait)
}

// Config describes a single connection to a node
type Config struct {
	Node          string        `json:"node"`
	Connection    string        `json:"connection"`
	Transport     string        `json:"transport"`
	Target        string        `json:"target"`
	Port          int           `json:"port"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	KeyFile       string        `json:"key_file"`
	KnownHosts    string        `json:"known_hosts"`
	LoginSequence []AuthPrompt  `json:"login_sequence"`
	Timeout       time.Duration `json:"timeout"`
}

var (
	clientCache   = make(map[string]Client)
	clientCacheMu sync.Mutex
)

func cacheKey(cfg Config) string {
	bytes, _ := json.Marshal(cfg)
	hash := sha256.Sum256(bytes)
	return hex.EncodeToString(hash[:])
}

// Get returns a cached client for the provided configuration or creates a new one
func Get(cfg Config) Client {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	key := cacheKey(cfg)
	if client, exists := clientCache[key]; exists {
		return client
	}
	client := newClient(cfg)
	clientCache[key] = client
	return client
}

// CloseAll releases every cached client session
func CloseAll() {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	for key, client := range clientCache {
		client.Disconnect()
		delete(clientCache, key)
	}
}

func newClient(cfg Config) Client {
	switch cfg.Transport {
	case TransportSSH:
		return NewSSHClient(cfg)
	case TransportLocal:
		return NewLocalClient(cfg)
	default:
		return NewTelnetClient(cfg)
	}
}
