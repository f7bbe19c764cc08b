package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carlosrabelo/topovlan/transport"
	"github.com/carlosrabelo/topovlan/vlan"
)

// LoginPrompt is one step of a console login
type LoginPrompt struct {
	WaitFor string `yaml:"wait_for"`
	Send    string `yaml:"send"`
}

// VLANConfig is a VLAN device to create on a node
type VLANConfig struct {
	Interface string `yaml:"interface"`
	ID        int    `yaml:"id"`
	Address   string `yaml:"address"`
}

// NodeConfig defines how to reach a single node. Empty fields inherit the global value.
type NodeConfig struct {
	Name          string        `yaml:"name"`
	Target        string        `yaml:"target"`
	Port          int           `yaml:"port"`
	Transport     string        `yaml:"transport"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	KeyFile       string        `yaml:"key_file"`
	KnownHosts    string        `yaml:"known_hosts"`
	Shell         string        `yaml:"shell"`
	Timeout       string        `yaml:"timeout"`
	Connections   []string      `yaml:"connections"`
	LoginSequence []LoginPrompt `yaml:"login_sequence"`
	VLANs         []VLANConfig  `yaml:"vlans"`

	timeout time.Duration
}

// Config defines the global configuration
type Config struct {
	Transport  string       `yaml:"transport"`
	Username   string       `yaml:"username"`
	Password   string       `yaml:"password"`
	KeyFile    string       `yaml:"key_file"`
	KnownHosts string       `yaml:"known_hosts"`
	Shell      string       `yaml:"shell"`
	Timeout    string       `yaml:"timeout"`
	Nodes      []NodeConfig `yaml:"nodes"`
}

// Load reads and validates a topology file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a topology document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = transport.TransportSSH
	}
	if err := validateTransport(c.Transport, "global transport"); err != nil {
		return err
	}
	if c.Shell == "" {
		c.Shell = vlan.DefaultShell
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("global timeout %q is not a valid duration", c.Timeout)
		}
	}

	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}

	seen := make(map[string]bool, len(c.Nodes))
	for i := range c.Nodes {
		n := &c.Nodes[i]
		if n.Name == "" {
			return fmt.Errorf("node #%d: name is required", i+1)
		}
		if seen[n.Name] {
			return fmt.Errorf("node %s is defined more than once", n.Name)
		}
		seen[n.Name] = true
		if err := c.inherit(n); err != nil {
			return err
		}
		if err := n.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) inherit(n *NodeConfig) error {
	n.Transport = strings.ToLower(strings.TrimSpace(n.Transport))
	if n.Transport == "" {
		n.Transport = c.Transport
	}
	if n.Username == "" {
		n.Username = c.Username
	}
	if n.Password == "" {
		n.Password = c.Password
	}
	if n.KeyFile == "" {
		n.KeyFile = c.KeyFile
	}
	if n.KnownHosts == "" {
		n.KnownHosts = c.KnownHosts
	}
	if n.Shell == "" {
		n.Shell = c.Shell
	}
	if n.Timeout == "" {
		n.Timeout = c.Timeout
	}
	if n.Timeout != "" {
		d, err := time.ParseDuration(n.Timeout)
		if err != nil {
			return fmt.Errorf("node %s: timeout %q is not a valid duration", n.Name, n.Timeout)
		}
		n.timeout = d
	}
	if len(n.Connections) == 0 {
		n.Connections = []string{transport.DefaultConnection}
	}

	var err error
	if n.KeyFile, err = expandHome(n.KeyFile); err != nil {
		return err
	}
	if n.KnownHosts, err = expandHome(n.KnownHosts); err != nil {
		return err
	}
	return nil
}

func (n *NodeConfig) validate() error {
	if err := validateTransport(n.Transport, "node "+n.Name); err != nil {
		return err
	}
	if n.Transport != transport.TransportLocal && n.Target == "" {
		return fmt.Errorf("node %s: target is required for %s transport", n.Name, n.Transport)
	}
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("node %s: port %d out of range", n.Name, n.Port)
	}
	if _, err := transport.Lookup(n.Shell); err != nil {
		return fmt.Errorf("node %s: %w (available: %s)", n.Name, err, strings.Join(transport.Available(), ", "))
	}

	conns := make(map[string]bool, len(n.Connections))
	for _, conn := range n.Connections {
		if conn == "" {
			return fmt.Errorf("node %s: connection names must not be empty", n.Name)
		}
		if conns[conn] {
			return fmt.Errorf("node %s: duplicate connection %s", n.Name, conn)
		}
		conns[conn] = true
	}

	devices := make(map[string]bool, len(n.VLANs))
	for _, v := range n.VLANs {
		context := fmt.Sprintf("node %s vlan %s.%d", n.Name, v.Interface, v.ID)
		if v.Interface == "" {
			return fmt.Errorf("%s: interface is required", context)
		}
		if err := validateVLAN(v.ID, context); err != nil {
			return err
		}
		if v.Address != "" {
			if _, err := netip.ParsePrefix(v.Address); err != nil {
				return fmt.Errorf("%s: address %s must be in A.B.C.D/M form", context, v.Address)
			}
		}
		device := vlan.DeviceName(v.Interface, v.ID)
		if devices[device] {
			return fmt.Errorf("%s: defined more than once", context)
		}
		devices[device] = true
	}
	return nil
}

// Node returns the node with the given name
func (c *Config) Node(name string) (*NodeConfig, error) {
	for i := range c.Nodes {
		if c.Nodes[i].Name == name {
			return &c.Nodes[i], nil
		}
	}
	return nil, fmt.Errorf("node %s not registered in the YAML configuration (known: %s)", name, strings.Join(c.NodeNames(), ", "))
}

// NodeNames lists node names in file order
func (c *Config) NodeNames() []string {
	names := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		names = append(names, n.Name)
	}
	return names
}

// TimeoutDuration returns the parsed command timeout, zero when unset
func (n *NodeConfig) TimeoutDuration() time.Duration {
	return n.timeout
}

// TransportConfigs returns one transport.Config per connection, default connection first
func (n *NodeConfig) TransportConfigs() []transport.Config {
	var login []transport.AuthPrompt
	for _, p := range n.LoginSequence {
		login = append(login, transport.AuthPrompt{WaitFor: p.WaitFor, SendCmd: p.Send})
	}
	cfgs := make([]transport.Config, 0, len(n.Connections))
	for _, conn := range n.Connections {
		cfgs = append(cfgs, transport.Config{
			Node:          n.Name,
			Connection:    conn,
			Transport:     n.Transport,
			Target:        n.Target,
			Port:          n.Port,
			Username:      n.Username,
			Password:      n.Password,
			KeyFile:       n.KeyFile,
			KnownHosts:    n.KnownHosts,
			LoginSequence: login,
			Timeout:       n.timeout,
		})
	}
	return cfgs
}

func validateTransport(name, context string) error {
	switch name {
	case transport.TransportTelnet, transport.TransportSSH, transport.TransportLocal:
		return nil
	default:
		return fmt.Errorf("%s: transport %s is invalid, must be 'telnet', 'ssh' or 'local'", context, name)
	}
}

func validateVLAN(id int, context string) error {
	if id < vlan.MinVLANID || id > vlan.MaxVLANID {
		return fmt.Errorf("invalid VLAN number in %s: %d must be between %d and %d", context, id, vlan.MinVLANID, vlan.MaxVLANID)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
