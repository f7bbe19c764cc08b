package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/carlosrabelo/topovlan/pkg/logger"
	"github.com/carlosrabelo/topovlan/vlan"
)

const DefaultConnection = "default"

// Node is a vlan.Node backed by one or more named client sessions.
// Commands on one node are serialized.
type Node struct {
	name        string
	defaultConn string
	clients     map[string]Client
	prepared    map[string]bool
	mu          sync.Mutex
	log         *logger.Logger
}

// NewNode wraps clients keyed by connection name. defaultConn must be one of them.
func NewNode(name, defaultConn string, clients map[string]Client) (*Node, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("node %s has no connections", name)
	}
	if defaultConn == "" {
		defaultConn = DefaultConnection
	}
	if _, ok := clients[defaultConn]; !ok {
		return nil, fmt.Errorf("node %s has no connection named %s", name, defaultConn)
	}
	owned := make(map[string]Client, len(clients))
	for k, v := range clients {
		owned[k] = v
	}
	return &Node{
		name:        name,
		defaultConn: defaultConn,
		clients:     owned,
		prepared:    make(map[string]bool),
		log:         logger.NewLogger("node"),
	}, nil
}

// NewNodeFromConfigs builds a node whose clients come from the shared cache.
// The first config is the default connection.
func NewNodeFromConfigs(name string, cfgs []Config) (*Node, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("node %s has no connections", name)
	}
	clients := make(map[string]Client, len(cfgs))
	for _, cfg := range cfgs {
		conn := cfg.Connection
		if conn == "" {
			conn = DefaultConnection
		}
		if _, dup := clients[conn]; dup {
			return nil, fmt.Errorf("node %s: duplicate connection %s", name, conn)
		}
		clients[conn] = Get(cfg)
	}
	defaultConn := cfgs[0].Connection
	if defaultConn == "" {
		defaultConn = DefaultConnection
	}
	return NewNode(name, defaultConn, clients)
}

// Name returns the node name
func (n *Node) Name() string {
	return n.name
}

// Connections returns the connection names, sorted
func (n *Node) Connections() []string {
	names := make([]string, 0, len(n.clients))
	for name := range n.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shell implements vlan.Node
func (n *Node) Shell(name string) (vlan.Shell, error) {
	profile, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return &channel{node: n, profile: profile}, nil
}

// Close disconnects every session of the node
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for conn, client := range n.clients {
		client.Disconnect()
		n.forget(conn)
	}
}

func (n *Node) client(conn string) (Client, string, error) {
	if conn == "" {
		conn = n.defaultConn
	}
	client, ok := n.clients[conn]
	if !ok {
		return nil, conn, fmt.Errorf("node %s has no connection named %s", n.name, conn)
	}
	return client, conn, nil
}

func (n *Node) forget(conn string) {
	prefix := conn + "/"
	for key := range n.prepared {
		if strings.HasPrefix(key, prefix) {
			delete(n.prepared, key)
		}
	}
}

// drop disconnects a session whose output may no longer line up with the
// commands sent, so the next Send starts on a fresh shell
func (n *Node) drop(conn string, client Client) {
	client.Disconnect()
	n.forget(conn)
}

type channel struct {
	node    *Node
	profile Profile
}

// Send implements vlan.Shell
func (c *channel) Send(ctx context.Context, cmd string, opts vlan.Options) (string, error) {
	n := c.node
	n.mu.Lock()
	defer n.mu.Unlock()

	client, conn, err := n.client(opts.Connection)
	if err != nil {
		return "", err
	}
	if !client.IsConnected() {
		n.forget(conn)
		if err := client.Connect(); err != nil {
			return "", fmt.Errorf("node %s connection %s: %w", n.name, conn, err)
		}
	}

	key := conn + "/" + c.profile.Name
	if !n.prepared[key] {
		setup := Expect{Patterns: c.profile.Prompts, Newline: true, Binary: c.profile.Binary}
		for _, line := range c.profile.Setup {
			if _, err := client.Execute(ctx, line, setup); err != nil {
				n.drop(conn, client)
				return "", fmt.Errorf("node %s: failed to prepare %s shell: %w", n.name, c.profile.Name, err)
			}
		}
		n.prepared[key] = true
	}

	exp := Expect{
		Patterns: opts.Matches,
		Newline:  opts.Newline,
		Timeout:  opts.Timeout,
		Binary:   c.profile.Binary,
	}
	if len(exp.Patterns) == 0 {
		exp.Patterns = c.profile.Prompts
	}

	entry := n.log.WithFields(logger.Fields{
		"node":       n.name,
		"connection": conn,
		"shell":      c.profile.Name,
	})
	entry.Debugf("sending: %s", cmd)
	resp, err := client.Execute(ctx, cmd, exp)
	if err != nil {
		entry.WithError(err).Debug("command failed, dropping session")
		n.drop(conn, client)
		return "", err
	}
	entry.Tracef("response: %s", resp)
	return resp, nil
}
