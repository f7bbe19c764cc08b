package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/topovlan/internal/config"
	"github.com/carlosrabelo/topovlan/vlan"
)

const topology = `
transport: local
nodes:
  - name: hs1
    vlans:
      - interface: eth0
        id: 100
        address: 10.0.0.1/24
      - interface: eth1
        id: 200
  - name: hs2
    shell: sh
    timeout: 7s
`

type recorder struct {
	shells   []string
	commands []string
	released bool
}

func (r *recorder) node() vlan.Node {
	return vlan.NodeFunc(func(_ context.Context, cmd, shell string) (string, error) {
		r.shells = append(r.shells, shell)
		r.commands = append(r.commands, cmd)
		switch cmd {
		case "apt-get update":
			return "Reading package lists... Done", nil
		case "apt-get install vlan":
			return "Setting up vlan (2.0.5) ...", nil
		case "vconfig add eth0 100":
			return "Added VLAN with VID == 100 to IF -:eth0:-", nil
		case "vconfig add eth1 200":
			return "Added VLAN with VID == 200 to IF -:eth1:-", nil
		case "vconfig rem eth0.100":
			return "Removed VLAN -:eth0.100:-", nil
		}
		return "", nil
	})
}

func runCLI(t *testing.T, r *recorder, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(topology), 0600))

	var out bytes.Buffer
	root := NewRootCommand(Options{
		Version: "test",
		Out:     &out,
		NodeFactory: func(nc *config.NodeConfig) (vlan.Node, func(), error) {
			return r.node(), func() { r.released = true }, nil
		},
	})
	root.SetArgs(append([]string{"--config", path}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestOperationCommands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		commands []string
	}{
		{name: "refresh", args: []string{"refresh"}, commands: []string{"rm /var/lib/apt/lists/* -vf", "apt-get update"}},
		{name: "install", args: []string{"install"}, commands: []string{"apt-get install vlan"}},
		{name: "install with refresh", args: []string{"install", "--refresh"}, commands: []string{"rm /var/lib/apt/lists/* -vf", "apt-get update", "apt-get install vlan"}},
		{name: "load module", args: []string{"load-module"}, commands: []string{"modprobe 8021q"}},
		{name: "enable forward", args: []string{"enable-forward"}, commands: []string{`echo "net.ipv4.ip_forward=1" >> /etc/sysctl.conf`}},
		{name: "add", args: []string{"add", "eth0", "100"}, commands: []string{"vconfig add eth0 100"}},
		{name: "remove", args: []string{"remove", "eth0", "100"}, commands: []string{"vconfig rem eth0.100"}},
		{name: "up", args: []string{"up", "eth0", "100"}, commands: []string{"ip link set up eth0.100"}},
		{name: "addr", args: []string{"addr", "10.0.0.1/24", "eth0", "100"}, commands: []string{"ip addr add 10.0.0.1/24 dev eth0.100", "ip link set up eth0.100"}},
		{name: "setup", args: []string{"setup"}, commands: []string{"apt-get install vlan", "modprobe 8021q", `echo "net.ipv4.ip_forward=1" >> /etc/sysctl.conf`}},
		{name: "apply", args: []string{"apply"}, commands: []string{
			"vconfig add eth0 100",
			"ip addr add 10.0.0.1/24 dev eth0.100",
			"ip link set up eth0.100",
			"vconfig add eth1 200",
			"ip link set up eth1.200",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			out, err := runCLI(t, r, append([]string{"--node", "hs1"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.commands, r.commands)
			assert.True(t, r.released)
			assert.Contains(t, out, "hs1: ")
		})
	}
}

func TestShellSelection(t *testing.T) {
	r := &recorder{}
	_, err := runCLI(t, r, "--node", "hs2", "load-module")
	require.NoError(t, err)
	assert.Equal(t, []string{"sh"}, r.shells)

	r = &recorder{}
	_, err = runCLI(t, r, "--node", "hs1", "--shell", "sh", "load-module")
	require.NoError(t, err)
	assert.Equal(t, []string{"sh"}, r.shells)

	r = &recorder{}
	_, err = runCLI(t, r, "--node", "hs1", "load-module")
	require.NoError(t, err)
	assert.Equal(t, []string{"bash"}, r.shells)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing node flag", args: []string{"load-module"}},
		{name: "unknown node", args: []string{"--node", "nope", "load-module"}},
		{name: "bad vlan id", args: []string{"--node", "hs1", "add", "eth0", "ten"}},
		{name: "zero vlan id", args: []string{"--node", "hs1", "add", "eth0", "0"}},
		{name: "verification", args: []string{"--node", "hs1", "remove", "eth0", "7"}},
		{name: "wrong arg count", args: []string{"--node", "hs1", "add", "eth0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, &recorder{}, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestVerificationErrorSurfaces(t *testing.T) {
	_, err := runCLI(t, &recorder{}, "--node", "hs1", "remove", "eth0", "7")
	assert.ErrorIs(t, err, vlan.ErrVerification)
}

func TestNodesAndVersion(t *testing.T) {
	out, err := runCLI(t, &recorder{}, "nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "hs1\tlocal")
	assert.Contains(t, out, "hs2\tlocal")

	out, err = runCLI(t, &recorder{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "topovlan test\n", out)
}

func captureOptions(t *testing.T, args ...string) vlan.Options {
	t.Helper()
	var captured vlan.Options
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(topology), 0600))

	root := NewRootCommand(Options{
		Out: &bytes.Buffer{},
		NodeFactory: func(nc *config.NodeConfig) (vlan.Node, func(), error) {
			return optionsNode{capture: &captured}, func() {}, nil
		},
	})
	root.SetArgs(append([]string{"--config", path}, args...))
	require.NoError(t, root.Execute())
	return captured
}

func TestCallOptions(t *testing.T) {
	captured := captureOptions(t, "--node", "hs1", "--connection", "mgmt", "--timeout", "5s", "--match", "# ,$ ", "load-module")
	assert.Equal(t, "bash", captured.Shell)
	assert.Equal(t, "mgmt", captured.Connection)
	assert.Equal(t, "5s", captured.Timeout.String())
	assert.Equal(t, []string{"# ", "$ "}, captured.Matches)
	assert.True(t, captured.Newline)
}

func TestCallOptionsNodeTimeout(t *testing.T) {
	captured := captureOptions(t, "--node", "hs2", "load-module")
	assert.Equal(t, "sh", captured.Shell)
	assert.Equal(t, "7s", captured.Timeout.String())
	assert.Empty(t, captured.Connection)

	captured = captureOptions(t, "--node", "hs2", "--timeout", "2s", "load-module")
	assert.Equal(t, "2s", captured.Timeout.String())

	captured = captureOptions(t, "--node", "hs1", "load-module")
	assert.Zero(t, captured.Timeout)
}

type optionsNode struct {
	capture *vlan.Options
}

func (n optionsNode) Shell(string) (vlan.Shell, error) {
	return n, nil
}

func (n optionsNode) Send(_ context.Context, _ string, opts vlan.Options) (string, error) {
	*n.capture = opts
	return "", nil
}
