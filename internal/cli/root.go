package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/carlosrabelo/topovlan/internal/config"
	"github.com/carlosrabelo/topovlan/pkg/logger"
	"github.com/carlosrabelo/topovlan/transport"
	"github.com/carlosrabelo/topovlan/vlan"
)

const defaultConfigName = "topology.yaml"

// NodeFactory opens an execution handle for a configured node. The returned
// func releases it.
type NodeFactory func(nc *config.NodeConfig) (vlan.Node, func(), error)

// Options customise the command tree
type Options struct {
	Version     string
	NodeFactory NodeFactory
	Out         io.Writer
}

type app struct {
	v       *viper.Viper
	version string
	factory NodeFactory
	log     *logger.Logger
}

// Execute runs the CLI with process arguments
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(Options{Version: version}).ExecuteContext(ctx)
}

// NewRootCommand builds the topovlan command tree
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{
		v:       viper.New(),
		version: opts.Version,
		factory: opts.NodeFactory,
	}
	if a.factory == nil {
		a.factory = openNode
	}

	root := &cobra.Command{
		Use:   "topovlan",
		Short: "Prepare VLAN devices on network test nodes",
		Long: `topovlan runs the package, kernel module and VLAN device commands
used by network topology tests against nodes listed in a YAML topology file.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initLogging,
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
		root.SetErr(opts.Out)
	}

	flags := root.PersistentFlags()
	flags.String("config", defaultConfigName, "topology YAML file")
	flags.StringP("node", "n", "", "node name from the topology file")
	flags.String("shell", "", "shell channel on the node (default: node setting)")
	flags.String("connection", "", "connection name on the node (default: first connection)")
	flags.Duration("timeout", 0, "command timeout, 0 uses the node setting, negative waits forever")
	flags.StringSlice("match", nil, "completion patterns overriding the shell prompt")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text or json)")
	flags.String("log-file", "", "also write logs to this rotated file")

	a.v.SetEnvPrefix("TOPOVLAN")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.refreshCommand(),
		a.installCommand(),
		a.loadModuleCommand(),
		a.enableForwardCommand(),
		a.addCommand(),
		a.removeCommand(),
		a.upCommand(),
		a.addrCommand(),
		a.setupCommand(),
		a.applyCommand(),
		a.nodesCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) initLogging(_ *cobra.Command, _ []string) error {
	if err := logger.Init(logger.Config{
		Level:      a.v.GetString("log-level"),
		Format:     a.v.GetString("log-format"),
		File:       a.v.GetString("log-file"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}); err != nil {
		return err
	}
	a.log = logger.NewLogger("cli")
	return nil
}

// configPath resolves --config, searching the usual locations when left at its default
func (a *app) configPath() (string, error) {
	path := a.v.GetString("config")
	if path != defaultConfigName {
		return path, nil
	}
	candidates := []string{filepath.Join(".", defaultConfigName)}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "topovlan", defaultConfigName))
	}
	candidates = append(candidates, filepath.Join("/etc/topovlan", defaultConfigName))
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			a.log.Debugf("configuration file found at %s", c)
			return c, nil
		}
	}
	return "", fmt.Errorf("no %s found in ./, ~/.config/topovlan/ or /etc/topovlan/", defaultConfigName)
}

func (a *app) loadConfig() (*config.Config, error) {
	path, err := a.configPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// withNode loads the selected node, opens it and runs fn with the call options
func (a *app) withNode(cmd *cobra.Command, fn func(ctx context.Context, node vlan.Node, nc *config.NodeConfig, opts []vlan.Option) error) error {
	name := a.v.GetString("node")
	if name == "" {
		return fmt.Errorf("the --node flag is required")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	nc, err := cfg.Node(name)
	if err != nil {
		return err
	}
	node, release, err := a.factory(nc)
	if err != nil {
		return err
	}
	defer release()

	return fn(cmd.Context(), node, nc, a.callOptions(nc))
}

func (a *app) callOptions(nc *config.NodeConfig) []vlan.Option {
	shell := a.v.GetString("shell")
	if shell == "" {
		shell = nc.Shell
	}
	opts := []vlan.Option{vlan.WithShell(shell)}
	if conn := a.v.GetString("connection"); conn != "" {
		opts = append(opts, vlan.WithConnection(conn))
	}
	timeout := a.v.GetDuration("timeout")
	if timeout == 0 {
		timeout = nc.TimeoutDuration()
	}
	if timeout != 0 {
		opts = append(opts, vlan.WithTimeout(timeout))
	}
	if matches := a.v.GetStringSlice("match"); len(matches) > 0 {
		opts = append(opts, vlan.WithMatches(matches...))
	}
	return opts
}

func openNode(nc *config.NodeConfig) (vlan.Node, func(), error) {
	node, err := transport.NewNodeFromConfigs(nc.Name, nc.TransportConfigs())
	if err != nil {
		return nil, nil, err
	}
	return node, func() {
		node.Close()
		transport.CloseAll()
	}, nil
}
