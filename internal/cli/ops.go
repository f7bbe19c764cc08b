package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/topovlan/internal/config"
	"github.com/carlosrabelo/topovlan/vlan"
)

type nodeAction func(ctx context.Context, node vlan.Node, nc *config.NodeConfig, opts []vlan.Option) error

// run wraps an action so it reports success on stdout
func (a *app) run(done string, action nodeAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return a.withNode(cmd, func(ctx context.Context, node vlan.Node, nc *config.NodeConfig, opts []vlan.Option) error {
			if err := action(ctx, node, nc, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", nc.Name, done)
			return nil
		})
	}
}

func (a *app) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Drop and re-fetch the apt package lists",
		Args:  cobra.NoArgs,
		RunE: a.run("package index refreshed", func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
			return vlan.RefreshPackageIndex(ctx, node, opts...)
		}),
	}
}

func (a *app) installCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the vlan package",
		Args:  cobra.NoArgs,
		RunE: a.run("vlan package installed", func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
			return vlan.InstallVLANPackage(ctx, node, refresh, opts...)
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the package index first")
	return cmd
}

func (a *app) loadModuleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load-module",
		Short: "Load the 8021q kernel module",
		Args:  cobra.NoArgs,
		RunE: a.run("8021q loaded", func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
			return vlan.Load8021qModule(ctx, node, opts...)
		}),
	}
}

func (a *app) enableForwardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable-forward",
		Short: "Append net.ipv4.ip_forward=1 to " + vlan.SysctlConfigFile,
		Args:  cobra.NoArgs,
		RunE: a.run("IPv4 forwarding enabled", func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
			return vlan.EnableIPForward(ctx, node, opts...)
		}),
	}
}

func (a *app) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add IFACE VLAN",
		Short: "Create the VLAN device IFACE.VLAN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVLANID(args[1])
			if err != nil {
				return err
			}
			return a.run("added "+vlan.DeviceName(args[0], id), func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
				return vlan.AddVLAN(ctx, node, args[0], id, opts...)
			})(cmd, args)
		},
	}
}

func (a *app) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove IFACE VLAN",
		Short: "Delete the VLAN device IFACE.VLAN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVLANID(args[1])
			if err != nil {
				return err
			}
			return a.run("removed "+vlan.DeviceName(args[0], id), func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
				return vlan.RemoveVLAN(ctx, node, args[0], id, opts...)
			})(cmd, args)
		},
	}
}

func (a *app) upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up IFACE VLAN",
		Short: "Set the VLAN device IFACE.VLAN up",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVLANID(args[1])
			if err != nil {
				return err
			}
			return a.run(vlan.DeviceName(args[0], id)+" up", func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
				return vlan.SetVLANUp(ctx, node, args[0], id, opts...)
			})(cmd, args)
		},
	}
}

func (a *app) addrCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "addr ADDR IFACE VLAN",
		Short: "Assign ADDR (A.B.C.D/M) to IFACE.VLAN and bring it up",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVLANID(args[2])
			if err != nil {
				return err
			}
			done := fmt.Sprintf("%s assigned to %s", args[0], vlan.DeviceName(args[1], id))
			return a.run(done, func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
				return vlan.AddIPAddressVLAN(ctx, node, args[0], args[1], id, opts...)
			})(cmd, args)
		},
	}
}

func (a *app) setupCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Install vlan, load 8021q and enable IPv4 forwarding",
		Args:  cobra.NoArgs,
		RunE: a.run("ready for VLANs", func(ctx context.Context, node vlan.Node, _ *config.NodeConfig, opts []vlan.Option) error {
			if err := vlan.InstallVLANPackage(ctx, node, refresh, opts...); err != nil {
				return err
			}
			if err := vlan.Load8021qModule(ctx, node, opts...); err != nil {
				return err
			}
			return vlan.EnableIPForward(ctx, node, opts...)
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the package index first")
	return cmd
}

func (a *app) applyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Create and address every VLAN listed for the node",
		Args:  cobra.NoArgs,
		RunE: a.run("VLANs applied", func(ctx context.Context, node vlan.Node, nc *config.NodeConfig, opts []vlan.Option) error {
			for _, v := range nc.VLANs {
				if err := vlan.AddVLAN(ctx, node, v.Interface, v.ID, opts...); err != nil {
					return err
				}
				if v.Address != "" {
					if err := vlan.AddIPAddressVLAN(ctx, node, v.Address, v.Interface, v.ID, opts...); err != nil {
						return err
					}
					continue
				}
				if err := vlan.SetVLANUp(ctx, node, v.Interface, v.ID, opts...); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

func (a *app) nodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List nodes in the topology file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			for _, n := range cfg.Nodes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d vlans\n", n.Name, n.Transport, n.Target, len(n.VLANs))
			}
			return nil
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "topovlan %s\n", a.version)
		},
	}
}

func parseVLANID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: VLAN id %q must be a number", vlan.ErrInvalidArgument, s)
	}
	return id, nil
}
