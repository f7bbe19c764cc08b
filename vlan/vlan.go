// Package vlan issues the shell commands that prepare a test node for VLAN
// traffic: package installation, 802.1Q module loading, VLAN device creation
// and removal, and address assignment.
//
// Every operation validates its arguments, sends one or two fixed commands
// through the caller's Node and, where the tool prints a stable marker, checks
// the response for it. Transport errors are returned unchanged.
package vlan

import (
	"context"
	"strings"
)

// RefreshPackageIndex drops the cached apt lists and fetches them again.
func RefreshPackageIndex(ctx context.Context, node Node, opts ...Option) error {
	o := newOptions(opts)
	sh, err := shell(node, o)
	if err != nil {
		return err
	}
	if _, err := sh.Send(ctx, CmdClearPackageLists, o); err != nil {
		return err
	}
	return sendAndVerify(ctx, sh, CmdUpdatePackages, MarkerRefreshDone, o)
}

// InstallVLANPackage installs the vlan package, refreshing the index first when asked.
func InstallVLANPackage(ctx context.Context, node Node, refresh bool, opts ...Option) error {
	if refresh {
		if err := RefreshPackageIndex(ctx, node, opts...); err != nil {
			return err
		}
	}
	o := newOptions(opts)
	sh, err := shell(node, o)
	if err != nil {
		return err
	}
	return sendAndVerify(ctx, sh, CmdInstallVLAN, MarkerVLANInstalled, o)
}

// Load8021qModule loads the 802.1Q kernel module.
func Load8021qModule(ctx context.Context, node Node, opts ...Option) error {
	return send(ctx, node, CmdLoad8021q, opts)
}

// EnableIPForward persists net.ipv4.ip_forward=1 in the sysctl file.
func EnableIPForward(ctx context.Context, node Node, opts ...Option) error {
	return send(ctx, node, EnableIPForwardCommand(), opts)
}

// AddVLAN creates the VLAN device iface.id.
func AddVLAN(ctx context.Context, node Node, iface string, id int, opts ...Option) error {
	if err := validateVLAN(iface, id); err != nil {
		return err
	}
	o := newOptions(opts)
	sh, err := shell(node, o)
	if err != nil {
		return err
	}
	return sendAndVerify(ctx, sh, AddVLANCommand(iface, id), AddVLANMarker(iface, id), o)
}

// RemoveVLAN deletes the VLAN device iface.id.
func RemoveVLAN(ctx context.Context, node Node, iface string, id int, opts ...Option) error {
	if err := validateVLAN(iface, id); err != nil {
		return err
	}
	o := newOptions(opts)
	sh, err := shell(node, o)
	if err != nil {
		return err
	}
	return sendAndVerify(ctx, sh, RemoveVLANCommand(iface, id), RemoveVLANMarker(iface, id), o)
}

// SetVLANUp brings the VLAN device link up.
func SetVLANUp(ctx context.Context, node Node, iface string, id int, opts ...Option) error {
	if err := validateVLAN(iface, id); err != nil {
		return err
	}
	return send(ctx, node, LinkUpCommand(iface, id), opts)
}

// AddIPAddressVLAN assigns addr (A.B.C.D/M) to iface.id and then brings it up.
// The address is left in place if bringing the link up fails.
func AddIPAddressVLAN(ctx context.Context, node Node, addr, iface string, id int, opts ...Option) error {
	if err := validateAddress(addr); err != nil {
		return err
	}
	if err := validateVLAN(iface, id); err != nil {
		return err
	}
	if err := send(ctx, node, AddAddressCommand(addr, iface, id), opts); err != nil {
		return err
	}
	return SetVLANUp(ctx, node, iface, id, opts...)
}

func shell(node Node, o Options) (Shell, error) {
	if node == nil {
		return nil, invalidf("node is required")
	}
	return node.Shell(o.Shell)
}

func send(ctx context.Context, node Node, cmd string, opts []Option) error {
	o := newOptions(opts)
	sh, err := shell(node, o)
	if err != nil {
		return err
	}
	_, err = sh.Send(ctx, cmd, o)
	return err
}

func sendAndVerify(ctx context.Context, sh Shell, cmd, marker string, o Options) error {
	resp, err := sh.Send(ctx, cmd, o)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, marker) {
		return &VerificationError{Command: cmd, Expected: marker, Response: resp}
	}
	return nil
}
