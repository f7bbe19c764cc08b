package vlan

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

const (
	// SysctlConfigFile receives the forwarding directive
	SysctlConfigFile = "/etc/sysctl.conf"

	MinVLANID = 1
	MaxVLANID = 4094

	// Response markers
	MarkerRefreshDone   = "Done"
	MarkerVLANInstalled = "Setting up vlan"

	CmdClearPackageLists = "rm /var/lib/apt/lists/* -vf"
	CmdUpdatePackages    = "apt-get update"
	CmdInstallVLAN       = "apt-get install vlan"
	CmdLoad8021q         = "modprobe 8021q"
)

const shellUnsafe = " \t\r\n;&|$`'\"<>()\\/*?!{}[]#~"

// EnableIPForwardCommand appends the IPv4 forwarding directive to the sysctl file.
func EnableIPForwardCommand() string {
	return fmt.Sprintf(`echo "net.ipv4.ip_forward=1" >> %s`, SysctlConfigFile)
}

// AddVLANCommand creates the VLAN device on iface.
func AddVLANCommand(iface string, id int) string {
	return fmt.Sprintf("vconfig add %s %d", iface, id)
}

// AddVLANMarker is what vconfig prints after creating the device.
func AddVLANMarker(iface string, id int) string {
	return fmt.Sprintf("Added VLAN with VID == %d to IF -:%s:-", id, iface)
}

// RemoveVLANCommand deletes the VLAN device.
func RemoveVLANCommand(iface string, id int) string {
	return fmt.Sprintf("vconfig rem %s", DeviceName(iface, id))
}

// RemoveVLANMarker is what vconfig prints after deleting the device.
func RemoveVLANMarker(iface string, id int) string {
	return fmt.Sprintf("Removed VLAN -:%s:-", DeviceName(iface, id))
}

// LinkUpCommand sets the VLAN device link up.
func LinkUpCommand(iface string, id int) string {
	return fmt.Sprintf("ip link set up %s", DeviceName(iface, id))
}

// AddAddressCommand assigns addr to the VLAN device.
func AddAddressCommand(addr, iface string, id int) string {
	return fmt.Sprintf("ip addr add %s dev %s", addr, DeviceName(iface, id))
}

// DeviceName returns the kernel name vconfig gives the VLAN device.
func DeviceName(iface string, id int) string {
	return iface + "." + strconv.Itoa(id)
}

func validateInterface(iface string) error {
	if iface == "" {
		return invalidf("interface name is required")
	}
	if strings.ContainsAny(iface, shellUnsafe) {
		return invalidf("interface name %q contains forbidden characters", iface)
	}
	return nil
}

func validateVLANID(id int) error {
	if id == 0 {
		return invalidf("VLAN id is required")
	}
	if id < MinVLANID || id > MaxVLANID {
		return invalidf("VLAN id %d must be between %d and %d", id, MinVLANID, MaxVLANID)
	}
	return nil
}

func validateAddress(addr string) error {
	if addr == "" {
		return invalidf("IP address is required")
	}
	if _, err := netip.ParsePrefix(addr); err != nil {
		return invalidf("IP address %q must be in A.B.C.D/M form", addr)
	}
	return nil
}

func validateVLAN(iface string, id int) error {
	if err := validateInterface(iface); err != nil {
		return err
	}
	return validateVLANID(id)
}
