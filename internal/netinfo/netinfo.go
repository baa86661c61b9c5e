// Package netinfo reports the addresses the service can be reached on.
package netinfo

import (
	"fmt"
	"net"
)

// Interface is one network interface with its addresses
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// Addresses returns the IPv4 addresses of all interfaces that are up
func Addresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var list []Interface
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		list = append(list, Interface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return Filter(list), nil
}

// Filter keeps routable IPv4 addresses of interfaces that are up
func Filter(ifaces []Interface) []string {
	var out []string
	for _, iface := range ifaces {
		// Skip loopback and down interfaces
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		for _, addr := range iface.Addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			// Skip self-assigned addresses
			if ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, ipNet.IP.String())
		}
	}
	return out
}
