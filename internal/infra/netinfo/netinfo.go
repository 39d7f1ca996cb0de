// Package netinfo reports host network connectivity for webstream dispatch
// and the spoken IP announcement.
package netinfo

import "net"

// Host inspects the local interfaces. It implements the network surface the
// playback domain consumes.
type Host struct{}

// IsConnected reports whether any non-loopback interface carries an IPv4
// address.
func (Host) IsConnected() bool {
	return Host{}.IPAddress() != ""
}

// IPAddress returns the first non-loopback IPv4 address, or "" when the host
// is offline.
func (Host) IPAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
