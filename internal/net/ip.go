package net

import (
	"log/slog"
	"net"
	"strconv"
)

// GetOutgoingIP returns the address other machines on the network would use
// to reach this one. It asks the routing table first, then falls back to
// scanning interfaces, then to loopback.
func GetOutgoingIP() (string, error) {
	// UDP dial sends no packets; it only selects a route.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	if ip, ok := pickIPv4(addrs); ok {
		return ip, nil
	}
	slog.Warn("no routable IPv4 address found, share links will use loopback")
	return "127.0.0.1", nil
}

// pickIPv4 chooses the first non-loopback IPv4 address, preferring private
// ranges.
func pickIPv4(addrs []net.Addr) (string, bool) {
	var fallback net.IP
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
			continue
		}
		if ipnet.IP.IsPrivate() {
			return ipnet.IP.String(), true
		}
		if fallback == nil && !ipnet.IP.IsLinkLocalUnicast() {
			fallback = ipnet.IP
		}
	}
	if fallback == nil {
		return "", false
	}
	return fallback.String(), true
}

// ShareLink builds the link other participants open to join room on a relay
// served from this machine.
func ShareLink(port int, room string) (Link, error) {
	ip, err := GetOutgoingIP()
	if err != nil {
		return Link{}, err
	}
	return Link{Addr: net.JoinHostPort(ip, strconv.Itoa(port)), RoomID: room}, nil
}
