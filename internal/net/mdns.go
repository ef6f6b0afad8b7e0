package net

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_sharedboard._tcp"

var ErrNoRelay = errors.New("no relay found on the local network")

// Advertise announces a relay listening on port over mDNS. Close the
// returned server with Shutdown.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(
		host,        // instance name
		ServiceType, // service
		"",          // domain, defaults to .local
		"",          // host name, defaults to the OS host name
		port,
		nil, // IPs, auto-detected
		[]string{"SharedBoard relay"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Discover browses for a relay and returns the first "host:port" found.
func Discover(timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			select {
			case found <- fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port):
			default:
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-finished
	if err != nil {
		return "", fmt.Errorf("mDNS query: %w", err)
	}

	select {
	case addr := <-found:
		return addr, nil
	default:
		return "", ErrNoRelay
	}
}
