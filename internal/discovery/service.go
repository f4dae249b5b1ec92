package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service represents a frame server advertised over mDNS
type Service struct {
	// Instance is the DNS-SD instance name (e.g., "espfsp_server")
	Instance string

	// Hostname is the mDNS hostname (e.g., "espfsp_server.local.")
	Hostname string

	// IP is the advertised address, IPv4 preferred
	IP string

	// Port is the advertised port (0 when the record carries none)
	Port int

	// Metadata contains the TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the record was received
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.Addr())
}

// Addr returns host:port, or just the IP when no port was advertised
func (s *Service) Addr() string {
	if s.Port == 0 {
		return s.IP
	}
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
