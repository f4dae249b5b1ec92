package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the DNS-SD type frame servers advertise
	ServiceType = "_espfsp._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// WellKnownName is the instance/host name of the default frame server
	WellKnownName = "espfsp_server"

	// DefaultResolveTimeout bounds a single name resolution
	DefaultResolveTimeout = 2 * time.Second
)

// ErrNotFound is returned when no matching record arrives within the bound.
var ErrNotFound = errors.New("service not found")

// Resolver resolves frame server names over mDNS
type Resolver struct {
	// Timeout is the maximum time to wait for a matching record
	Timeout time.Duration

	// ServiceType is the DNS-SD type browsed for
	ServiceType string
}

// NewResolver creates a resolver with default settings
func NewResolver() *Resolver {
	return &Resolver{
		Timeout:     DefaultResolveTimeout,
		ServiceType: ServiceType,
	}
}

// Resolve looks up name, matching either the DNS-SD instance name or the
// host name "<name>.local.". It returns the first matching record.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Service, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if !matchesName(entry, name) {
					continue
				}
				if svc := parseServiceEntry(entry); svc != nil {
					select {
					case found <- svc:
					default:
					}
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, r.ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case svc := <-found:
		return svc, nil
	case <-ctx.Done():
		// The match may have landed just before cancel fired.
		select {
		case svc := <-found:
			return svc, nil
		default:
		}
		return nil, fmt.Errorf("%w: %s within %v", ErrNotFound, name, r.Timeout)
	}
}

// Browse collects every frame server seen before the timeout
func (r *Resolver) Browse(ctx context.Context) ([]*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var mu sync.Mutex
	services := make([]*Service, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if svc := parseServiceEntry(entry); svc != nil {
					mu.Lock()
					services = append(services, svc)
					mu.Unlock()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, r.ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Service(nil), services...), nil
}

// matchesName reports whether entry advertises name as instance or host
func matchesName(entry *zeroconf.ServiceEntry, name string) bool {
	if name == "" {
		return false
	}
	if strings.EqualFold(entry.Instance, name) {
		return true
	}
	host := strings.TrimSuffix(entry.HostName, ".")
	host = strings.TrimSuffix(host, ".local")
	return strings.EqualFold(host, name)
}

// parseServiceEntry converts a zeroconf service entry to a Service.
// Returns nil if the entry carries no address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Service {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Service{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
