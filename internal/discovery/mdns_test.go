package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "IPv4 record",
			entry:    entry(WellKnownName, "espfsp_server.local.", 5003, []net.IP{net.ParseIP("192.168.4.16")}, nil),
			wantIP:   "192.168.4.16",
			wantPort: 5003,
		},
		{
			name: "IPv4 preferred over IPv6",
			entry: entry(WellKnownName, "espfsp_server.local.", 5003,
				[]net.IP{net.ParseIP("10.0.0.5")}, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "10.0.0.5",
			wantPort: 5003,
		},
		{
			name:     "IPv6 fallback",
			entry:    entry(WellKnownName, "espfsp_server.local.", 0, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 0,
		},
		{
			name:    "no addresses",
			entry:   entry(WellKnownName, "espfsp_server.local.", 5003, nil, nil),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if svc != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", svc)
				}
				return
			}

			if svc == nil {
				t.Fatal("parseServiceEntry() = nil, want service")
			}
			if svc.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", svc.IP, tt.wantIP)
			}
			if svc.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", svc.Port, tt.wantPort)
			}
			if svc.DiscoveredAt.IsZero() || time.Since(svc.DiscoveredAt) > time.Minute {
				t.Errorf("DiscoveredAt = %v, want recent", svc.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	e := entry("cam", "cam.local.", 5003, []net.IP{net.ParseIP("192.168.1.2")}, nil,
		"version=1", "sources=2", "flag")

	svc := parseServiceEntry(e)
	if svc == nil {
		t.Fatal("parseServiceEntry() = nil")
	}

	if got := svc.GetMetadata("version"); got != "1" {
		t.Errorf("GetMetadata(version) = %q, want 1", got)
	}
	if got := svc.GetMetadata("sources"); got != "2" {
		t.Errorf("GetMetadata(sources) = %q, want 2", got)
	}
	if _, ok := svc.Metadata["flag"]; !ok {
		t.Error("valueless TXT key missing")
	}
	if got := svc.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
}

func TestMatchesName(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		host     string
		query    string
		want     bool
	}{
		{"instance match", WellKnownName, "other.local.", WellKnownName, true},
		{"hostname match", "Frame Server", "espfsp_server.local.", WellKnownName, true},
		{"hostname without dot", "x", "espfsp_server.local", WellKnownName, true},
		{"case insensitive", "ESPFSP_SERVER", "", WellKnownName, true},
		{"no match", "kitchen", "kitchen.local.", WellKnownName, false},
		{"empty query", WellKnownName, "espfsp_server.local.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry(tt.instance, tt.host, 5003, nil, nil)
			if got := matchesName(e, tt.query); got != tt.want {
				t.Errorf("matchesName(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestNewResolver(t *testing.T) {
	r := NewResolver()

	if r.Timeout != DefaultResolveTimeout {
		t.Errorf("Timeout = %v, want %v", r.Timeout, DefaultResolveTimeout)
	}
	if r.ServiceType != "_espfsp._tcp" {
		t.Errorf("ServiceType = %q, want _espfsp._tcp", r.ServiceType)
	}
}

func TestService_Addr(t *testing.T) {
	tests := []struct {
		svc  Service
		want string
	}{
		{Service{IP: "10.0.0.2", Port: 5003}, "10.0.0.2:5003"},
		{Service{IP: "fe80::1", Port: 5003}, "[fe80::1]:5003"},
		{Service{IP: "10.0.0.2"}, "10.0.0.2"},
	}

	for _, tt := range tests {
		if got := tt.svc.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}

	s := &Service{Instance: "cam", Hostname: "cam.local.", IP: "10.0.0.2", Port: 1}
	if got := s.String(); got != "cam (cam.local.) at 10.0.0.2:1" {
		t.Errorf("String() = %q", got)
	}
}
