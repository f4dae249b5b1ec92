// Package discovery resolves frame server names over mDNS.
//
// Frame servers advertise themselves as "_espfsp._tcp" services. When the
// bind endpoint is called without an address the gateway resolves the
// well-known name "espfsp_server" here, bounded by a short timeout.
//
// # Usage Example
//
//	r := discovery.NewResolver()
//	svc, err := r.Resolve(ctx, discovery.WellKnownName)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(svc.IP)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - The frame server must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
