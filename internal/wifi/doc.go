// Package wifi drives station association with a bounded retry policy and
// falls back to an access point plus provisioning server when no credentials
// are stored or association keeps failing.
//
// # State Machine
//
//	Disconnected -> Connecting           (credentials present, station started)
//	Disconnected -> ProvisioningMode     (no credentials)
//	Connecting   -> Associated           (address obtained, retries reset)
//	Connecting   -> Connecting           (disconnected, retries < limit)
//	Connecting   -> Failed               (disconnected, retries exhausted)
//	Failed       -> ProvisioningMode
//	Associated   -> Connecting           (disconnected)
//
// Raw radio events are posted to a single-consumer queue. One goroutine owns
// the state and dispatches Associated / Disassociated events to listeners in
// arrival order. A listener must not block for long: the next radio event is
// not processed until it returns.
//
// # Radios
//
// NMCLIRadio drives a Linux NetworkManager interface through nmcli.
// StaticRadio is for hosts whose network is configured elsewhere; it reports
// association with the first non-loopback address.
package wifi
