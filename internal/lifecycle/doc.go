// Package lifecycle keeps the device's HTTP listeners in step with
// connectivity.
//
// The Orchestrator subscribes to wifi connectivity events. On association it
// starts every listener that is not running; on disassociation it stops every
// listener that is. Repeated events are harmless. A listener that fails to
// stop keeps its handle and is retried on the next disassociation.
package lifecycle
