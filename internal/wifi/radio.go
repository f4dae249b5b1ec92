package wifi

import (
	"context"

	"github.com/muurk/homecam/internal/credentials"
)

// EventSink accepts raw radio events. Manager implements it.
type EventSink interface {
	Post(ev RadioEvent)
}

// AccessPoint describes the provisioning access point.
type AccessPoint struct {
	SSID          string
	Password      string // Empty = open network
	Channel       int
	MaxConnection int
}

// DefaultAccessPoint returns the factory provisioning access point.
func DefaultAccessPoint() AccessPoint {
	return AccessPoint{
		SSID:          "HomeCam_Config",
		Channel:       1,
		MaxConnection: 4,
	}
}

// Radio is the wireless hardware collaborator.
//
// StartStation configures station mode with creds and posts StationStarted
// once the radio is up. Reconnect requests one association attempt; its
// outcome arrives later as GotIP or StationDisconnected.
type Radio interface {
	StartStation(ctx context.Context, creds credentials.Credentials, sink EventSink) error
	Reconnect(ctx context.Context) error
	StartAccessPoint(ctx context.Context, ap AccessPoint) error
	Stop() error
}

// Provisioner is started when the device enters provisioning mode.
type Provisioner interface {
	Start() error
	Stop(ctx context.Context) error
}
