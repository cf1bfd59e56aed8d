package tradewire

import (
	"time"
)

// AutoClientId makes connect pick a random client id and increment it on
// every reconnection attempt. Any other value is reused verbatim across
// reconnects.
const AutoClientId = -1

type Settings struct {
	Host string
	Port int

	// AutoClientId or a fixed id
	ClientId int

	// 0 disables auto-reconnect
	ReconnectInterval time.Duration
	// 0 disables the liveness watchdog
	WatchdogInterval time.Duration

	// outgoing command budget, drained in 100ms slices
	MaxRequestsPerSecond int

	// legacy NUL-delimited wire mode, for gateways predating length
	// prefixing
	Legacy bool

	MinVersion int
	MaxVersion int

	ConnectTimeout time.Duration

	// overrides the TCP dialer, e.g. WsDial for websocket proxies
	Dial DialFunc
}

func DefaultSettings() *Settings {
	return &Settings{
		Host:                 "127.0.0.1",
		Port:                 4002,
		ClientId:             AutoClientId,
		ReconnectInterval:    5 * time.Second,
		WatchdogInterval:     60 * time.Second,
		MaxRequestsPerSecond: 40,
		MinVersion:           MinClientVersion,
		MaxVersion:           MaxClientVersion,
		ConnectTimeout:       5 * time.Second,
	}
}

func (self *Settings) wireMode() WireMode {
	if self.Legacy {
		return WireModeLegacy
	}
	return WireModeLengthPrefixed
}

func (self *Settings) dial() DialFunc {
	if self.Dial != nil {
		return self.Dial
	}
	return TcpDial(self.Host, self.Port, self.ConnectTimeout)
}
