package tradewire

// Client-side error codes, surfaced as ApiError events on the error
// channel. Gateway-reported codes share the channel but come off the wire.
// Each condition has its own code; none of the values are reused.
const (
	ErrConnectFail        = 502
	ErrUpdateClient       = 503
	ErrNotConnected       = 504
	ErrAlreadyConnected   = 501
	ErrUnknownId          = 505
	ErrUnsupportedVersion = 506
	ErrBadLength          = 507
	ErrBadMessage         = 508
	ErrFailSend           = 509
	ErrNoCancel           = 510
)

// Gateway codes in [2100, 2200) are advisory. The gateway raises them for
// benign conditions such as partially delayed market data farms, so they
// are logged and broadcast but never terminate a subscription.
func isWarning(code int) bool {
	return 2100 <= code && code < 2200
}
