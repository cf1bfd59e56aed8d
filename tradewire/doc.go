// Package tradewire is a client for the trading-gateway wire protocol:
// one persistent TCP (or websocket-proxied) connection carrying
// NUL-delimited token messages, length-prefixed after the handshake
// negotiates a modern protocol version.
//
// Logging convention, shared with other seawind network components:
// Info:
//     essential events for abnormal behavior. Silent on normal operation
//     except infrequent lifecycle data useful for monitoring, e.g.
//     reconnects and watchdog expiry.
// Debug (glog.V(2)):
//     key events for trace debugging: per-message decode faults, queue
//     resume, request reissue.
package tradewire
