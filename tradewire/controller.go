package tradewire

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

type EventFunc func(payload any)
type EventNameFunc func(name EventName)
type EventNamePayloadFunc func(name EventName, payload any)

// controller is the single integration point between the public request
// surface and the lower layers. It owns the outgoing command queue, the
// rate limiter, and event fan-out. One controller manages at most one live
// connection at a time; the connection state machine drives its lifecycle.
type controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *Settings

	encoder *encoder
	decoder *decoder

	stateMutex    sync.Mutex
	conn          io.ReadWriteCloser
	sessionCancel context.CancelFunc
	connected     bool
	serverInfo    *ServerInfo
	framer        *framer
	// FIFO of encoded commands; paused until the gateway assigns the first
	// valid request id, then resumed for the rest of the connection's life
	queue  [][]string
	paused bool

	lastReceiveMutex sync.Mutex
	lastReceive      time.Time

	writeMutex sync.Mutex

	listenersMutex      sync.Mutex
	listeners           map[EventName]*callbackList[EventFunc]
	anyListeners        *callbackList[EventNameFunc]
	anyPayloadListeners *callbackList[EventNamePayloadFunc]
}

func newController(ctx context.Context, settings *Settings) *controller {
	cancelCtx, cancel := context.WithCancel(ctx)
	self := &controller{
		ctx:                 cancelCtx,
		cancel:              cancel,
		settings:            settings,
		encoder:             &encoder{},
		listeners:           map[EventName]*callbackList[EventFunc]{},
		anyListeners:        newCallbackList[EventNameFunc](),
		anyPayloadListeners: newCallbackList[EventNamePayloadFunc](),
	}
	self.decoder = newDecoder(settings.Legacy, self.dispatchEvent)
	return self
}

// On registers a listener for one event name. The returned function
// detaches it.
func (self *controller) On(name EventName, callback EventFunc) func() {
	self.listenersMutex.Lock()
	list, ok := self.listeners[name]
	if !ok {
		list = newCallbackList[EventFunc]()
		self.listeners[name] = list
	}
	self.listenersMutex.Unlock()
	callbackId := list.add(callback)
	return func() {
		list.remove(callbackId)
	}
}

// OnAny observes every non-meta event by name.
func (self *controller) OnAny(callback EventNameFunc) func() {
	callbackId := self.anyListeners.add(callback)
	return func() {
		self.anyListeners.remove(callbackId)
	}
}

// OnAnyPayload observes every non-meta event with its payload.
func (self *controller) OnAnyPayload(callback EventNamePayloadFunc) func() {
	callbackId := self.anyPayloadListeners.add(callback)
	return func() {
		self.anyPayloadListeners.remove(callbackId)
	}
}

func (self *controller) dispatchEvent(name EventName, payload any) {
	if name == EventNextValidId {
		// handshake complete; the gateway accepts requests from here on
		self.resumeQueue()
	}

	self.listenersMutex.Lock()
	list := self.listeners[name]
	self.listenersMutex.Unlock()
	if list != nil {
		for _, callback := range list.get() {
			callback(payload)
		}
	}

	if metaEvents[name] {
		return
	}
	for _, callback := range self.anyListeners.get() {
		callback(name)
	}
	for _, callback := range self.anyPayloadListeners.get() {
		callback(name, payload)
	}
}

func (self *controller) emitError(reqId int, code int, format string, a ...any) {
	self.dispatchEvent(EventError, ApiError{
		ReqId:   reqId,
		Code:    code,
		Message: fmt.Sprintf(format, a...),
	})
}

func (self *controller) Connected() bool {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	return self.connected
}

func (self *controller) ServerVersion() int {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	if self.serverInfo == nil {
		return 0
	}
	return self.serverInfo.Version
}

// LastReceive reports when inbound bytes were last observed on the current
// connection. ok is false if nothing has ever arrived.
func (self *controller) LastReceive() (time.Time, bool) {
	self.lastReceiveMutex.Lock()
	defer self.lastReceiveMutex.Unlock()
	return self.lastReceive, !self.lastReceive.IsZero()
}

func (self *controller) touchReceive() {
	self.lastReceiveMutex.Lock()
	defer self.lastReceiveMutex.Unlock()
	self.lastReceive = time.Now()
}

// Connect dials the gateway, performs the handshake, and starts the reader
// and sender loops. Failures surface as error events, not return values,
// so callers observe one uniform error channel.
func (self *controller) Connect(clientId int) {
	self.stateMutex.Lock()
	if self.connected {
		self.stateMutex.Unlock()
		self.emitError(NoRequestId, ErrAlreadyConnected, "already connected")
		return
	}
	self.stateMutex.Unlock()

	conn, err := self.settings.dial()(self.ctx)
	if err != nil {
		glog.Infof("[c]connect error = %s\n", err)
		self.emitError(NoRequestId, ErrConnectFail, "connect failed: %v", err)
		return
	}

	framer := newFramer(self.settings.wireMode())
	var handshake []byte
	if self.settings.Legacy {
		handshake = framer.encode([]string{fmt.Sprintf("%d", self.settings.MaxVersion)})
	} else {
		handshake = handshakeBytes(self.settings.MinVersion, self.settings.MaxVersion)
	}
	if _, err := conn.Write(handshake); err != nil {
		conn.Close()
		self.emitError(NoRequestId, ErrConnectFail, "handshake write failed: %v", err)
		return
	}

	sessionCtx, sessionCancel := context.WithCancel(self.ctx)

	self.stateMutex.Lock()
	self.conn = conn
	self.sessionCancel = sessionCancel
	self.connected = true
	self.serverInfo = nil
	self.framer = framer
	self.queue = nil
	self.paused = true
	self.stateMutex.Unlock()

	self.lastReceiveMutex.Lock()
	self.lastReceive = time.Time{}
	self.lastReceiveMutex.Unlock()

	self.decoder.reset()

	go self.readLoop(sessionCtx, conn, framer, clientId)
	go self.sendLoop(sessionCtx)

	self.dispatchEvent(EventConnected, Connected{})
}

// Disconnect closes the current connection. A no-op when not connected.
func (self *controller) Disconnect() {
	self.teardown(nil)
}

func (self *controller) teardown(err error) {
	self.stateMutex.Lock()
	if !self.connected {
		self.stateMutex.Unlock()
		return
	}
	self.connected = false
	conn := self.conn
	sessionCancel := self.sessionCancel
	self.conn = nil
	self.sessionCancel = nil
	self.queue = nil
	self.paused = true
	self.stateMutex.Unlock()

	conn.Close()
	sessionCancel()
	if err != nil {
		glog.Infof("[c]connection dropped = %s\n", err)
	}
	self.dispatchEvent(EventDisconnected, Disconnected{Err: err})
}

func (self *controller) Close() {
	self.Disconnect()
	self.cancel()
}

func (self *controller) readLoop(ctx context.Context, conn io.ReadWriteCloser, framer *framer, clientId int) {
	buf := make([]byte, 1<<16)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			self.teardown(err)
			return
		}
		if n == 0 {
			continue
		}
		self.touchReceive()

		raw := make([]byte, n)
		copy(raw, buf[:n])
		self.dispatchEvent(EventRawDataReceived, RawData{Bytes: raw})

		chunk, err := framer.feed(buf[:n])
		if err != nil {
			self.emitError(NoRequestId, ErrBadLength, "bad inbound frame: %v", err)
			self.teardown(err)
			return
		}

		if chunk.serverInfo != nil {
			if chunk.serverInfo.Version < self.settings.MinVersion {
				self.emitError(NoRequestId, ErrUnsupportedVersion,
					"gateway version %d below minimum supported %d",
					chunk.serverInfo.Version, self.settings.MinVersion)
				self.teardown(nil)
				return
			}
			self.stateMutex.Lock()
			self.serverInfo = chunk.serverInfo
			self.stateMutex.Unlock()
			self.encoder.setServerVersion(chunk.serverInfo.Version)
			self.decoder.setServerVersion(chunk.serverInfo.Version)
			self.dispatchEvent(EventServerVersion, *chunk.serverInfo)
			// start-api must go out before the queue resumes, so it
			// bypasses the paused command queue
			self.sendNow(self.encoder.startApi(clientId, ""))
		}

		for _, message := range chunk.messages {
			self.decoder.pushMessage(message)
		}
		if 0 < len(chunk.tokens) {
			self.decoder.pushTokens(chunk.tokens)
		}
		self.decoder.process()
	}
}

// sendLoop drains the command queue at the configured cadence: the
// per-second budget applied as budget/10 commands per 100ms slice.
func (self *controller) sendLoop(ctx context.Context) {
	budget := self.settings.MaxRequestsPerSecond / 10
	if budget < 1 {
		budget = 1
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for i := 0; i < budget; i += 1 {
			self.stateMutex.Lock()
			if !self.connected || self.paused || len(self.queue) == 0 {
				self.stateMutex.Unlock()
				break
			}
			tokens := self.queue[0]
			self.queue = self.queue[1:]
			framer := self.framer
			conn := self.conn
			self.stateMutex.Unlock()

			if !self.write(conn, framer, tokens) {
				return
			}
		}
	}
}

func (self *controller) write(conn io.ReadWriteCloser, framer *framer, tokens []string) bool {
	data := framer.encode(tokens)
	self.writeMutex.Lock()
	_, err := conn.Write(data)
	self.writeMutex.Unlock()
	if err != nil {
		self.emitError(NoRequestId, ErrFailSend, "send failed: %v", err)
		self.teardown(err)
		return false
	}
	glog.V(2).Infof("[c]-> %d tokens\n", len(tokens))
	self.dispatchEvent(EventRawDataSent, RawData{Bytes: data})
	return true
}

func (self *controller) resumeQueue() {
	self.stateMutex.Lock()
	resumed := self.paused
	self.paused = false
	self.stateMutex.Unlock()
	if resumed {
		glog.V(2).Infof("[c]command queue resumed\n")
	}
}

// schedule appends one command to the rate-limited FIFO queue. Commands
// scheduled while disconnected surface an error event instead of being
// silently dropped.
func (self *controller) schedule(args []any) {
	tokens, err := flattenTokens(args)
	if err != nil {
		self.emitError(NoRequestId, ErrFailSend, "encode failed: %v", err)
		return
	}
	self.stateMutex.Lock()
	if !self.connected {
		self.stateMutex.Unlock()
		self.emitError(NoRequestId, ErrNotConnected, "not connected")
		return
	}
	self.queue = append(self.queue, tokens)
	self.stateMutex.Unlock()
}

// sendNow encodes and writes one command, bypassing the queue and the
// rate limiter. Only the handshake's start-api uses it.
func (self *controller) sendNow(args []any) {
	tokens, err := flattenTokens(args)
	if err != nil {
		self.emitError(NoRequestId, ErrFailSend, "encode failed: %v", err)
		return
	}
	self.stateMutex.Lock()
	connected := self.connected
	framer := self.framer
	conn := self.conn
	self.stateMutex.Unlock()
	if !connected {
		self.emitError(NoRequestId, ErrNotConnected, "not connected")
		return
	}
	self.write(conn, framer, tokens)
}
