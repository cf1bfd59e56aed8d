package tradewire

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (self ConnectionState) String() string {
	switch self {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Client wraps the controller with auto-reconnect and a liveness watchdog.
// All transitions are guarded by the current state, so repeated or
// out-of-order signals do not double-fire timers or double-transition.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings   *Settings
	controller *controller

	stateMutex     sync.Mutex
	state          ConnectionState
	autoReconnect  bool
	clientId       int
	reconnectTimer *time.Timer
	watchdogCancel context.CancelFunc
	nextReqId      int
}

func NewClientWithDefaults(ctx context.Context) *Client {
	return NewClient(ctx, DefaultSettings())
}

func NewClient(ctx context.Context, settings *Settings) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)
	self := &Client{
		ctx:        cancelCtx,
		cancel:     cancel,
		settings:   settings,
		state:      StateDisconnected,
		nextReqId:  1,
	}
	self.controller = newController(cancelCtx, settings)
	self.controller.On(EventConnected, func(any) {
		self.onConnected()
	})
	self.controller.On(EventDisconnected, func(any) {
		self.onDisconnected()
	})
	self.controller.On(EventError, func(payload any) {
		apiError, ok := payload.(ApiError)
		if !ok {
			return
		}
		switch apiError.Code {
		case ErrConnectFail:
			// a failed attempt follows the same path as an unexpected drop
			self.onDisconnected()
		case ErrUnsupportedVersion:
			// fatal for this gateway; retrying cannot succeed
			self.stateMutex.Lock()
			self.autoReconnect = false
			self.stateMutex.Unlock()
		}
	})
	self.controller.On(EventNextValidId, func(payload any) {
		nextValidId, ok := payload.(NextValidId)
		if !ok {
			return
		}
		self.stateMutex.Lock()
		if self.nextReqId < nextValidId.OrderId {
			self.nextReqId = nextValidId.OrderId
		}
		self.stateMutex.Unlock()
	})
	return self
}

// Connect starts a connection attempt. Re-entrant calls while connecting
// or connected are no-ops. With AutoClientId the first attempt picks a
// random id and each reconnection increments it; a fixed id is reused on
// every attempt.
func (self *Client) Connect() {
	self.stateMutex.Lock()
	if self.state != StateDisconnected {
		self.stateMutex.Unlock()
		return
	}
	self.state = StateConnecting
	self.autoReconnect = true
	if self.settings.ClientId == AutoClientId {
		if self.clientId == 0 {
			self.clientId = 1 + mathrand.Intn(32767)
		}
	} else {
		self.clientId = self.settings.ClientId
	}
	clientId := self.clientId
	self.stateMutex.Unlock()

	glog.V(2).Infof("[s]connecting with client id %d\n", clientId)
	go self.controller.Connect(clientId)
}

// Disconnect closes the connection and disables auto-reconnect until the
// next Connect call.
func (self *Client) Disconnect() {
	self.stateMutex.Lock()
	self.autoReconnect = false
	if self.reconnectTimer != nil {
		self.reconnectTimer.Stop()
		self.reconnectTimer = nil
	}
	wasDisconnected := self.state == StateDisconnected
	self.stateMutex.Unlock()
	if wasDisconnected {
		return
	}
	self.controller.Disconnect()
}

func (self *Client) Close() {
	self.Disconnect()
	self.controller.Close()
	self.cancel()
}

func (self *Client) onConnected() {
	self.stateMutex.Lock()
	if self.state == StateConnected {
		self.stateMutex.Unlock()
		return
	}
	self.state = StateConnected
	if self.reconnectTimer != nil {
		self.reconnectTimer.Stop()
		self.reconnectTimer = nil
	}
	var watchdogCtx context.Context
	if 0 < self.settings.WatchdogInterval {
		watchdogCtx, self.watchdogCancel = context.WithCancel(self.ctx)
	}
	self.stateMutex.Unlock()

	if watchdogCtx != nil {
		go self.watchdog(watchdogCtx)
	}
}

func (self *Client) onDisconnected() {
	self.stateMutex.Lock()
	if self.state == StateDisconnected {
		self.stateMutex.Unlock()
		return
	}
	self.state = StateDisconnected
	if self.watchdogCancel != nil {
		self.watchdogCancel()
		self.watchdogCancel = nil
	}
	reconnect := self.autoReconnect && 0 < self.settings.ReconnectInterval
	if reconnect && self.reconnectTimer == nil {
		self.reconnectTimer = time.AfterFunc(self.settings.ReconnectInterval, self.reconnectAttempt)
	}
	self.stateMutex.Unlock()
}

func (self *Client) reconnectAttempt() {
	self.stateMutex.Lock()
	self.reconnectTimer = nil
	if self.state != StateDisconnected || !self.autoReconnect {
		self.stateMutex.Unlock()
		return
	}
	self.state = StateConnecting
	if self.settings.ClientId == AutoClientId {
		self.clientId += 1
	}
	clientId := self.clientId
	self.stateMutex.Unlock()

	glog.Infof("[s]reconnecting with client id %d\n", clientId)
	go self.controller.Connect(clientId)
}

// watchdog runs at half the configured interval. A tick with no inbound
// data inside the full interval forces a disconnect-and-reconnect cycle;
// every tick also probes with a current-time request so an otherwise idle
// session still produces inbound traffic to measure.
func (self *Client) watchdog(ctx context.Context) {
	ticker := time.NewTicker(self.settings.WatchdogInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lastReceive, ok := self.controller.LastReceive()
		if !ok || self.settings.WatchdogInterval < time.Since(lastReceive) {
			glog.Infof("[s]watchdog expired, forcing reconnect\n")
			// auto-reconnect stays enabled, so the disconnect rearms the
			// reconnect timer
			self.controller.Disconnect()
			return
		}
		self.controller.schedule(self.controller.encoder.reqCurrentTime())
	}
}

func (self *Client) State() ConnectionState {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	return self.state
}

func (self *Client) ServerVersion() int {
	return self.controller.ServerVersion()
}

// NextRequestId allocates a request id, seeded by the gateway's
// next-valid-id assignment.
func (self *Client) NextRequestId() int {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	reqId := self.nextReqId
	self.nextReqId += 1
	return reqId
}

func (self *Client) On(name EventName, callback EventFunc) func() {
	return self.controller.On(name, callback)
}

func (self *Client) OnAny(callback EventNameFunc) func() {
	return self.controller.OnAny(callback)
}

func (self *Client) OnAnyPayload(callback EventNamePayloadFunc) func() {
	return self.controller.OnAnyPayload(callback)
}

// request surface

// scheduleChecked routes version-gated builder failures to the error
// channel with the update-gateway code.
func (self *Client) scheduleChecked(args []any, err error) {
	if err != nil {
		self.controller.emitError(NoRequestId, ErrUpdateClient, "%v", err)
		return
	}
	self.controller.schedule(args)
}

func (self *Client) ReqCurrentTime() {
	self.controller.schedule(self.controller.encoder.reqCurrentTime())
}

func (self *Client) ReqIds() {
	self.controller.schedule(self.controller.encoder.reqIds())
}

func (self *Client) ReqManagedAccounts() {
	self.controller.schedule(self.controller.encoder.reqManagedAccounts())
}

func (self *Client) ReqMarketData(reqId int, contract Contract, genericTickList string, snapshot bool) {
	self.controller.schedule(self.controller.encoder.reqMktData(reqId, contract, genericTickList, snapshot))
}

func (self *Client) CancelMarketData(reqId int) {
	self.controller.schedule(self.controller.encoder.cancelMktData(reqId))
}

func (self *Client) ReqMarketDepth(reqId int, contract Contract, numRows int, smartDepth bool) {
	self.scheduleChecked(self.controller.encoder.reqMktDepth(reqId, contract, numRows, smartDepth))
}

func (self *Client) CancelMarketDepth(reqId int, smartDepth bool) {
	self.controller.schedule(self.controller.encoder.cancelMktDepth(reqId, smartDepth))
}

func (self *Client) PlaceOrder(orderId int, contract Contract, order Order) {
	self.scheduleChecked(self.controller.encoder.placeOrder(orderId, contract, order))
}

func (self *Client) CancelOrder(orderId int) {
	self.controller.schedule(self.controller.encoder.cancelOrder(orderId))
}

func (self *Client) ReqOpenOrders() {
	self.controller.schedule(self.controller.encoder.reqOpenOrders())
}

func (self *Client) ReqCompletedOrders(apiOnly bool) {
	self.scheduleChecked(self.controller.encoder.reqCompletedOrders(apiOnly))
}

func (self *Client) ReqAccountUpdates(subscribe bool, account string) {
	self.controller.schedule(self.controller.encoder.reqAccountUpdates(subscribe, account))
}

func (self *Client) ReqExecutions(reqId int, clientId int, account string) {
	self.controller.schedule(self.controller.encoder.reqExecutions(reqId, clientId, account))
}

func (self *Client) ReqContractDetails(reqId int, contract Contract) {
	self.controller.schedule(self.controller.encoder.reqContractData(reqId, contract))
}

func (self *Client) ReqPositions() {
	self.scheduleChecked(self.controller.encoder.reqPositions())
}

func (self *Client) CancelPositions() {
	self.controller.schedule(self.controller.encoder.cancelPositions())
}

func (self *Client) ReqPnl(reqId int, account string, modelCode string) {
	self.scheduleChecked(self.controller.encoder.reqPnl(reqId, account, modelCode))
}

func (self *Client) CancelPnl(reqId int) {
	self.controller.schedule(self.controller.encoder.cancelPnl(reqId))
}

func (self *Client) ReqPnlSingle(reqId int, account string, modelCode string, conId int) {
	self.scheduleChecked(self.controller.encoder.reqPnlSingle(reqId, account, modelCode, conId))
}

func (self *Client) CancelPnlSingle(reqId int) {
	self.controller.schedule(self.controller.encoder.cancelPnlSingle(reqId))
}

func (self *Client) ReqTickByTickData(reqId int, contract Contract, tickType string, numberOfTicks int, ignoreSize bool) {
	self.scheduleChecked(self.controller.encoder.reqTickByTickData(reqId, contract, tickType, numberOfTicks, ignoreSize))
}

func (self *Client) CancelTickByTickData(reqId int) {
	self.controller.schedule(self.controller.encoder.cancelTickByTickData(reqId))
}

func (self *Client) ReqHistoricalData(reqId int, contract Contract, endDateTime string, duration string, barSize string, whatToShow string, useRth bool) {
	self.controller.schedule(self.controller.encoder.reqHistoricalData(reqId, contract, endDateTime, duration, barSize, whatToShow, useRth))
}
