package tradewire

import (
	"sync"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

// Update is one delivery to a subscription observer: the full current
// state plus the delta classification of what just happened.
type Update struct {
	All     []any
	Added   []any
	Changed []any
	Removed []any
}

type ObserverFunc func(update Update)
type ErrorObserverFunc func(apiError ApiError)
type CompleteObserverFunc func()

type RequestFunc func(client *Client, reqId int)
type CancelFunc func(client *Client, reqId int)

// EventHandlerFunc interprets one decoded event for the subscription that
// owns its request id, updating the subscription's aggregate state.
type EventHandlerFunc func(sub *Subscription, payload any)

// Registry multiplexes logical subscriptions onto per-event-name wire
// listeners, correlated by request id. Subscriptions are durable across
// reconnects: the wire request is re-issued whenever the connection
// re-enters connected, with the cached state cleared for the new burst.
type Registry struct {
	client *Client

	mutex     sync.Mutex
	entries   map[EventName]*registryEntry
	instances map[string]*Subscription
	byReqId   map[int]*Subscription
}

// registryEntry is the per-event-name bookkeeping: the single low-level
// listener registration and the request-id map for that event.
type registryEntry struct {
	name          EventName
	detach        func()
	subscriptions map[int]*Subscription
}

func NewRegistry(client *Client) *Registry {
	self := &Registry{
		client:    client,
		entries:   map[EventName]*registryEntry{},
		instances: map[string]*Subscription{},
		byReqId:   map[int]*Subscription{},
	}
	client.On(EventConnected, func(any) {
		self.reissueAll()
	})
	client.On(EventError, func(payload any) {
		apiError, ok := payload.(ApiError)
		if !ok || apiError.ReqId == NoRequestId {
			return
		}
		self.failSubscription(apiError)
	})
	return self
}

// Register creates (or joins, when instanceKey dedupes to a live one) a
// logical subscription. The wire request is not sent until the
// subscription gains its first observer and the connection is up.
// Enumeration subscriptions buffer the initial burst and emit no deltas
// until a handler calls EndBurst.
func (self *Registry) Register(
	request RequestFunc,
	cancel CancelFunc,
	handlers map[EventName]EventHandlerFunc,
	instanceKey string,
	enumeration bool,
) *Subscription {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	if instanceKey != "" {
		if sub, ok := self.instances[instanceKey]; ok {
			return sub
		}
	}

	sub := &Subscription{
		registry:      self,
		reqId:         self.client.NextRequestId(),
		instanceKey:   instanceKey,
		request:       request,
		cancel:        cancel,
		handlers:      handlers,
		observers:     map[Id]*observer{},
		burstComplete: !enumeration,
		enumeration:   enumeration,
	}

	for name := range handlers {
		entry, ok := self.entries[name]
		if !ok {
			entry = &registryEntry{
				name:          name,
				subscriptions: map[int]*Subscription{},
			}
			entry.detach = self.client.On(name, self.entryListener(entry))
			self.entries[name] = entry
		}
		entry.subscriptions[sub.reqId] = sub
	}
	if instanceKey != "" {
		self.instances[instanceKey] = sub
	}
	self.byReqId[sub.reqId] = sub
	return sub
}

func (self *Registry) entryListener(entry *registryEntry) EventFunc {
	return func(payload any) {
		var subs []*Subscription
		self.mutex.Lock()
		if scoped, ok := payload.(RequestScoped); ok {
			if sub, ok := entry.subscriptions[scoped.RequestId()]; ok {
				subs = []*Subscription{sub}
			}
		} else {
			// events without a request id go to every subscription
			// listening on this name
			for _, sub := range entry.subscriptions {
				subs = append(subs, sub)
			}
		}
		self.mutex.Unlock()

		for _, sub := range subs {
			if handler, ok := sub.handlers[entry.name]; ok {
				handler(sub, payload)
			}
		}
	}
}

// reissueAll re-sends the wire request of every observed subscription
// after (re)connection, clearing cached state for the fresh burst.
func (self *Registry) reissueAll() {
	self.mutex.Lock()
	pending := []*Subscription{}
	for _, sub := range self.byReqId {
		if 0 < len(sub.observers) {
			sub.lastAll = nil
			sub.burstComplete = !sub.enumeration
			sub.requested = true
			pending = append(pending, sub)
		} else {
			sub.requested = false
		}
	}
	self.mutex.Unlock()

	for _, sub := range pending {
		glog.V(2).Infof("[r]reissue request %d\n", sub.reqId)
		sub.request(self.client, sub.reqId)
	}
}

func (self *Registry) failSubscription(apiError ApiError) {
	self.mutex.Lock()
	sub, ok := self.byReqId[apiError.ReqId]
	if !ok {
		self.mutex.Unlock()
		return
	}
	errorObservers := sub.errorObserverSnapshot()
	sub.lastAll = nil
	sub.burstComplete = !sub.enumeration
	self.removeLocked(sub)
	connected := self.client.State() == StateConnected
	self.mutex.Unlock()

	// the gateway may still consider the request live; cancel proactively
	if connected && sub.cancel != nil {
		sub.cancel(self.client, sub.reqId)
	}
	for _, errorObserver := range errorObservers {
		errorObserver(apiError)
	}
}

// removeLocked detaches a subscription from all bookkeeping. Entries whose
// last subscription goes away deregister their low-level listener so
// handlers do not leak for the life of the process.
func (self *Registry) removeLocked(sub *Subscription) {
	for name := range sub.handlers {
		entry, ok := self.entries[name]
		if !ok {
			continue
		}
		delete(entry.subscriptions, sub.reqId)
		if len(entry.subscriptions) == 0 {
			entry.detach()
			delete(self.entries, name)
		}
	}
	if sub.instanceKey != "" {
		delete(self.instances, sub.instanceKey)
	}
	delete(self.byReqId, sub.reqId)
	sub.removed = true
}

type observer struct {
	update   ObserverFunc
	fail     ErrorObserverFunc
	complete CompleteObserverFunc
}

// Subscription is one logical, possibly shared, wire-level request: the
// owning request id, the last known aggregate value, the burst-complete
// flag, and the attached observers.
type Subscription struct {
	registry    *Registry
	reqId       int
	instanceKey string
	request     RequestFunc
	cancel      CancelFunc
	handlers    map[EventName]EventHandlerFunc

	observers     map[Id]*observer
	lastAll       []any
	burstComplete bool
	enumeration   bool
	requested     bool
	removed       bool
}

func (self *Subscription) ReqId() int {
	return self.reqId
}

func (self *Subscription) errorObserverSnapshot() []ErrorObserverFunc {
	out := []ErrorObserverFunc{}
	for _, obs := range self.observers {
		if obs.fail != nil {
			out = append(out, obs.fail)
		}
	}
	return out
}

func (self *Subscription) observerSnapshot() []*observer {
	out := make([]*observer, 0, len(self.observers))
	for _, obs := range self.observers {
		out = append(out, obs)
	}
	return out
}

// Subscribe attaches an observer. A cached aggregate value is replayed
// immediately, reshaped so the first delivery's Added equals the full
// value. The first observer triggers the wire request; detaching the last
// one issues the wire cancel. The returned function detaches.
func (self *Subscription) Subscribe(update ObserverFunc, fail ErrorObserverFunc, complete CompleteObserverFunc) func() {
	registry := self.registry
	registry.mutex.Lock()
	if self.removed {
		registry.mutex.Unlock()
		if fail != nil {
			fail(ApiError{
				ReqId:   self.reqId,
				Code:    ErrUnknownId,
				Message: "subscription already terminated",
			})
		}
		return func() {}
	}

	obs := &observer{
		update:   update,
		fail:     fail,
		complete: complete,
	}
	observerId := NewId()
	self.observers[observerId] = obs

	var replay *Update
	if self.lastAll != nil && self.burstComplete {
		replay = &Update{
			All:   slices.Clone(self.lastAll),
			Added: slices.Clone(self.lastAll),
		}
	}

	issue := false
	if !self.requested {
		if registry.client.State() == StateConnected {
			self.requested = true
			issue = true
		}
		// otherwise deferred; reissueAll sends it when the connection
		// comes up
	}
	registry.mutex.Unlock()

	if replay != nil && update != nil {
		update(*replay)
	}
	if issue {
		self.request(registry.client, self.reqId)
	}

	return func() {
		self.unsubscribe(observerId)
	}
}

func (self *Subscription) unsubscribe(observerId Id) {
	registry := self.registry
	registry.mutex.Lock()
	if _, ok := self.observers[observerId]; !ok {
		registry.mutex.Unlock()
		return
	}
	delete(self.observers, observerId)
	last := len(self.observers) == 0 && !self.removed
	var connected bool
	var requested bool
	if last {
		requested = self.requested
		registry.removeLocked(self)
		connected = registry.client.State() == StateConnected
	}
	registry.mutex.Unlock()

	if !last {
		return
	}
	// no point cancelling on a dead socket
	if requested && connected {
		if self.cancel != nil {
			self.cancel(registry.client, self.reqId)
		} else {
			registry.client.controller.emitError(self.reqId, ErrNoCancel,
				"no cancel registered for request %d", self.reqId)
		}
	}
}

// Post appends a record to the aggregate. During an enumeration's initial
// burst the record is buffered silently; afterwards observers receive an
// Added delta.
func (self *Subscription) Post(record any) {
	registry := self.registry
	registry.mutex.Lock()
	self.lastAll = append(self.lastAll, record)
	deliver := self.burstComplete
	update := Update{
		All:   slices.Clone(self.lastAll),
		Added: []any{record},
	}
	observers := self.observerSnapshot()
	registry.mutex.Unlock()

	if deliver {
		for _, obs := range observers {
			if obs.update != nil {
				obs.update(update)
			}
		}
	}
}

// Change replaces the first record matching match. Falls back to Post
// when nothing matches.
func (self *Subscription) Change(match func(record any) bool, record any) {
	registry := self.registry
	registry.mutex.Lock()
	i := slices.IndexFunc(self.lastAll, match)
	if i < 0 {
		registry.mutex.Unlock()
		self.Post(record)
		return
	}
	self.lastAll[i] = record
	deliver := self.burstComplete
	update := Update{
		All:     slices.Clone(self.lastAll),
		Changed: []any{record},
	}
	observers := self.observerSnapshot()
	registry.mutex.Unlock()

	if deliver {
		for _, obs := range observers {
			if obs.update != nil {
				obs.update(update)
			}
		}
	}
}

// Remove drops the first record matching match. A no-op when nothing
// matches.
func (self *Subscription) Remove(match func(record any) bool) {
	registry := self.registry
	registry.mutex.Lock()
	i := slices.IndexFunc(self.lastAll, match)
	if i < 0 {
		registry.mutex.Unlock()
		return
	}
	record := self.lastAll[i]
	self.lastAll = slices.Delete(slices.Clone(self.lastAll), i, i+1)
	deliver := self.burstComplete
	update := Update{
		All:     slices.Clone(self.lastAll),
		Removed: []any{record},
	}
	observers := self.observerSnapshot()
	registry.mutex.Unlock()

	if deliver {
		for _, obs := range observers {
			if obs.update != nil {
				obs.update(update)
			}
		}
	}
}

// EndBurst marks the initial enumeration burst finished and delivers the
// buffered aggregate as one update whose Added is the full value.
func (self *Subscription) EndBurst() {
	registry := self.registry
	registry.mutex.Lock()
	if self.burstComplete {
		registry.mutex.Unlock()
		return
	}
	self.burstComplete = true
	update := Update{
		All:   slices.Clone(self.lastAll),
		Added: slices.Clone(self.lastAll),
	}
	observers := self.observerSnapshot()
	registry.mutex.Unlock()

	for _, obs := range observers {
		if obs.update != nil {
			obs.update(update)
		}
	}
}

// Complete terminates the subscription normally: observers get their
// completion callback and the wire request is cancelled if one is
// registered. One-shot request handlers call this after the final event.
func (self *Subscription) Complete() {
	registry := self.registry
	registry.mutex.Lock()
	if self.removed {
		registry.mutex.Unlock()
		return
	}
	observers := self.observerSnapshot()
	requested := self.requested
	registry.removeLocked(self)
	connected := registry.client.State() == StateConnected
	registry.mutex.Unlock()

	if requested && connected && self.cancel != nil {
		self.cancel(registry.client, self.reqId)
	}
	for _, obs := range observers {
		if obs.complete != nil {
			obs.complete()
		}
	}
}
