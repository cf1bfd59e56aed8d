package tradewire

import (
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/exp/maps"
)

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func (self Id) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", self[0:4], self[4:6], self[6:8], self[8:10], self[10:16])
}

// callbackList is a handle-keyed listener set. Snapshots are taken under
// the lock and invoked outside it, so a callback can detach itself or
// attach new listeners without deadlocking.
type callbackList[T any] struct {
	mutex     sync.Mutex
	callbacks map[Id]T
}

func newCallbackList[T any]() *callbackList[T] {
	return &callbackList[T]{
		callbacks: map[Id]T{},
	}
}

func (self *callbackList[T]) add(callback T) Id {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	callbackId := NewId()
	self.callbacks[callbackId] = callback
	return callbackId
}

func (self *callbackList[T]) remove(callbackId Id) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	delete(self.callbacks, callbackId)
}

func (self *callbackList[T]) get() []T {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return maps.Values(self.callbacks)
}

func (self *callbackList[T]) size() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return len(self.callbacks)
}
