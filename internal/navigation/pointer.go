package navigation

import (
	"sort"
	"sync"
)

// PointerEvent is a pointer interaction somewhere on the page. Target is the
// element path the pointer landed on, e.g. "nav/products-telematics".
type PointerEvent struct {
	Target string `json:"target"`
}

// PointerSource delivers page-wide pointer events. Subscribe returns a
// function that removes the listener; calling it more than once is safe.
type PointerSource interface {
	Subscribe(fn func(PointerEvent)) (unsubscribe func())
}

// Dispatcher is a goroutine-safe PointerSource. Listeners are invoked
// outside the lock, so a listener may unsubscribe itself during dispatch.
type Dispatcher struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(PointerEvent)
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[int]func(PointerEvent))}
}

// Subscribe registers fn for every subsequent Dispatch.
func (d *Dispatcher) Subscribe(fn func(PointerEvent)) func() {
	d.mu.Lock()
	id := d.next
	d.next++
	d.listeners[id] = fn
	d.mu.Unlock()

	return sync.OnceFunc(func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	})
}

// Dispatch delivers ev to every listener in subscription order.
func (d *Dispatcher) Dispatch(ev PointerEvent) {
	d.mu.Lock()
	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(PointerEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.listeners[id])
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Listeners returns the number of active subscriptions.
func (d *Dispatcher) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}
