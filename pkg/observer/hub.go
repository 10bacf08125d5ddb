// Package observer delivers values to subscribers in publish order.
//
// Publish never blocks: values are queued and handed to subscribers by a
// single dispatcher goroutine, so a subscriber may call back into the
// publisher without deadlocking. A subscriber that panics is logged and
// skipped; the hub keeps delivering.
package observer

import (
	"cmp"
	"slices"
	"sync"

	"go.uber.org/zap"
)

type delivery[T any] struct {
	target uint64 // 0 means every subscriber registered by publish time
	upTo   uint64
	value  T
}

// Hub fans out published values to registered callbacks
type Hub[T any] struct {
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []delivery[T]
	subs    map[uint64]func(T)
	nextID  uint64
	closed  bool
	stopped chan struct{}
}

// New starts a hub and its dispatcher goroutine
func New[T any](logger *zap.Logger) *Hub[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub[T]{
		logger:  logger,
		subs:    make(map[uint64]func(T)),
		stopped: make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	go h.dispatch()
	return h
}

// Subscribe registers fn and returns a disposer. Calling the disposer more
// than once has no further effect.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	_, dispose := h.register(fn)
	return dispose
}

// SubscribeWith registers fn and queues initial for fn alone, ahead of any
// value published after this call
func (h *Hub[T]) SubscribeWith(fn func(T), initial T) func() {
	id, dispose := h.register(fn)

	h.mu.Lock()
	if !h.closed {
		h.queue = append(h.queue, delivery[T]{target: id, value: initial})
		h.cond.Signal()
	}
	h.mu.Unlock()

	return dispose
}

func (h *Hub[T]) register(fn func(T)) (uint64, func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if !h.closed {
		h.subs[id] = fn
	}
	h.mu.Unlock()

	var once sync.Once
	return id, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish queues value for every current subscriber
func (h *Hub[T]) Publish(value T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.queue = append(h.queue, delivery[T]{upTo: h.nextID, value: value})
	h.cond.Signal()
}

// Len returns the number of live subscriptions
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close stops accepting values. Values queued before Close are still
// delivered; Done is closed after the last of them. Close does not wait for
// the dispatcher, so a subscriber may close the hub it is called from.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.cond.Signal()
}

// Done is closed once the dispatcher has delivered everything queued before
// Close and exited
func (h *Hub[T]) Done() <-chan struct{} {
	return h.stopped
}

func (h *Hub[T]) dispatch() {
	defer close(h.stopped)

	for {
		h.mu.Lock()
		for len(h.queue) == 0 && !h.closed {
			h.cond.Wait()
		}
		if len(h.queue) == 0 && h.closed {
			h.mu.Unlock()
			return
		}
		next := h.queue[0]
		h.queue = h.queue[1:]
		targets := h.targets(next)
		h.mu.Unlock()

		for _, t := range targets {
			h.deliver(t.id, t.fn, next.value)
		}
	}
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// targets must be called with h.mu held
func (h *Hub[T]) targets(d delivery[T]) []subscriber[T] {
	if d.target != 0 {
		fn, ok := h.subs[d.target]
		if !ok {
			return nil
		}
		return []subscriber[T]{{id: d.target, fn: fn}}
	}

	out := make([]subscriber[T], 0, len(h.subs))
	for id, fn := range h.subs {
		if id <= d.upTo {
			out = append(out, subscriber[T]{id: id, fn: fn})
		}
	}
	slices.SortFunc(out, func(a, b subscriber[T]) int {
		return cmp.Compare(a.id, b.id)
	})
	return out
}

func (h *Hub[T]) deliver(id uint64, fn func(T), value T) {
	// a subscriber disposed while this value was in flight is skipped
	h.mu.Lock()
	_, live := h.subs[id]
	h.mu.Unlock()
	if !live {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("observer callback panicked",
				zap.Uint64("subscription", id),
				zap.Any("panic", r),
			)
		}
	}()
	fn(value)
}
