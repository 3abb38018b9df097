// internal/events/registry.go
//
// Package events multiplexes the ledger's event feed. Exactly one underlying
// stream exists per event name regardless of how many logical handlers
// register; fan-out is internal. Handlers must tolerate duplicate delivery —
// in this system they do, because every handler refreshes rather than
// applying a delta.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

// Handler consumes one decoded domain event.
type Handler func(models.Event)

// Handle releases one logical subscription. Release is idempotent and must
// run on every exit path of the owning scope; the engine defers all releases
// in its teardown.
type Handle struct {
	once    sync.Once
	release func()
}

// Release detaches the handler. When the last handler for an event name is
// released, the underlying stream is closed.
func (h *Handle) Release() {
	h.once.Do(h.release)
}

// subscription is the single underlying stream for one event name.
type subscription struct {
	name     models.EventName
	mu       sync.Mutex
	handlers map[uuid.UUID]Handler
	stop     func()
	dead     bool
}

func (s *subscription) snapshot() []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	return out
}

func (s *subscription) setStop(stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = stop
	if s.dead && stop != nil {
		stop()
	}
}

func (s *subscription) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
	if s.stop != nil {
		s.stop()
	}
}

func (s *subscription) isDead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}

// Registry owns the per-event-name streams and their dispatch goroutines.
// Dispatch for one name is sequential, preserving the feed's per-room order.
type Registry struct {
	feed       ledger.Feed
	log        *logrus.Logger
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[models.EventName]*subscription
}

// NewRegistry creates a registry over feed. retryDelay bounds how fast a
// dropped stream is re-established.
func NewRegistry(feed ledger.Feed, retryDelay time.Duration, log *logrus.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		feed:       feed,
		log:        log,
		retryDelay: retryDelay,
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[models.EventName]*subscription),
	}
}

// Subscribe registers handler for the named event and returns its release
// handle. The first subscriber for a name opens the underlying stream; later
// subscribers share it.
func (r *Registry) Subscribe(name models.EventName, handler Handler) *Handle {
	id := uuid.New()

	r.mu.Lock()
	if r.ctx.Err() != nil {
		// Closed registry: no stream may be opened or recorded.
		r.mu.Unlock()
		return &Handle{release: func() {}}
	}
	sub, ok := r.subs[name]
	if !ok {
		sub = &subscription{
			name:     name,
			handlers: make(map[uuid.UUID]Handler),
		}
		r.subs[name] = sub
		go r.run(sub)
	}
	sub.mu.Lock()
	sub.handlers[id] = handler
	sub.mu.Unlock()
	r.mu.Unlock()

	return &Handle{release: func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		sub.mu.Lock()
		delete(sub.handlers, id)
		empty := len(sub.handlers) == 0
		sub.mu.Unlock()

		if empty {
			sub.kill()
			delete(r.subs, name)
		}
	}}
}

// run owns the stream for one event name: it (re)subscribes, dispatches, and
// re-establishes the stream after a transport drop. It exits when the last
// handler is released or the registry closes.
func (r *Registry) run(sub *subscription) {
	for {
		if r.ctx.Err() != nil || sub.isDead() {
			return
		}

		ch, stop, err := r.feed.Subscribe(r.ctx, sub.name)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"event": sub.name,
				"error": err,
			}).Warn("event subscribe failed; retrying")
			if !r.sleep() {
				return
			}
			continue
		}
		sub.setStop(stop)

		for raw := range ch {
			ev, err := models.DecodeEvent(raw)
			if err != nil {
				r.log.WithFields(logrus.Fields{
					"event": sub.name,
					"error": err,
				}).Warn("dropping undecodable event")
				continue
			}
			for _, h := range sub.snapshot() {
				h(ev)
			}
		}

		// Stream closed: either released/shutdown, or a transport drop.
		if r.ctx.Err() != nil || sub.isDead() {
			return
		}
		r.log.WithField("event", sub.name).Warn("event stream lost; resubscribing")
		if !r.sleep() {
			return
		}
	}
}

// sleep waits the retry delay, returning false if the registry closed.
func (r *Registry) sleep() bool {
	select {
	case <-time.After(r.retryDelay):
		return true
	case <-r.ctx.Done():
		return false
	}
}

// ActiveStreams reports how many underlying streams are open. Used by tests
// to assert subscription cardinality.
func (r *Registry) ActiveStreams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close tears the registry down, stopping every stream.
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, sub := range r.subs {
		sub.kill()
		delete(r.subs, name)
	}
}
