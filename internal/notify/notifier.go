// Package notify fans lifecycle events out to webhooks and live listeners
// without ever blocking the lifecycle operation that produced them.
package notify

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const deliveryTimeout = 30 * time.Second

type namedObserver struct {
	name     string
	observer Observer
}

// Notifier queues events and delivers them to registered observers. Events
// of one session always land on the same worker, so they are delivered in
// emission order; different sessions are delivered in parallel.
type Notifier struct {
	logger    zerolog.Logger
	shards    []chan Event
	observers []namedObserver

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// New creates a notifier with workers delivery goroutines, each with a queue
// of queueSize events.
func New(logger zerolog.Logger, workers, queueSize int) *Notifier {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	n := &Notifier{logger: logger, shards: make([]chan Event, workers)}
	for i := range n.shards {
		n.shards[i] = make(chan Event, queueSize)
	}
	return n
}

// Register adds an observer. Observers must be registered before Start.
func (n *Notifier) Register(name string, observer Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		n.logger.Warn().Str("observer", name).Msg("Observer registered after start, ignoring")
		return
	}
	n.observers = append(n.observers, namedObserver{name: name, observer: observer})
	n.logger.Debug().Str("observer", name).Msg("Registered observer")
}

// Start launches the delivery workers
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true
	for _, shard := range n.shards {
		n.wg.Add(1)
		go n.worker(shard)
	}
}

// Emit enqueues ev. It never blocks: when the queue of the session's worker is
// full, or the notifier is closed, the event is dropped and false returned.
func (n *Notifier) Emit(ev Event) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return false
	}

	select {
	case n.shards[n.shardOf(ev.SessionID)] <- ev:
		return true
	default:
		n.dropped.Add(1)
		n.logger.Warn().
			Str("session", ev.SessionID).
			Str("event", string(ev.Kind)).
			Msg("Event queue full, dropping event")
		return false
	}
}

// Dropped returns how many events were discarded because a queue was full
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	started := n.started
	for _, shard := range n.shards {
		close(shard)
	}
	n.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) shardOf(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(n.shards)))
}

// worker processes events from one shard
func (n *Notifier) worker(events <-chan Event) {
	defer n.wg.Done()
	for ev := range events {
		n.deliver(ev)
	}
}

func (n *Notifier) deliver(ev Event) {
	n.mu.RLock()
	observers := n.observers
	n.mu.RUnlock()

	for _, o := range observers {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := safeDeliver(ctx, o.observer, ev)
		cancel()
		if err != nil {
			n.logger.Error().
				Err(err).
				Str("observer", o.name).
				Str("session", ev.SessionID).
				Str("event", string(ev.Kind)).
				Msg("Event delivery failed")
		}
	}
}

func safeDeliver(ctx context.Context, o Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return o.OnEvent(ctx, ev)
}
