package relay

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mossy-p/signaling-relay/internal/metrics"
)

// DefaultQueueSize is the capacity of each relay's command queue.
const DefaultQueueSize = 24

// Observer is started in its own goroutine for every relay the registry
// creates. It must return once ctx is done.
type Observer func(ctx context.Context, r *Relay)

// Option configures a Registry.
type Option func(*Registry)

// WithQueueSize sets the command queue capacity of new relays.
func WithQueueSize(n int) Option {
	return func(reg *Registry) {
		if n > 0 {
			reg.queueSize = n
		}
	}
}

// WithObserver registers an observer started for each new relay.
func WithObserver(o Observer) Option {
	return func(reg *Registry) { reg.observers = append(reg.observers, o) }
}

// Registry maps room names to relays. Relays are created on first use and live
// until ctx is cancelled; empty rooms are not torn down.
type Registry struct {
	ctx       context.Context
	log       *zap.Logger
	queueSize int
	observers []Observer

	mu    sync.RWMutex
	rooms map[string]*Relay
}

// NewRegistry returns an empty registry whose relays stop when ctx is done.
func NewRegistry(ctx context.Context, log *zap.Logger, opts ...Option) *Registry {
	reg := &Registry{
		ctx:       ctx,
		log:       log.Named("relay"),
		queueSize: DefaultQueueSize,
		rooms:     make(map[string]*Relay),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// GetOrCreate returns the relay for name, starting it if this is the first
// request for the room. Concurrent callers always receive the same relay.
func (reg *Registry) GetOrCreate(name string) *Relay {
	reg.mu.RLock()
	r, ok := reg.rooms[name]
	reg.mu.RUnlock()
	if ok {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok = reg.rooms[name]; ok {
		return r
	}

	r = newRelay(name, reg.queueSize, reg.ctx.Done(), reg.log)
	reg.rooms[name] = r
	go r.run()
	for _, o := range reg.observers {
		go o(reg.ctx, r)
	}

	metrics.Rooms.Inc()
	reg.log.Info("room created", zap.String("room", name))
	return r
}

// Lookup returns the relay for name without creating it.
func (reg *Registry) Lookup(name string) (*Relay, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[name]
	return r, ok
}

// Rooms returns the names of all rooms created so far, sorted.
func (reg *Registry) Rooms() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.rooms))
	for name := range reg.rooms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
