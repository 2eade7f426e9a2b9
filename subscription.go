package livemetro

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SubscriptionManager shares one poller per station key across all
// subscribers of that key. The poller fires an immediate fetch when the
// first subscriber attaches, then one fetch per tick, fanning each result
// out to every current callback. It is torn down when the last
// subscriber detaches.
//
// The poll interval is taken from the first subscriber of a key; later
// subscribers share that cadence. Per-subscriber intervals are a known
// simplification left as is.
type SubscriptionManager struct {
	fetch func(ctx context.Context, key string) (*RealtimeTrainData, error)
	log   zerolog.Logger

	mu      sync.Mutex
	pollers map[string]*poller
	nextID  uint64
}

type poller struct {
	key      string
	interval time.Duration
	stop     chan struct{}

	mu        sync.Mutex
	callbacks map[uint64]func(*RealtimeTrainData)
}

func NewSubscriptionManager(
	fetch func(ctx context.Context, key string) (*RealtimeTrainData, error),
	log zerolog.Logger,
) *SubscriptionManager {
	return &SubscriptionManager{
		fetch:   fetch,
		log:     log,
		pollers: make(map[string]*poller),
	}
}

// Subscribe registers cb for periodic updates on key and returns a cancel
// function. Cancelling is idempotent; it stops future deliveries to cb
// but does not cancel a fetch already in flight, whose result still
// lands in the cache.
func (m *SubscriptionManager) Subscribe(key string, interval time.Duration, cb func(*RealtimeTrainData)) func() {
	m.mu.Lock()

	p, ok := m.pollers[key]
	if !ok {
		p = &poller{
			key:       key,
			interval:  interval,
			stop:      make(chan struct{}),
			callbacks: make(map[uint64]func(*RealtimeTrainData)),
		}
		m.pollers[key] = p
	}

	id := m.nextID
	m.nextID++

	p.mu.Lock()
	p.callbacks[id] = cb
	p.mu.Unlock()

	m.mu.Unlock()

	if !ok {
		go m.run(p)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.detach(p, id)
		})
	}
}

// ActivePollers returns the number of keys currently being polled.
func (m *SubscriptionManager) ActivePollers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pollers)
}

func (m *SubscriptionManager) detach(p *poller, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.mu.Lock()
	delete(p.callbacks, id)
	empty := len(p.callbacks) == 0
	p.mu.Unlock()

	if empty {
		close(p.stop)
		delete(m.pollers, p.key)
	}
}

func (m *SubscriptionManager) run(p *poller) {
	// First delivery happens right away; ticks only pace refreshes.
	m.deliver(p)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			m.deliver(p)
		}
	}
}

func (m *SubscriptionManager) deliver(p *poller) {
	ctx := m.log.WithContext(context.Background())

	v, err := m.fetch(ctx, p.key)
	if err != nil {
		if !IsExhausted(err) {
			m.log.Err(err).Str("key", p.key).Msg("poll fetch failed")
		}
		v = nil
	}

	p.mu.Lock()
	callbacks := make([]func(*RealtimeTrainData), 0, len(p.callbacks))
	for _, cb := range p.callbacks {
		callbacks = append(callbacks, cb)
	}
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(v)
	}
}
