package syncer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"spartan-crm/prometheus"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 5 * time.Second
	probePath            = "/healthz"
)

// Connectivity reports whether the remote CRM is reachable and announces changes
type Connectivity interface {
	Online() bool
	// Subscribe returns a channel that receives the new state on every
	// transition, and a func that cancels the subscription
	Subscribe() (<-chan bool, func())
}

// broadcaster tracks the current state and fans transitions out to subscribers
type broadcaster struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]chan bool
	nextID int
}

func (b *broadcaster) Online() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.online
}

func (b *broadcaster) Subscribe() (<-chan bool, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan bool)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan bool, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// set records state and reports whether it changed
func (b *broadcaster) set(online bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.online == online {
		return false
	}
	b.online = online
	for _, ch := range b.subs {
		// a slow subscriber only needs the latest state
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

// StaticConnectivity is switched by hand. Used for forced modes and tests.
type StaticConnectivity struct {
	broadcaster
}

func NewStaticConnectivity(online bool) *StaticConnectivity {
	s := &StaticConnectivity{}
	s.online = online
	return s
}

// SetOnline changes the state, notifying subscribers on a transition
func (s *StaticConnectivity) SetOnline(online bool) {
	s.set(online)
}

// Monitor probes the remote CRM over HTTP. Any HTTP response counts as
// reachable; only transport failures mean offline.
type Monitor struct {
	broadcaster
	client   *resty.Client
	interval time.Duration
	logger   *zap.Logger
}

func NewMonitor(baseURL string, interval, timeout time.Duration, log *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if log == nil {
		log = zap.L()
	}
	base := strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/graphql")
	return &Monitor{
		client:   resty.New().SetBaseURL(base).SetTimeout(timeout),
		interval: interval,
		logger:   log,
	}
}

// Run probes immediately and then every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe performs one reachability check and returns the new state
func (m *Monitor) Probe(ctx context.Context) bool {
	_, err := m.client.R().SetContext(ctx).Get(probePath)
	online := err == nil
	if ctx.Err() != nil {
		return m.Online()
	}

	prometheus.SetOnline(online)
	if m.set(online) {
		if online {
			m.logger.Info("Remote CRM reachable")
		} else {
			m.logger.Warn("Remote CRM unreachable", zap.Error(err))
		}
	}
	return online
}
