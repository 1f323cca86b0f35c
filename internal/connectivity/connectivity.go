// Package connectivity tracks whether the marketplace API is reachable.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober checks reachability once
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber probes a health endpoint with GET
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// Probe succeeds on any 2xx response
func (p *HTTPProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// Options configures a Monitor
type Options struct {
	// Interval between probes in Run
	Interval time.Duration
	// Timeout of a single probe
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failed probes after
	// which the monitor reports disconnected
	FailureThreshold int
}

// Monitor holds the connected state and notifies subscribers of changes.
// It starts disconnected until the first successful probe.
type Monitor struct {
	prober Prober
	opts   Options
	logger *slog.Logger

	mu                  sync.Mutex
	connected           bool
	consecutiveFailures int
	override            *bool
	subs                map[int]chan bool
	nextSubID           int
}

// NewMonitor creates a monitor
func NewMonitor(prober Prober, opts Options, logger *slog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 1
	}
	return &Monitor{
		prober: prober,
		opts:   opts,
		logger: logger.With("component", "connectivity"),
		subs:   make(map[int]chan bool),
	}
}

// Connected reports the current state
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Subscribe returns a channel receiving the new state on every change and a
// function that cancels the subscription. The channel holds only the latest
// state; a slow reader skips intermediate transitions.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Check probes once and updates the state. Probes do not change the state
// while a manual override is set.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	err := m.prober.Probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.override != nil {
		return m.connected
	}
	if err == nil {
		m.consecutiveFailures = 0
		m.setLocked(true)
		return m.connected
	}

	m.consecutiveFailures++
	m.logger.Debug("probe failed", "failures", m.consecutiveFailures, "err", err)
	if m.consecutiveFailures >= m.opts.FailureThreshold {
		m.setLocked(false)
	}
	return m.connected
}

// Run probes immediately and then on every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Set forces the state and ignores probes until Release is called
func (m *Monitor) Set(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = &connected
	m.setLocked(connected)
}

// Release drops a manual override. The state is kept until the next probe.
func (m *Monitor) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = nil
	m.consecutiveFailures = 0
}

func (m *Monitor) setLocked(connected bool) {
	if m.connected == connected {
		return
	}
	m.connected = connected
	if connected {
		m.logger.Info("connection restored")
	} else {
		m.logger.Warn("connection lost")
	}

	for _, ch := range m.subs {
		// drop the unread previous state so the latest one wins
		select {
		case <-ch:
		default:
		}
		ch <- connected
	}
}
