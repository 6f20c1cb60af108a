package studio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HealthState classifies a monitored server connection.
type HealthState string

// HealthState values.
const (
	HealthHealthy     HealthState = "healthy"
	HealthDegraded    HealthState = "degraded"
	HealthUnreachable HealthState = "unreachable"
)

// HealthReport is a point-in-time snapshot of a monitored connection.
type HealthReport struct {
	State               HealthState   `json:"state"`
	PingsSent           int           `json:"pingsSent"`
	PingsFailed         int           `json:"pingsFailed"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	LastLatency         time.Duration `json:"lastLatency"`
	LastChecked         time.Time     `json:"lastChecked"`
}

// SendFunc transmits one message to the monitored server. Both taps' Send
// methods satisfy it.
type SendFunc func(ctx context.Context, msg JSONRPCMessage) error

// Monitor tracks the health of one inspected server by sending periodic ping
// requests and correlating the responses. The owner of the server's message
// stream must feed every received message to Observe so latencies can be
// measured. All methods are safe for concurrent use.
type Monitor struct {
	serverID string
	send     SendFunc
	logger   *slog.Logger

	interval         time.Duration
	failureThreshold int

	mu      sync.Mutex
	pending map[MustString]time.Time
	report  HealthReport
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorLogger sets the logger used by the monitor.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMonitorInterval sets the ping interval. The default is 30 seconds.
func WithMonitorInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// WithMonitorFailureThreshold sets how many consecutive failed pings mark the
// server unreachable. The default is 3.
func WithMonitorFailureThreshold(threshold int) MonitorOption {
	return func(m *Monitor) {
		m.failureThreshold = threshold
	}
}

// NewMonitor creates a monitor that pings through send.
func NewMonitor(serverID string, send SendFunc, options ...MonitorOption) *Monitor {
	m := &Monitor{
		serverID:         serverID,
		send:             send,
		logger:           slog.Default(),
		interval:         30 * time.Second,
		failureThreshold: 3,
		pending:          make(map[MustString]time.Time),
		report:           HealthReport{State: HealthHealthy},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Run pings the server on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ping(ctx)
		}
	}
}

func (m *Monitor) ping(ctx context.Context) {
	// A ping still unanswered after a full interval counts as failed.
	m.expirePending()

	id := MustString(uuid.New().String())

	m.mu.Lock()
	m.pending[id] = time.Now()
	m.report.PingsSent++
	m.mu.Unlock()

	err := m.send(ctx, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  methodPing,
	})
	if err != nil {
		m.logger.Warn("ping failed",
			slog.String("server", m.serverID),
			slog.String("err", err.Error()))

		m.mu.Lock()
		delete(m.pending, id)
		m.recordFailureLocked()
		m.mu.Unlock()
	}
}

// Observe inspects a message received from the server and, when it answers an
// outstanding ping, updates latency and health state. Non-ping messages are
// ignored, so the whole stream can be fed through unconditionally.
func (m *Monitor) Observe(msg JSONRPCMessage) {
	if msg.Result == nil && msg.Error == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	started, ok := m.pending[msg.ID]
	if !ok {
		return
	}
	delete(m.pending, msg.ID)

	m.report.LastLatency = time.Since(started)
	m.report.LastChecked = time.Now()
	m.report.ConsecutiveFailures = 0
	m.report.State = HealthHealthy
}

// Report returns the current health snapshot.
func (m *Monitor) Report() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.report
}

func (m *Monitor) expirePending() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, started := range m.pending {
		if time.Since(started) < m.interval {
			continue
		}
		delete(m.pending, id)
		m.recordFailureLocked()
	}
}

func (m *Monitor) recordFailureLocked() {
	m.report.PingsFailed++
	m.report.ConsecutiveFailures++
	m.report.LastChecked = time.Now()

	switch {
	case m.report.ConsecutiveFailures >= m.failureThreshold:
		m.report.State = HealthUnreachable
	default:
		m.report.State = HealthDegraded
	}
}
