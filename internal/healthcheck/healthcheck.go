package healthcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/item-enricher/internal/metrics"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"

	defaultProbeTimeout = 2 * time.Second
)

// Probe returns nil when the component is healthy.
type Probe func(ctx context.Context) error

type ComponentStatus struct {
	Status    string    `json:"status"`
	Critical  bool      `json:"critical"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

type Report struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}

type component struct {
	name     string
	critical bool
	probe    Probe
}

type Monitor struct {
	mutex      sync.RWMutex
	components []component
	statuses   map[string]ComponentStatus
	interval   time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	collector  *metrics.Collector
}

// NewMonitor builds a Monitor. collector may be nil.
func NewMonitor(interval time.Duration, logger *slog.Logger, collector *metrics.Collector) *Monitor {
	return &Monitor{
		statuses:  make(map[string]ComponentStatus),
		interval:  interval,
		timeout:   defaultProbeTimeout,
		logger:    logger,
		collector: collector,
	}
}

// Register adds a component. It must be called before Run.
func (m *Monitor) Register(name string, critical bool, probe Probe) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.components = append(m.components, component{name: name, critical: critical, probe: probe})
}

// Run checks every component immediately and then on every interval until
// ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health check stopped")
			return

		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes every component concurrently and returns the fresh report.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mutex.RLock()
	components := append([]component(nil), m.components...)
	m.mutex.RUnlock()

	results := make([]ComponentStatus, len(components))

	var g errgroup.Group
	for i, c := range components {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			status := ComponentStatus{Status: StatusUp, Critical: c.critical, CheckedAt: time.Now()}
			if err := c.probe(probeCtx); err != nil {
				status.Status = StatusDown
				status.Error = err.Error()
			}
			results[i] = status
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range components {
		m.update(c.name, results[i])
	}

	return m.Report()
}

func (m *Monitor) update(name string, status ComponentStatus) {
	m.mutex.Lock()
	previous, seen := m.statuses[name]
	m.statuses[name] = status
	m.mutex.Unlock()

	if seen && previous.Status == status.Status {
		return
	}

	healthy := status.Status == StatusUp
	m.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventHealthChanged,
		Component: name,
		Healthy:   healthy,
	})

	switch {
	case healthy && seen:
		m.logger.Info("Component is back up", slog.String("component", name))
	case !healthy:
		m.logger.Warn("Component is down",
			slog.String("component", name),
			slog.Bool("critical", status.Critical),
			slog.String("error", status.Error))
	}
}

// Report returns the last known status without probing.
func (m *Monitor) Report() Report {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentStatus, len(m.statuses)),
	}
	for name, status := range m.statuses {
		report.Components[name] = status
		if status.Critical && status.Status == StatusDown {
			report.Status = StatusDown
		}
	}

	return report
}
