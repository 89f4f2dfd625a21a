// Package health aggregates dependency probes into a readiness report.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Report statuses.
const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA authorizer.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Probe reports an error when its dependency is unusable.
type Probe func(ctx context.Context) error

type namedProbe struct {
	name  string
	probe Probe
}

// Report is the outcome of one Check. Checks maps probe name to "up" or the failure message.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// Healthy reports whether every probe passed.
func (r Report) Healthy() bool { return r.Status == StatusOperational }

// Checker runs registered probes concurrently, each bounded by timeout.
type Checker struct {
	mu      sync.RWMutex
	probes  []namedProbe
	timeout time.Duration
}

// NewChecker returns a Checker. timeout <= 0 uses 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Add registers a probe. A nil probe is ignored.
func (c *Checker) Add(name string, p Probe) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, namedProbe{name: name, probe: p})
}

// AddPinger registers a database probe. A nil pinger is ignored.
func (c *Checker) AddPinger(name string, p Pinger) {
	if p == nil {
		return
	}
	c.Add(name, p.PingContext)
}

// AddPolicy registers a policy engine probe. A nil checker is ignored.
func (c *Checker) AddPolicy(name string, p PolicyChecker) {
	if p == nil {
		return
	}
	c.Add(name, p.HealthCheck)
}

// Names returns the registered probe names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.probes))
	for _, p := range c.probes {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}

// Check runs every probe and returns the aggregated report.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	probes := append([]namedProbe(nil), c.probes...)
	c.mu.RUnlock()

	var mu sync.Mutex
	report := Report{Status: StatusOperational, Checks: make(map[string]string, len(probes)), CheckedAt: time.Now().UTC()}
	var g errgroup.Group
	for _, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			err := p.probe(pctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Checks[p.name] = err.Error()
				report.Status = StatusDegraded
				return nil
			}
			report.Checks[p.name] = "up"
			return nil
		})
	}
	_ = g.Wait()
	return report
}
