// Package observability provides process metrics for Packforge.
package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects counters for build and release operations. The text
// rendering is Prometheus-compatible so long-running modes can expose it
// over HTTP for scraping.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	buildsTotal    atomic.Int64
	buildsFailed   atomic.Int64
	releasesTotal  atomic.Int64
	releasesFailed atomic.Int64
	resolvesTotal  atomic.Int64
	resolvesFailed atomic.Int64
	hookRunsTotal  atomic.Int64
	hookRunsFailed atomic.Int64

	// Gauges
	activeOperations atomic.Int64

	// Summaries track count and sum only.
	buildLatencyCount   atomic.Int64
	buildLatencySum     atomic.Int64
	releaseLatencyCount atomic.Int64
	releaseLatencySum   atomic.Int64
	resolveLatencyCount atomic.Int64
	resolveLatencySum   atomic.Int64

	// Per-build-system variant counters.
	variantBuilds       map[string]*atomic.Int64
	variantLatencyCount map[string]*atomic.Int64
	variantLatencySum   map[string]*atomic.Int64

	version   string
	startTime time.Time
}

// knownSystems lists build systems to pre-initialize metrics for, so the
// common path never takes the write lock.
var knownSystems = []string{"command"}

// NewMetrics creates a Metrics instance.
func NewMetrics(version string) *Metrics {
	variantBuilds := make(map[string]*atomic.Int64, len(knownSystems))
	variantLatencyCount := make(map[string]*atomic.Int64, len(knownSystems))
	variantLatencySum := make(map[string]*atomic.Int64, len(knownSystems))

	for _, system := range knownSystems {
		variantBuilds[system] = &atomic.Int64{}
		variantLatencyCount[system] = &atomic.Int64{}
		variantLatencySum[system] = &atomic.Int64{}
	}

	return &Metrics{
		variantBuilds:       variantBuilds,
		variantLatencyCount: variantLatencyCount,
		variantLatencySum:   variantLatencySum,
		version:             version,
		startTime:           time.Now(),
	}
}

// RecordBuild records a whole-package build operation.
func (m *Metrics) RecordBuild(success bool, duration time.Duration) {
	m.buildsTotal.Add(1)
	if !success {
		m.buildsFailed.Add(1)
	}
	m.buildLatencyCount.Add(1)
	m.buildLatencySum.Add(duration.Milliseconds())
}

// RecordRelease records a release operation.
func (m *Metrics) RecordRelease(success bool, duration time.Duration) {
	m.releasesTotal.Add(1)
	if !success {
		m.releasesFailed.Add(1)
	}
	m.releaseLatencyCount.Add(1)
	m.releaseLatencySum.Add(duration.Milliseconds())
}

// RecordResolve records a build context resolution.
func (m *Metrics) RecordResolve(success bool, duration time.Duration) {
	m.resolvesTotal.Add(1)
	if !success {
		m.resolvesFailed.Add(1)
	}
	m.resolveLatencyCount.Add(1)
	m.resolveLatencySum.Add(duration.Milliseconds())
}

// RecordHookRun records one delivery of a lifecycle event to the hook set.
func (m *Metrics) RecordHookRun(success bool) {
	m.hookRunsTotal.Add(1)
	if !success {
		m.hookRunsFailed.Add(1)
	}
}

// RecordVariantBuild records a single variant build under the named
// build system. Pre-initialized systems take the read lock only.
func (m *Metrics) RecordVariantBuild(system string, duration time.Duration) {
	m.mu.RLock()
	counter := m.variantBuilds[system]
	latencyCount := m.variantLatencyCount[system]
	latencySum := m.variantLatencySum[system]
	m.mu.RUnlock()

	if counter == nil {
		m.mu.Lock()
		if m.variantBuilds[system] == nil {
			m.variantBuilds[system] = &atomic.Int64{}
			m.variantLatencyCount[system] = &atomic.Int64{}
			m.variantLatencySum[system] = &atomic.Int64{}
		}
		counter = m.variantBuilds[system]
		latencyCount = m.variantLatencyCount[system]
		latencySum = m.variantLatencySum[system]
		m.mu.Unlock()
	}

	counter.Add(1)
	latencyCount.Add(1)
	latencySum.Add(duration.Milliseconds())
}

// IncrementActiveOperations marks a build or release as in flight.
func (m *Metrics) IncrementActiveOperations() {
	m.activeOperations.Add(1)
}

// DecrementActiveOperations marks a build or release as finished.
func (m *Metrics) DecrementActiveOperations() {
	m.activeOperations.Add(-1)
}

// Render returns the metrics in Prometheus text exposition format.
func (m *Metrics) Render() string {
	var sb strings.Builder

	sb.WriteString("# HELP packforge_info Build information\n")
	sb.WriteString("# TYPE packforge_info gauge\n")
	sb.WriteString(fmt.Sprintf("packforge_info{version=%q} 1\n\n", m.version))

	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString("# HELP packforge_uptime_seconds Uptime in seconds\n")
	sb.WriteString("# TYPE packforge_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("packforge_uptime_seconds %.2f\n\n", uptime))

	sb.WriteString("# HELP packforge_builds_total Package builds attempted\n")
	sb.WriteString("# TYPE packforge_builds_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_builds_total %d\n\n", m.buildsTotal.Load()))

	sb.WriteString("# HELP packforge_builds_failed_total Package builds that failed\n")
	sb.WriteString("# TYPE packforge_builds_failed_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_builds_failed_total %d\n\n", m.buildsFailed.Load()))

	sb.WriteString("# HELP packforge_build_duration_milliseconds Package build duration\n")
	sb.WriteString("# TYPE packforge_build_duration_milliseconds summary\n")
	sb.WriteString(fmt.Sprintf("packforge_build_duration_milliseconds_count %d\n", m.buildLatencyCount.Load()))
	sb.WriteString(fmt.Sprintf("packforge_build_duration_milliseconds_sum %d\n\n", m.buildLatencySum.Load()))

	sb.WriteString("# HELP packforge_releases_total Releases attempted\n")
	sb.WriteString("# TYPE packforge_releases_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_releases_total %d\n\n", m.releasesTotal.Load()))

	sb.WriteString("# HELP packforge_releases_failed_total Releases that failed\n")
	sb.WriteString("# TYPE packforge_releases_failed_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_releases_failed_total %d\n\n", m.releasesFailed.Load()))

	sb.WriteString("# HELP packforge_release_duration_milliseconds Release duration\n")
	sb.WriteString("# TYPE packforge_release_duration_milliseconds summary\n")
	sb.WriteString(fmt.Sprintf("packforge_release_duration_milliseconds_count %d\n", m.releaseLatencyCount.Load()))
	sb.WriteString(fmt.Sprintf("packforge_release_duration_milliseconds_sum %d\n\n", m.releaseLatencySum.Load()))

	sb.WriteString("# HELP packforge_resolves_total Build context resolutions attempted\n")
	sb.WriteString("# TYPE packforge_resolves_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_resolves_total %d\n\n", m.resolvesTotal.Load()))

	sb.WriteString("# HELP packforge_resolves_failed_total Build context resolutions that failed\n")
	sb.WriteString("# TYPE packforge_resolves_failed_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_resolves_failed_total %d\n\n", m.resolvesFailed.Load()))

	sb.WriteString("# HELP packforge_resolve_duration_milliseconds Build context resolution duration\n")
	sb.WriteString("# TYPE packforge_resolve_duration_milliseconds summary\n")
	sb.WriteString(fmt.Sprintf("packforge_resolve_duration_milliseconds_count %d\n", m.resolveLatencyCount.Load()))
	sb.WriteString(fmt.Sprintf("packforge_resolve_duration_milliseconds_sum %d\n\n", m.resolveLatencySum.Load()))

	sb.WriteString("# HELP packforge_hook_runs_total Lifecycle event deliveries to the hook set\n")
	sb.WriteString("# TYPE packforge_hook_runs_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_hook_runs_total %d\n\n", m.hookRunsTotal.Load()))

	sb.WriteString("# HELP packforge_hook_failures_total Hook runs that failed or cancelled\n")
	sb.WriteString("# TYPE packforge_hook_failures_total counter\n")
	sb.WriteString(fmt.Sprintf("packforge_hook_failures_total %d\n\n", m.hookRunsFailed.Load()))

	sb.WriteString("# HELP packforge_active_operations Builds or releases currently in progress\n")
	sb.WriteString("# TYPE packforge_active_operations gauge\n")
	sb.WriteString(fmt.Sprintf("packforge_active_operations %d\n\n", m.activeOperations.Load()))

	sb.WriteString("# HELP packforge_variant_builds_total Variant builds by build system\n")
	sb.WriteString("# TYPE packforge_variant_builds_total counter\n")

	m.mu.RLock()
	systems := make([]string, 0, len(m.variantBuilds))
	for system := range m.variantBuilds {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	for _, system := range systems {
		sb.WriteString(fmt.Sprintf("packforge_variant_builds_total{system=%q} %d\n",
			system, m.variantBuilds[system].Load()))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP packforge_variant_build_duration_milliseconds Variant build duration by build system\n")
	sb.WriteString("# TYPE packforge_variant_build_duration_milliseconds summary\n")
	for _, system := range systems {
		sb.WriteString(fmt.Sprintf("packforge_variant_build_duration_milliseconds_count{system=%q} %d\n",
			system, m.variantLatencyCount[system].Load()))
		sb.WriteString(fmt.Sprintf("packforge_variant_build_duration_milliseconds_sum{system=%q} %d\n",
			system, m.variantLatencySum[system].Load()))
	}
	m.mu.RUnlock()

	return sb.String()
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// text exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(m.Render()))
	})
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	variantBuilds := make(map[string]int64, len(m.variantBuilds))
	for system, count := range m.variantBuilds {
		variantBuilds[system] = count.Load()
	}

	return Snapshot{
		BuildsTotal:      m.buildsTotal.Load(),
		BuildsFailed:     m.buildsFailed.Load(),
		ReleasesTotal:    m.releasesTotal.Load(),
		ReleasesFailed:   m.releasesFailed.Load(),
		ResolvesTotal:    m.resolvesTotal.Load(),
		ResolvesFailed:   m.resolvesFailed.Load(),
		HookRunsTotal:    m.hookRunsTotal.Load(),
		HookRunsFailed:   m.hookRunsFailed.Load(),
		ActiveOperations: m.activeOperations.Load(),
		VariantBuilds:    variantBuilds,
		Uptime:           time.Since(m.startTime),
	}
}

// Snapshot is a point-in-time copy of the metrics counters.
type Snapshot struct {
	BuildsTotal      int64
	BuildsFailed     int64
	ReleasesTotal    int64
	ReleasesFailed   int64
	ResolvesTotal    int64
	ResolvesFailed   int64
	HookRunsTotal    int64
	HookRunsFailed   int64
	ActiveOperations int64
	VariantBuilds    map[string]int64
	Uptime           time.Duration
}

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
	initOnce          sync.Once
	initialized       bool
)

// Global returns the process-wide metrics instance, initializing it with
// an unknown version if InitGlobal has not run yet.
func Global() *Metrics {
	globalMetricsOnce.Do(func() {
		if !initialized {
			globalMetrics = NewMetrics("unknown")
		}
	})
	return globalMetrics
}

// InitGlobal initializes the process-wide metrics instance with version
// information. Call it early in startup, before anything calls Global.
func InitGlobal(version string) *Metrics {
	initOnce.Do(func() {
		initialized = true
		globalMetrics = NewMetrics(version)
	})
	globalMetricsOnce.Do(func() {})
	return globalMetrics
}
