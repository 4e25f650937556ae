package observability

import (
	"strconv"
	"sync"
	"time"
)

// Engine counter names.
const (
	CounterPointsAwarded       = "points.awarded"
	CounterPointsDeducted      = "points.deducted"
	CounterPointsSpent         = "points.spent"
	CounterPointsBonus         = "points.bonus"
	CounterLedgerReplayed      = "ledger.replayed"
	CounterLedgerConflicts     = "ledger.conflicts"
	CounterAchievementUnlocked = "achievements.unlocked"
	CounterPurchases           = "marketplace.purchases"
	CounterEnrichmentFailures  = "enrichment.failures"
	CounterNotificationsSent   = "notifications.sent"
	CounterNotificationsFailed = "notifications.failed"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	engineCount  map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		engineCount:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Inc bumps an engine counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add bumps an engine counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineCount[name] += delta
}

// Count returns the current value of an engine counter.
func (m *Metrics) Count(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engineCount[name]
}

// Snapshot copies every counter group.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	out := map[string]map[string]int64{
		"requests": {},
		"errors":   {},
		"engine":   {},
	}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		out["requests"][k] = v
	}
	for k, v := range m.errorCount {
		out["errors"][k] = v
	}
	for k, v := range m.engineCount {
		out["engine"][k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
