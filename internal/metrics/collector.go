// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpSearchSubmit = "search_submit"
	OpSearchPoll   = "search_poll"
	OpSearchFetch  = "search_fetch"
	OpSearchWrite  = "search_write"
	OpSearchCancel = "search_cancel"
	OpSearchDelete = "search_delete"
	OpKVRead       = "kv_read"
	OpKVWrite      = "kv_write"
	OpKVAdmin      = "kv_admin"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string  `json:"name"`
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64             `json:"uptime_seconds"`
	Operations    []OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.record(op, duration, false)
}

// RecordError records timing for an operation that failed.
func (c *Collector) RecordError(op string, duration time.Duration) {
	c.record(op, duration, true)
}

// Observe records the time elapsed since start, as an error when err != nil.
// Intended for use with defer.
func (c *Collector) Observe(op string, start time.Time, err error) {
	c.record(op, time.Since(start), err != nil)
}

func (c *Collector) record(op string, duration time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	if failed {
		m.Errors++
	}
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation.
func snapshotOp(name string, m *OperationMetrics) OperationSnapshot {
	return OperationSnapshot{
		Name:        name,
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all recorded operations,
// sorted by name.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Operations: []OperationSnapshot{}}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make([]OperationSnapshot, 0, len(c.ops))
	for name, m := range c.ops {
		if m.Count == 0 {
			continue
		}
		ops = append(ops, snapshotOp(name, m))
	}
	sort.Slice(ops, func(i, k int) bool { return ops[i].Name < ops[k].Name })

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    ops,
	}
}

// Get returns the snapshot for one operation, or false if it was never recorded.
func (s Snapshot) Get(op string) (OperationSnapshot, bool) {
	for _, o := range s.Operations {
		if o.Name == op {
			return o, true
		}
	}
	return OperationSnapshot{}, false
}
