package observability

import (
	"sync/atomic"
	"time"
)

// MonitoringStats is a point-in-time copy of the relay counters.
type MonitoringStats struct {
	ActiveSessions     int64     `json:"active_sessions"`
	RegisteredSessions uint64    `json:"registered_sessions"`
	Published          uint64    `json:"published"`
	Delivered          uint64    `json:"delivered"`
	DroppedByLag       uint64    `json:"dropped_by_lag"`
	ProtocolViolations uint64    `json:"protocol_violations"`
	Since              time.Time `json:"since"`
}

// MonitoringManager keeps relay-wide counters updated by every session.
// All methods are safe for concurrent use.
type MonitoringManager struct {
	startedAt          time.Time
	ActiveSessions     int64
	RegisteredSessions uint64
	Published          uint64
	Delivered          uint64
	DroppedByLag       uint64
	ProtocolViolations uint64
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{startedAt: time.Now().UTC()}
}

func (mm *MonitoringManager) SessionOpened() {
	atomic.AddInt64(&mm.ActiveSessions, 1)
}

func (mm *MonitoringManager) SessionClosed() {
	atomic.AddInt64(&mm.ActiveSessions, -1)
}

func (mm *MonitoringManager) IncrRegistered() {
	atomic.AddUint64(&mm.RegisteredSessions, 1)
}

func (mm *MonitoringManager) IncrPublished() {
	atomic.AddUint64(&mm.Published, 1)
}

func (mm *MonitoringManager) IncrDelivered() {
	atomic.AddUint64(&mm.Delivered, 1)
}

// AddDropped records envelopes a lagging subscriber never consumed.
func (mm *MonitoringManager) AddDropped(n uint64) {
	atomic.AddUint64(&mm.DroppedByLag, n)
}

func (mm *MonitoringManager) IncrProtocolViolations() {
	atomic.AddUint64(&mm.ProtocolViolations, 1)
}

func (mm *MonitoringManager) Snapshot() MonitoringStats {
	return MonitoringStats{
		ActiveSessions:     atomic.LoadInt64(&mm.ActiveSessions),
		RegisteredSessions: atomic.LoadUint64(&mm.RegisteredSessions),
		Published:          atomic.LoadUint64(&mm.Published),
		Delivered:          atomic.LoadUint64(&mm.Delivered),
		DroppedByLag:       atomic.LoadUint64(&mm.DroppedByLag),
		ProtocolViolations: atomic.LoadUint64(&mm.ProtocolViolations),
		Since:              mm.startedAt,
	}
}

// LogAttrs flattens the snapshot into slog key/values.
func (s MonitoringStats) LogAttrs() []any {
	return []any{
		"active_sessions", s.ActiveSessions,
		"registered_sessions", s.RegisteredSessions,
		"published", s.Published,
		"delivered", s.Delivered,
		"dropped_by_lag", s.DroppedByLag,
		"protocol_violations", s.ProtocolViolations,
		"uptime", time.Since(s.Since).Round(time.Second).String(),
	}
}
