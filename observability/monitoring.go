package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats is the latest sample of the relay process itself.
type ProcessStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Status     string  `json:"status"`
	SampledAt  string  `json:"sampled_at,omitempty"`
}

// RelayStats is the snapshot served on the debug endpoint.
type RelayStats struct {
	SessionsOpened      uint64 `json:"sessions_opened"`
	SessionsActive      int64  `json:"sessions_active"`
	SessionsRejected    uint64 `json:"sessions_rejected"`
	EventsPublished     uint64 `json:"events_published"`
	EventsDelivered     uint64 `json:"events_delivered"`
	EventsDropped       uint64 `json:"events_dropped"`
	PersistenceFailures uint64 `json:"persistence_failures"`
	Conversations       int    `json:"conversations"`

	Goroutines int          `json:"goroutines"`
	AllocMemMb uint64       `json:"alloc_mem_mb"`
	NumGC      uint32       `json:"num_gc"`
	Process    ProcessStats `json:"process"`
}

// MonitoringManager counts relay activity. Counters are updated with atomics
// from session goroutines; the process sample is guarded by mu.
type MonitoringManager struct {
	log *slog.Logger

	sessionsOpened      uint64
	sessionsActive      int64
	sessionsRejected    uint64
	eventsPublished     uint64
	eventsDelivered     uint64
	eventsDropped       uint64
	persistenceFailures uint64

	mu            sync.RWMutex
	process       ProcessStats
	conversations func() int
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

// TrackConversations registers the source of the live conversation count.
func (mm *MonitoringManager) TrackConversations(count func() int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.conversations = count
}

func (mm *MonitoringManager) SessionOpened() {
	atomic.AddUint64(&mm.sessionsOpened, 1)
	atomic.AddInt64(&mm.sessionsActive, 1)
}

func (mm *MonitoringManager) SessionClosed() {
	atomic.AddInt64(&mm.sessionsActive, -1)
}

func (mm *MonitoringManager) SessionRejected() {
	atomic.AddUint64(&mm.sessionsRejected, 1)
}

func (mm *MonitoringManager) EventPublished(receivers int) {
	atomic.AddUint64(&mm.eventsPublished, 1)
	if receivers > 0 {
		atomic.AddUint64(&mm.eventsDelivered, uint64(receivers))
	}
}

func (mm *MonitoringManager) EventsDropped(n uint64) {
	atomic.AddUint64(&mm.eventsDropped, n)
}

func (mm *MonitoringManager) PersistenceFailed() {
	atomic.AddUint64(&mm.persistenceFailures, 1)
}

// UpdateProcess stores the latest heartbeat sample.
func (mm *MonitoringManager) UpdateProcess(stats ProcessStats) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	stats.SampledAt = time.Now().UTC().Format(time.RFC3339)
	mm.process = stats
}

// Snapshot returns a point-in-time copy of all counters.
func (mm *MonitoringManager) Snapshot() RelayStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.RLock()
	process := mm.process
	count := mm.conversations
	mm.mu.RUnlock()

	stats := RelayStats{
		SessionsOpened:      atomic.LoadUint64(&mm.sessionsOpened),
		SessionsActive:      atomic.LoadInt64(&mm.sessionsActive),
		SessionsRejected:    atomic.LoadUint64(&mm.sessionsRejected),
		EventsPublished:     atomic.LoadUint64(&mm.eventsPublished),
		EventsDelivered:     atomic.LoadUint64(&mm.eventsDelivered),
		EventsDropped:       atomic.LoadUint64(&mm.eventsDropped),
		PersistenceFailures: atomic.LoadUint64(&mm.persistenceFailures),
		Goroutines:          runtime.NumGoroutine(),
		AllocMemMb:          m.Alloc / 1024 / 1024,
		NumGC:               m.NumGC,
		Process:             process,
	}
	if count != nil {
		stats.Conversations = count()
	}
	return stats
}

// LogSummary writes the counters at info level.
func (mm *MonitoringManager) LogSummary() {
	s := mm.Snapshot()
	mm.log.Info("Relay stats",
		"sessions_active", s.SessionsActive,
		"sessions_opened", s.SessionsOpened,
		"sessions_rejected", s.SessionsRejected,
		"events_published", s.EventsPublished,
		"events_dropped", s.EventsDropped,
		"persistence_failures", s.PersistenceFailures,
		"conversations", s.Conversations,
		"goroutines", s.Goroutines,
		"alloc_mb", s.AllocMemMb,
		"cpu_percent", s.Process.CPUPercent,
	)
}
