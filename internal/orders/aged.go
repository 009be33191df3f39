package orders

import (
	"context"
	"sync"
	"time"

	"github.com/mgHariom/orderly/pkg/logger"
)

// DefaultAgedThreshold is the age after which an entry raises an alert.
const DefaultAgedThreshold = 24 * time.Hour

type EntryKind string

const (
	KindOrder   EntryKind = "order"
	KindPending EntryKind = "pending"
)

type AgedAlert struct {
	EntryID     string        `json:"entry_id"`
	GroupKey    string        `json:"group_key"`
	Kind        EntryKind     `json:"kind"`
	Age         time.Duration `json:"age"`
	AgeExceeded bool          `json:"age_exceeded"`
}

// AlertedSet holds the entries that already raised an alert.
type AlertedSet map[string]struct{}

func alertKey(kind EntryKind, id string) string { return string(kind) + ":" + id }

func (s AlertedSet) Has(kind EntryKind, id string) bool {
	_, ok := s[alertKey(kind, id)]
	return ok
}

// ScanAged returns an alert for every entry older than threshold that is not
// yet in alerted, plus the set extended with those entries. alerted itself is
// left untouched.
func ScanAged(history []Order, pending []PendingBatch, now time.Time, threshold time.Duration, alerted AlertedSet) ([]AgedAlert, AlertedSet) {
	next := make(AlertedSet, len(alerted))
	for k := range alerted {
		next[k] = struct{}{}
	}

	var alerts []AgedAlert
	check := func(kind EntryKind, id, group string, at time.Time) {
		age := now.Sub(at)
		if age <= threshold {
			return
		}
		k := alertKey(kind, id)
		if _, done := next[k]; done {
			return
		}
		next[k] = struct{}{}
		alerts = append(alerts, AgedAlert{EntryID: id, GroupKey: group, Kind: kind, Age: age, AgeExceeded: true})
	}

	for _, o := range history {
		check(KindOrder, o.ID, o.GroupKey, o.OccurredAt)
	}
	for _, b := range pending {
		check(KindPending, b.ID, b.GroupKey, b.CreatedAt)
	}
	return alerts, next
}

// Monitor runs ScanAged periodically. The alerted set lives for the life of
// the Monitor, so each entry alerts at most once per process.
type Monitor struct {
	pending   *PendingOrderStore
	history   *OrderHistoryStore
	publisher Publisher
	log       logger.Logger
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time
	producer  string

	mu      sync.Mutex
	alerted AlertedSet
	emitted []AgedAlert
}

type MonitorConfig struct {
	Threshold time.Duration
	Interval  time.Duration
	Publisher Publisher
	Logger    logger.Logger
	Now       func() time.Time
	Producer  string
}

func NewMonitor(pending *PendingOrderStore, history *OrderHistoryStore, cfg MonitorConfig) *Monitor {
	m := &Monitor{
		pending:   pending,
		history:   history,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		threshold: cfg.Threshold,
		interval:  cfg.Interval,
		now:       cfg.Now,
		producer:  cfg.Producer,
		alerted:   AlertedSet{},
	}
	if m.publisher == nil {
		m.publisher = NopPublisher{}
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.threshold <= 0 {
		m.threshold = DefaultAgedThreshold
	}
	if m.interval <= 0 {
		m.interval = time.Minute
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.producer == "" {
		m.producer = "orderly"
	}
	m.log = m.log.WithFields(logger.String("component", "aged-monitor"))
	return m
}

// Run scans once immediately, then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		if _, err := m.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn("aged scan failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// ScanOnce reads both stores and emits alerts for newly aged entries.
func (m *Monitor) ScanOnce(ctx context.Context) ([]AgedAlert, error) {
	history, err := m.history.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	pending, err := m.pending.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()

	m.mu.Lock()
	alerts, next := ScanAged(history, pending, now, m.threshold, m.alerted)
	m.alerted = next
	m.emitted = append(m.emitted, alerts...)
	m.mu.Unlock()

	for _, a := range alerts {
		m.log.Warn("entry exceeded age threshold",
			logger.String("entry_id", a.EntryID),
			logger.String("group_key", a.GroupKey),
			logger.String("kind", string(a.Kind)),
			logger.Any("age", a.Age),
		)
		env, err := NewEnvelope(EventEntryAged, m.producer, a.EntryID, EntryAgedPayload{
			EntryID:      a.EntryID,
			GroupKey:     a.GroupKey,
			Kind:         a.Kind,
			AgeSec:       int64(a.Age / time.Second),
			ThresholdSec: int64(m.threshold / time.Second),
		}, now)
		if err != nil {
			continue
		}
		if err := m.publisher.Publish(ctx, env); err != nil {
			m.log.Warn("publish aged alert", logger.String("entry_id", a.EntryID), logger.Error(err))
		}
	}
	return alerts, nil
}

// Alerts returns every alert emitted so far, oldest first.
func (m *Monitor) Alerts() []AgedAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AgedAlert, len(m.emitted))
	copy(out, m.emitted)
	return out
}
