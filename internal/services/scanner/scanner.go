package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FleetTrack/internal/broker/messages"
	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/pkg/errors"
)

type Advisor interface {
	Scan(ctx context.Context) ([]models.MaintenanceAlert, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Deduper is satisfied by rediscache.RateLimiter: an alert is published
// only while its key is under the limit of one per window.
type Deduper interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Scanner struct {
	advisor  Advisor
	producer Producer
	dedupe   Deduper

	topic string

	interval       time.Duration
	concurrency    int
	dedupeWindow   time.Duration
	publishRetries int
	retryBackoff   time.Duration

	now       func() time.Time
	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalAlerts         atomic.Int64
	totalPublished      atomic.Int64
	totalSuppressed     atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(advisor Advisor, producer Producer, dedupe Deduper, topic string) *Scanner {
	return &Scanner{
		advisor:           advisor,
		producer:          producer,
		dedupe:            dedupe,
		topic:             topic,
		interval:          time.Hour,
		concurrency:       4,
		dedupeWindow:      24 * time.Hour,
		publishRetries:    5,
		retryBackoff:      150 * time.Millisecond,
		now:               func() time.Time { return time.Now().UTC() },
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Scanner) WithSettings(interval time.Duration, concurrency int, dedupeWindow time.Duration) *Scanner {
	if interval > 0 {
		s.interval = interval
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if dedupeWindow > 0 {
		s.dedupeWindow = dedupeWindow
	}
	return s
}

// Trigger forces an immediate scan (best-effort, non-blocking).
func (s *Scanner) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles     int64      `json:"totalCycles"`
	TotalAlerts     int64      `json:"totalAlerts"`
	TotalPublished  int64      `json:"totalPublished"`
	TotalSuppressed int64      `json:"totalSuppressed"`
	TotalErrors     int64      `json:"totalErrors"`
	InFlight        int64      `json:"inFlight"`
	LastError       string     `json:"lastError,omitempty"`
}

func (s *Scanner) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalCycles:     s.totalCycles.Load(),
		TotalAlerts:     s.totalAlerts.Load(),
		TotalPublished:  s.totalPublished.Load(),
		TotalSuppressed: s.totalSuppressed.Load(),
		TotalErrors:     s.totalErrors.Load(),
		InFlight:        s.inFlight.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// Run scans once right away, then on every tick or trigger until ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Scanner) runOnce(ctx context.Context) {
	now := s.now()
	s.lastCycleUnixNano.Store(now.UnixNano())
	s.totalCycles.Add(1)

	alerts, err := s.advisor.Scan(ctx)
	if err != nil {
		slog.Error("maintenance scan", "error", err.Error())
		s.setLastError(err)
		return
	}
	s.totalAlerts.Add(int64(len(alerts)))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, a := range alerts {
		a := a
		sem <- struct{}{}
		wg.Add(1)
		s.inFlight.Add(1)
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			published, err := s.processOne(ctx, a, now)
			switch {
			case err != nil:
				s.totalErrors.Add(1)
				s.setLastError(err)
				slog.Error("publish maintenance alert", "asset_type", a.AssetType, "asset_id", a.AssetID, "rule", a.Rule, "error", err.Error())
			case published:
				s.totalPublished.Add(1)
			default:
				s.totalSuppressed.Add(1)
			}
		}()
	}
	wg.Wait()
}

func (s *Scanner) processOne(ctx context.Context, a models.MaintenanceAlert, now time.Time) (bool, error) {
	if s.dedupe != nil {
		allowed, _, err := s.dedupe.Allow(ctx, dedupeKey(a), 1, s.dedupeWindow)
		if err != nil {
			// without redis every alert is published
			slog.Warn("alert dedupe unavailable", "error", err.Error())
		} else if !allowed {
			return false, nil
		}
	}

	msg := messages.NewMaintenanceAlert(a, now)
	b, err := json.Marshal(msg)
	if err != nil {
		return false, errors.Wrap(err, "marshal kafka msg")
	}

	var pubErr error
	for i := 0; i < s.publishRetries; i++ {
		if pubErr = s.producer.Publish(ctx, s.topic, msg.Key(), b); pubErr == nil {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Duration(i+1) * s.retryBackoff):
		}
	}
	return false, pubErr
}

func (s *Scanner) setLastError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}

// The status is part of the key so an upcoming alert turning overdue is sent again.
func dedupeKey(a models.MaintenanceAlert) string {
	return fmt.Sprintf("alert:%s:%d:%d:%s:%s", a.AssetType, a.AssetID, a.RuleID, a.Type, a.Status)
}
