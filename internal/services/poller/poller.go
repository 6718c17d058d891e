// Package poller is the background sync daemon. Each cycle it walks every
// order that carries a carrier reference, pulls the carrier once per order
// and hands the extracted snapshot to the tracking service. One order's
// failure never stops the sweep.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pinecart/shipsync/internal/broker/messages"
	"github.com/pinecart/shipsync/internal/integrations/carrier"
	"github.com/pinecart/shipsync/internal/models"
	"github.com/pinecart/shipsync/internal/services/tracking"
)

type Repository interface {
	ListCarrierRefOrders(ctx context.Context, limit, offset int) ([]*models.Order, error)
}

type Tracker interface {
	ApplySnapshot(ctx context.Context, o *models.Order, snap carrier.Snapshot, source string) (tracking.Result, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Poller struct {
	repo    Repository
	carrier carrier.Client
	tracker Tracker
	rl      RateLimiter

	pollInterval       time.Duration
	pageSize           int
	concurrency        int
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalScanned        atomic.Int64
	totalApplied        atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, cc carrier.Client, tracker Tracker, rl RateLimiter) *Poller {
	return &Poller{
		repo:               repo,
		carrier:            cc,
		tracker:            tracker,
		rl:                 rl,
		pollInterval:       30 * time.Minute,
		pageSize:           100,
		concurrency:        8,
		rateLimitPerMinute: 120,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, pageSize, concurrency int, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if pageSize > 0 {
		p.pageSize = pageSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

// Trigger forces an immediate sync cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalScanned  int64      `json:"totalScanned"`
	TotalApplied  int64      `json:"totalApplied"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalScanned: p.totalScanned.Load(),
		TotalApplied: p.totalApplied.Load(),
		TotalErrors:  p.totalErrors.Load(),
		InFlight:     p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

// runOnce sweeps the whole carrier-referenced order set, page by page. A page
// fetch failure aborts the cycle; the next tick restarts from the beginning.
func (p *Poller) runOnce(ctx context.Context) {
	p.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	offset := 0
	for {
		page, err := p.repo.ListCarrierRefOrders(ctx, p.pageSize, offset)
		if err != nil {
			slog.Error("list orders page", "offset", offset, "error", err.Error())
			p.setLastError(err)
			return
		}
		if len(page) == 0 {
			return
		}
		p.totalScanned.Add(int64(len(page)))

		sem := make(chan struct{}, p.concurrency)
		var wg sync.WaitGroup
		for _, o := range page {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case sem <- struct{}{}:
			}
			wg.Add(1)
			p.inFlight.Add(1)
			go func(o *models.Order) {
				defer func() {
					p.inFlight.Add(-1)
					<-sem
					wg.Done()
				}()
				p.processOne(ctx, o)
			}(o)
		}
		wg.Wait()

		if len(page) < p.pageSize {
			return
		}
		offset += p.pageSize
	}
}

// processOne pulls one order's tracking and applies it. A carrier failure is
// a logged no-change; the stored state stays as it was.
func (p *Poller) processOne(ctx context.Context, o *models.Order) {
	id, ok := carrier.BestIdentifier(o)
	if !ok {
		return
	}

	if p.rl != nil && p.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:carrier:%s", time.Now().UTC().Format("200601021504"))
		allowed, n, err := p.rl.Allow(ctx, minuteKey, p.rateLimitPerMinute, 70*time.Second)
		if err == nil && !allowed {
			slog.Warn("carrier rate limit reached, easing off", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	raw, err := p.carrier.FetchTracking(ctx, id)
	if err != nil {
		p.totalErrors.Add(1)
		p.setLastError(err)
		slog.Warn("carrier fetch failed", "order_id", o.ID, "identifier_kind", id.Kind, "error", err.Error())
		return
	}

	res, err := p.tracker.ApplySnapshot(ctx, o, carrier.Extract(raw), messages.SourcePoller)
	if err != nil {
		p.totalErrors.Add(1)
		p.setLastError(err)
		slog.Error("apply snapshot failed", "order_id", o.ID, "error", err.Error())
		return
	}
	if res.Applied {
		p.totalApplied.Add(1)
	}
	if res.StatusChanged {
		slog.Info("order status advanced", "order_id", o.ID, "status", res.FinalStatus)
	}
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
