package sale

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/logger"
	"github.com/yolodolo42/icosale/internal/metrics"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultTickInterval    = time.Second
)

// Phase is where the sale is in its window.
type Phase int

const (
	NotStarted Phase = iota
	Active
	Ended
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "Not started"
	case Active:
		return "Active"
	default:
		return "Ended"
	}
}

// DeriveState places now relative to the [start, end] window.
func DeriveState(now, start, end time.Time) Phase {
	switch {
	case now.Before(start):
		return NotStarted
	case now.Before(end):
		return Active
	default:
		return Ended
	}
}

// Progress is sold/cap as a percentage in [0, 100]. A zero cap is 0.
func Progress(sold, hardCap *big.Int) float64 {
	if sold == nil || hardCap == nil || hardCap.Sign() <= 0 || sold.Sign() <= 0 {
		return 0
	}
	if sold.Cmp(hardCap) >= 0 {
		return 100
	}
	pct, _ := new(big.Rat).SetFrac(new(big.Int).Mul(sold, big.NewInt(100)), hardCap).Float64()
	return pct
}

// Countdown is the time left until the sale ends.
type Countdown struct {
	Days, Hours, Minutes, Seconds int64
	Ended                         bool
}

// CountdownTo never goes negative; at or after end it is Ended.
func CountdownTo(now, end time.Time) Countdown {
	if !now.Before(end) {
		return Countdown{Ended: true}
	}
	left := int64(end.Sub(now) / time.Second)
	return Countdown{
		Days:    left / 86400,
		Hours:   left % 86400 / 3600,
		Minutes: left % 3600 / 60,
		Seconds: left % 60,
	}
}

func (c Countdown) String() string {
	if c.Ended {
		return "Ended"
	}
	return fmt.Sprintf("%dd %02dh %02dm %02ds", c.Days, c.Hours, c.Minutes, c.Seconds)
}

// Snapshot is the last successful read of the sale, plus the warning from
// the latest refresh if it failed.
type Snapshot struct {
	Start     time.Time
	End       time.Time
	Sold      *big.Int
	HardCap   *big.Int
	Phase     Phase
	Progress  float64
	FetchedAt time.Time
	Warning   error
}

// Poller refreshes the sale window and progress on one interval and
// recomputes the countdown from the cached end time on another.
// Subscribers must drain their channels or unsubscribe before Stop.
type Poller struct {
	gateway *contract.Gateway
	log     logger.Logger
	metrics metrics.Recorder

	refresh time.Duration
	tick    time.Duration
	now     func() time.Time

	mu       sync.Mutex
	snapshot Snapshot
	have     bool

	snapshots  event.Feed
	countdowns event.Feed

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(gateway *contract.Gateway, log logger.Logger, rec metrics.Recorder) *Poller {
	return &Poller{
		gateway: gateway,
		log:     logger.OrNoop(log),
		metrics: metrics.OrNoop(rec),
		refresh: DefaultRefreshInterval,
		tick:    DefaultTickInterval,
		now:     time.Now,
	}
}

// SetIntervals overrides the refresh and countdown intervals. Call before
// Start.
func (p *Poller) SetIntervals(refresh, tick time.Duration) {
	if refresh > 0 {
		p.refresh = refresh
	}
	if tick > 0 {
		p.tick = tick
	}
}

// SetClock replaces time.Now. Call before Start.
func (p *Poller) SetClock(now func() time.Time) {
	p.now = now
}

func (p *Poller) SubscribeSnapshots(ch chan<- Snapshot) event.Subscription {
	return p.snapshots.Subscribe(ch)
}

func (p *Poller) SubscribeCountdown(ch chan<- Countdown) event.Subscription {
	return p.countdowns.Subscribe(ch)
}

// Snapshot returns the latest snapshot, with the phase evaluated now, and
// whether any read has succeeded.
func (p *Poller) Snapshot() (Snapshot, bool) {
	p.mu.Lock()
	snap, have := p.snapshot, p.have
	p.mu.Unlock()
	if have {
		snap.Phase = DeriveState(p.now(), snap.Start, snap.End)
	}
	return snap, have
}

// Start refreshes once, then keeps refreshing until ctx is done or Stop is
// called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	p.Refresh(ctx)
	go p.loop(ctx, done)
}

// Stop halts both timers and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	refresh := time.NewTicker(p.refresh)
	defer refresh.Stop()
	tick := time.NewTicker(p.tick)
	defer tick.Stop()

	var endedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			p.Refresh(ctx)
		case <-tick.C:
			snap, ok := p.Snapshot()
			if !ok {
				continue
			}
			cd := CountdownTo(p.now(), snap.End)
			if cd.Ended {
				// Terminal: announce once per end time.
				if endedAt.Equal(snap.End) {
					continue
				}
				endedAt = snap.End
			}
			p.countdowns.Send(cd)
		}
	}
}

// Refresh reads the sale window and progress. A failed read keeps the
// previous values and sets Warning.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	start := time.Now()
	next, err := p.read(ctx)
	p.metrics.ObserveLatency("status_refresh", time.Since(start), nil)

	p.mu.Lock()
	if err != nil {
		p.snapshot.Warning = err
		p.metrics.IncCounter(metrics.StatusFailed, nil)
		p.log.Warn("sale status refresh failed", map[string]any{"error": err})
	} else {
		p.snapshot = next
		p.have = true
		p.metrics.IncCounter(metrics.StatusRefreshed, nil)
	}
	snap := p.snapshot
	p.mu.Unlock()

	p.snapshots.Send(snap)
	return snap
}

func (p *Poller) read(ctx context.Context) (Snapshot, error) {
	sale := p.gateway.Sale(common.Address{})

	var values [4]*big.Int
	reads := [4]func(context.Context) (*big.Int, error){sale.StartTime, sale.EndTime, sale.TokensSold, sale.HardCap}
	for i, read := range reads {
		v, err := read(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrContractCallFailed, err)
		}
		values[i] = v
	}

	for i, name := range [2]string{"startTime", "endTime"} {
		if !values[i].IsInt64() {
			return Snapshot{}, fmt.Errorf("%w: %s %s out of range", ErrContractCallFailed, name, values[i])
		}
	}

	now := p.now()
	startAt := time.Unix(values[0].Int64(), 0)
	endAt := time.Unix(values[1].Int64(), 0)
	return Snapshot{
		Start:     startAt,
		End:       endAt,
		Sold:      values[2],
		HardCap:   values[3],
		Phase:     DeriveState(now, startAt, endAt),
		Progress:  Progress(values[2], values[3]),
		FetchedAt: now,
	}, nil
}
