// Package connectivity reports when the API becomes reachable or unreachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tasky/internal/logging"
)

// Event is a change of connectivity.
type Event int

const (
	Offline Event = iota
	Online
)

func (e Event) String() string {
	if e == Online {
		return "online"
	}
	return "offline"
}

// Pinger checks whether the API answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober pings on a fixed interval and emits an Event on every transition.
// The client is assumed online when the prober starts, so the first event
// is either Offline or nothing.
type Prober struct {
	pinger   Pinger
	interval time.Duration
	logger   *zap.Logger
	events   chan Event
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewProber creates a prober. Call Start to begin probing.
func NewProber(p Pinger, interval time.Duration, logger *zap.Logger) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Prober{
		pinger:   p,
		interval: interval,
		logger:   logging.OrNop(logger),
		events:   make(chan Event, 1),
		stop:     make(chan struct{}),
	}
}

// Events delivers transitions. It is closed when probing ends.
func (p *Prober) Events() <-chan Event {
	return p.events
}

// Start probes in the background until ctx is done or Stop is called.
func (p *Prober) Start(ctx context.Context) {
	p.logger.Debug("starting connectivity prober", zap.Duration("interval", p.interval))
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop ends probing and waits for the probe loop to exit.
func (p *Prober) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *Prober) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	state := Online
	for {
		next := p.check(ctx)
		if next != state {
			p.logger.Debug("connectivity changed", zap.Stringer("state", next))
			select {
			case p.events <- next:
				state = next
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Prober) check(ctx context.Context) Event {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	if err := p.pinger.Ping(ctx); err != nil {
		p.logger.Debug("ping failed", zap.Error(err))
		return Offline
	}
	return Online
}
