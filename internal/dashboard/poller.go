// Package dashboard keeps the server stat and spec display current.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"apkdash/internal/api"
)

// DefaultInterval is how often stats are refreshed.
const DefaultInterval = 10 * time.Second

// Client is the subset of the API client the poller needs.
type Client interface {
	Stats(ctx context.Context) (*api.Stats, error)
	Specs(ctx context.Context) (*api.Specs, error)
}

// View receives display updates. A failed poll produces no update: the
// prior display stays until the next poll succeeds.
type View interface {
	RenderStats(*api.Stats)
	RenderSpecs(*api.Specs)
}

// Poller loads specs once and refreshes stats on a fixed interval.
type Poller struct {
	client   Client
	view     View
	interval time.Duration
	log      *slog.Logger
}

func NewPoller(client Client, view View, log *slog.Logger) *Poller {
	return &Poller{
		client:   client,
		view:     view,
		interval: DefaultInterval,
		log:      log.With("component", "dashboard"),
	}
}

// Run blocks until ctx is done. Specs are loaded once up front, stats
// immediately and then every interval.
func (p *Poller) Run(ctx context.Context) {
	p.loadSpecs(ctx)
	p.loadStats(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.loadStats(ctx)
		}
	}
}

func (p *Poller) loadStats(ctx context.Context) {
	stats, err := p.client.Stats(ctx)
	if err != nil {
		p.log.Error("load stats", "err", err)
		return
	}
	p.view.RenderStats(stats)
}

func (p *Poller) loadSpecs(ctx context.Context) {
	specs, err := p.client.Specs(ctx)
	if err != nil {
		p.log.Error("load specs", "err", err)
		return
	}
	p.view.RenderSpecs(specs)
}
