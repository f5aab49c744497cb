package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor periodically sweeps the registry for idle members and evicts
// them through the registry's leave sequence. One monitor serves the
// whole process; members carry timestamps, not timers.
type Monitor struct {
	registry *Registry
	timeout  time.Duration
	interval time.Duration
	notify   func(Departure)
}

// NewMonitor builds a monitor. notify receives each eviction so the relay
// engine can send the same notices as an explicit exit; it may be nil.
func NewMonitor(registry *Registry, timeout, interval time.Duration, notify func(Departure)) *Monitor {
	return &Monitor{registry: registry, timeout: timeout, interval: interval, notify: notify}
}

// Run sweeps until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "core.monitor").Msg("monitor stopped")
			return
		case now := <-ticker.C:
			for _, dep := range m.registry.SweepIdle(now.Add(-m.timeout)) {
				log.Info().Str("module", "core.monitor").Str("room", dep.Room).Str("member", dep.Member.DisplayName).Msg("idle member evicted")
				if m.notify != nil {
					m.notify(dep)
				}
			}
		}
	}
}
