package cronmgr

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/therenovatio/teleton/internal/errkind"
)

// RegisterCronExpr is a convenience front-end for callers who'd rather
// author a standard five-field cron expression than compute an
// interval by hand. It resolves the expression's next two fire times
// and registers a fixed interval spanning them — exact for fixed-
// cadence expressions ("*/5 * * * *"), approximate for calendar-
// dependent ones ("0 0 1 * *"), which is an acceptable tradeoff since
// this kernel's jobs are maintenance ticks, not calendar scheduling.
func (m *Manager) RegisterCronExpr(ctx context.Context, id, expr string, runMissed bool, fn JobFunc) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return errkind.New(errkind.Config, "parse cron expression", err)
	}
	first := schedule.Next(m.now())
	second := schedule.Next(first)
	interval := second.Sub(first)
	if interval < MinInterval {
		interval = MinInterval
	}
	return m.Register(ctx, id, interval, runMissed, fn)
}
