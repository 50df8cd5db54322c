package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clustermon/cluster-email-alerts/internal/config"
	"github.com/clustermon/cluster-email-alerts/internal/engine"
	"github.com/clustermon/cluster-email-alerts/internal/history"
	"github.com/clustermon/cluster-email-alerts/internal/notify"
	"github.com/clustermon/cluster-email-alerts/internal/source"
)

// Runner executes one full check: load history, fetch readings, evaluate
// rules, send alerts, persist the replacement history.
type Runner struct {
	Config      *config.Config
	Source      source.Source
	Notifier    notify.Notifier
	HistoryPath string

	// Now is injectable for deterministic tests. Defaults to time.Now.
	Now func() time.Time
}

// Run performs one invocation. It returns an error only for failures
// that must abort or be surfaced loudly: the source being entirely
// unreachable (history is then left untouched so recovery does not storm
// re-alerts), or the history store being unwritable after alerts went
// out. Per-alert send failures are logged and do not fail the run.
func (r *Runner) Run(ctx context.Context) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	prior := history.Load(r.HistoryPath)

	readings, err := r.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("run: fetch readings: %w", err)
	}

	decisions, next := engine.Evaluate(r.Config.Rules, readings, prior, now())

	sent, failed := 0, 0
	for _, d := range decisions {
		slog.Info("run: alerting",
			"kind", d.Kind,
			"rule", d.RuleName,
			"path", d.Path,
			"threshold", d.Threshold,
			"used_pct", d.UsedPct,
		)
		alert := notify.Compose(d, r.Config.Cluster.Name, now())
		if err := r.Notifier.Send(ctx, alert); err != nil {
			// The condition stays recorded as alerted: re-sending every
			// run on a persistently failing notifier would be worse.
			slog.Error("run: alert delivery failed",
				"rule", d.RuleName, "id", d.ID, "err", err)
			failed++
			continue
		}
		sent++
	}

	if err := history.Save(r.HistoryPath, next); err != nil {
		return fmt.Errorf("run: alerts were sent but history was not persisted, duplicates likely next run: %w", err)
	}

	slog.Info("run: complete",
		"decisions", len(decisions),
		"sent", sent,
		"failed", failed,
		"conditions_tracked", len(next),
	)
	return nil
}
