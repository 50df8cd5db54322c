package notify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/clustermon/cluster-email-alerts/internal/engine"
)

// Alert is one fully formatted email, ready for delivery.
type Alert struct {
	Recipients []string
	Subject    string
	Body       string // HTML
}

// Notifier delivers alerts. Implementations are fire-and-forget per
// alert: a failure is reported to the caller but has no further
// contract, and the caller does not roll back history because of it.
type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

const sep = "<br><br>"

// Compose renders a decision into the alert email sent to its rule's
// recipients. now is stamped into the body.
func Compose(d engine.Decision, clusterName string, now time.Time) Alert {
	var subject string
	var b strings.Builder

	switch d.Kind {
	case engine.KindQuota, engine.KindDefaultQuota:
		subject = fmt.Sprintf("%s: Soft quota alert on path %s", clusterName, d.Path)
		fmt.Fprintf(&b, "The quota on directory path %q has exceeded the usage threshold of %s%%.",
			d.Path, pct(d.Threshold))
		b.WriteString(sep)
		fmt.Fprintf(&b, "Current quota usage is %s out of %s. (%s%% full)",
			humanize.Bytes(d.UsedBytes), humanize.Bytes(d.LimitBytes), pct(d.UsedPct))
		if d.IncludeCapacity && d.Capacity != nil {
			b.WriteString(sep)
			fmt.Fprintf(&b, "Cluster total capacity: %s", humanize.Bytes(d.Capacity.TotalBytes))
		}

	case engine.KindCapacity:
		subject = fmt.Sprintf("%s: Cluster capacity alert. Usage has exceeded %s%%",
			clusterName, pct(d.Threshold))
		fmt.Fprintf(&b, "The cluster %q has exceeded its usage threshold of %s%%.",
			clusterName, pct(d.Threshold))
		if d.Capacity != nil {
			fmt.Fprintf(&b, " Current usage is %s out of %s (%s%% full).",
				humanize.Bytes(d.Capacity.UsedBytes), humanize.Bytes(d.Capacity.TotalBytes),
				pct(d.UsedPct))
		}

	case engine.KindReplication:
		subject = fmt.Sprintf("%s: Relationship error alert.", clusterName)
		b.WriteString("The following replication relationships have reported an error:")
		for _, rel := range d.Relationships {
			b.WriteString(sep)
			fmt.Fprintf(&b, "Source cluster name: %s", rel.SourceClusterName)
			b.WriteString(sep)
			fmt.Fprintf(&b, "Source replication root path: %s", rel.SourceRootPath)
			b.WriteString(sep)
			fmt.Fprintf(&b, "Target cluster name: %s", rel.TargetClusterName)
			b.WriteString(sep)
			fmt.Fprintf(&b, "Target replication root path: %s", rel.TargetRootPath)
			b.WriteString(sep)
			fmt.Fprintf(&b, "Recovery point: %s", rel.RecoveryPoint)
			b.WriteString(sep)
			fmt.Fprintf(&b, "Error from last replication job: %s", rel.Error)
		}
	}

	if d.CustomMsg != "" {
		b.WriteString(sep)
		b.WriteString(d.CustomMsg)
	}

	b.WriteString(sep)
	fmt.Fprintf(&b, "Alert sent on %s", now.Format("Monday, 02. January 2006 03:04PM"))

	return Alert{
		Recipients: d.Recipients,
		Subject:    subject,
		Body:       b.String(),
	}
}

// pct formats a percentage rounded to two decimal places, without
// trailing zeros (96.2, not 96.20).
func pct(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
