package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/clustermon/cluster-email-alerts/internal/engine"
	"github.com/clustermon/cluster-email-alerts/internal/source"
)

var sentAt = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func TestCompose_QuotaAlert(t *testing.T) {
	a := Compose(engine.Decision{
		Kind:       engine.KindQuota,
		RuleName:   "eng-quota",
		Path:       "/eng",
		Threshold:  95,
		UsedPct:    96.2,
		UsedBytes:  96_200_000_000,
		LimitBytes: 100_000_000_000,
		Recipients: []string{"a@x.com"},
	}, "prod", sentAt)

	if a.Subject != "prod: Soft quota alert on path /eng" {
		t.Errorf("subject = %q", a.Subject)
	}
	for _, want := range []string{
		`"/eng"`,
		"threshold of 95%",
		"96.2% full",
		"Alert sent on Monday, 02. March 2026 02:30PM",
	} {
		if !strings.Contains(a.Body, want) {
			t.Errorf("body missing %q:\n%s", want, a.Body)
		}
	}
	if strings.Contains(a.Body, "Cluster total capacity") {
		t.Error("capacity line present without include_capacity")
	}
}

func TestCompose_QuotaIncludesCapacityAndCustomMsg(t *testing.T) {
	a := Compose(engine.Decision{
		Kind:            engine.KindDefaultQuota,
		Path:            "/home",
		Threshold:       90,
		UsedPct:         91,
		UsedBytes:       910,
		LimitBytes:      1000,
		Capacity:        &source.Capacity{UsedBytes: 750_000_000_000, TotalBytes: 1_000_000_000_000},
		IncludeCapacity: true,
		CustomMsg:       "Clean up scratch data.",
		Recipients:      []string{"a@x.com"},
	}, "prod", sentAt)

	if !strings.Contains(a.Body, "Cluster total capacity: 1.0 TB") {
		t.Errorf("body missing capacity line:\n%s", a.Body)
	}
	if !strings.Contains(a.Body, "Clean up scratch data.") {
		t.Errorf("body missing custom message:\n%s", a.Body)
	}
}

func TestCompose_CapacityAlert(t *testing.T) {
	a := Compose(engine.Decision{
		Kind:      engine.KindCapacity,
		RuleName:  "cluster-full",
		Threshold: 85,
		UsedPct:   87.55,
		Capacity:  &source.Capacity{UsedBytes: 875_500_000_000, TotalBytes: 1_000_000_000_000},
	}, "prod", sentAt)

	if !strings.Contains(a.Subject, "Cluster capacity alert") {
		t.Errorf("subject = %q", a.Subject)
	}
	if !strings.Contains(a.Subject, "85%") {
		t.Errorf("subject should name the threshold: %q", a.Subject)
	}
	if !strings.Contains(a.Body, "87.55% full") {
		t.Errorf("body missing usage pct:\n%s", a.Body)
	}
}

func TestCompose_ReplicationAlert(t *testing.T) {
	a := Compose(engine.Decision{
		Kind: engine.KindReplication,
		Relationships: []source.Relationship{
			{
				ID:                "rel-1",
				SourceClusterName: "prod",
				SourceRootPath:    "/eng",
				TargetClusterName: "dr",
				TargetRootPath:    "/eng",
				RecoveryPoint:     "2026-02-28T00:00:00Z",
				Error:             "connection refused",
			},
			{
				ID:                "rel-2",
				SourceClusterName: "prod",
				SourceRootPath:    "/data",
				TargetClusterName: "dr",
				TargetRootPath:    "/data",
				RecoveryPoint:     "2026-03-01T00:00:00Z",
				Error:             "timeout",
			},
		},
	}, "prod", sentAt)

	if a.Subject != "prod: Relationship error alert." {
		t.Errorf("subject = %q", a.Subject)
	}
	for _, want := range []string{
		"have reported an error",
		"Source replication root path: /eng",
		"Error from last replication job: connection refused",
		"Source replication root path: /data",
		"Error from last replication job: timeout",
	} {
		if !strings.Contains(a.Body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestPct_TrimsTrailingZeros(t *testing.T) {
	cases := map[float64]string{
		95:      "95",
		96.2:    "96.2",
		87.5501: "87.55",
		33.3333: "33.33",
	}
	for in, want := range cases {
		if got := pct(in); got != want {
			t.Errorf("pct(%v) = %q, want %q", in, got, want)
		}
	}
}
