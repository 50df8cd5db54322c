package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clustermon/cluster-email-alerts/internal/config"
	"github.com/clustermon/cluster-email-alerts/internal/history"
	"github.com/clustermon/cluster-email-alerts/internal/source"
)

// Kind identifies which rule family produced a Decision.
type Kind string

const (
	KindQuota        Kind = "quota"
	KindDefaultQuota Kind = "default_quota"
	KindCapacity     Kind = "capacity"
	KindReplication  Kind = "replication"
)

// Decision is one alert the engine decided to emit: a condition that is
// newly alerting or escalated past a higher threshold. It carries
// everything the notifier needs; the engine itself sends nothing.
type Decision struct {
	ID       string
	Kind     Kind
	RuleName string

	// Path is the quota directory; empty for capacity and replication.
	Path string

	// Threshold is the matched threshold in percent (quota/capacity).
	Threshold float64

	// UsedPct is the usage that crossed the threshold.
	UsedPct float64

	// UsedBytes/LimitBytes describe the quota (quota kinds only).
	UsedBytes  uint64
	LimitBytes uint64

	// Capacity is the cluster capacity reading, set for capacity
	// decisions and for quota decisions with include_capacity.
	Capacity *source.Capacity

	// Relationships are the replication relationships whose error state
	// transitioned this run (replication kind only).
	Relationships []source.Relationship

	Recipients      []string
	CustomMsg       string
	IncludeCapacity bool
}

// Keys are flat strings so the history file stays human-inspectable.
func quotaKey(kind Kind, rule, path string) string {
	return fmt.Sprintf("%s|%s|%s", kind, rule, path)
}

func capacityKey(rule string) string {
	return fmt.Sprintf("%s|%s", KindCapacity, rule)
}

func replicationKey(rule, relID string) string {
	return fmt.Sprintf("%s|%s|%s", KindReplication, rule, relID)
}

// signature identifies a specific replication failure state. A change in
// either the error detail or the recovery point re-alerts even when the
// relationship never recovered in between.
func signature(rel source.Relationship) string {
	return rel.Error + "\x1f" + rel.RecoveryPoint
}

// Evaluate is a pure function from (rules, current readings, prior
// history) to (alert decisions, next history). The next history is built
// from scratch: an entry exists in it if and only if its condition is
// alerting this run, so cleared conditions and deleted rules fall away
// without explicit removal.
//
// Per rule and condition, at most one decision is emitted per run, always
// for the single highest matched threshold.
func Evaluate(rules config.Rules, r *source.Readings, prior history.Store, now time.Time) ([]Decision, history.Store) {
	var decisions []Decision
	next := history.Store{}

	explicit := explicitPaths(rules.Quota)

	for _, rule := range rules.Quota {
		q, ok := quotaReading(r, rule.Path)
		key := quotaKey(KindQuota, rule.Name, rule.Path)
		if fired, matched := evalThreshold(key, rule.Thresholds, q.UsedPct(), ok, prior, next, now); fired {
			d := quotaDecision(KindQuota, rule, q, matched)
			d.Capacity = r.Capacity
			decisions = append(decisions, d)
		}
	}

	for _, rule := range rules.DefaultQuota {
		for _, path := range sortedQuotaPaths(r) {
			if explicit[path] {
				continue
			}
			q := r.Quotas[path]
			key := quotaKey(KindDefaultQuota, rule.Name, path)
			if fired, matched := evalThreshold(key, rule.Thresholds, q.UsedPct(), true, prior, next, now); fired {
				withPath := rule
				withPath.Path = path
				d := quotaDecision(KindDefaultQuota, withPath, q, matched)
				d.Capacity = r.Capacity
				decisions = append(decisions, d)
			}
		}
	}

	for _, rule := range rules.Capacity {
		var usedPct float64
		if r.Capacity != nil {
			usedPct = r.Capacity.UsedPct()
		}
		key := capacityKey(rule.Name)
		if fired, matched := evalThreshold(key, rule.Thresholds, usedPct, r.Capacity != nil, prior, next, now); fired {
			decisions = append(decisions, Decision{
				ID:         uuid.NewString(),
				Kind:       KindCapacity,
				RuleName:   rule.Name,
				Threshold:  matched,
				UsedPct:    usedPct,
				Capacity:   r.Capacity,
				Recipients: rule.MailTo,
				CustomMsg:  rule.CustomMsg,
			})
		}
	}

	for _, rule := range rules.Replication {
		if d, ok := evalReplication(rule, r, prior, next, now); ok {
			decisions = append(decisions, d)
		}
	}

	return decisions, next
}

// quotaReading looks up the quota for path. The second return is false
// when the reading is unavailable this run or the quota no longer exists;
// both degrade to "not alerting".
func quotaReading(r *source.Readings, path string) (source.Quota, bool) {
	if !r.QuotasOK {
		return source.Quota{}, false
	}
	q, ok := r.Quotas[path]
	return q, ok
}

func explicitPaths(rules []config.QuotaRule) map[string]bool {
	paths := make(map[string]bool, len(rules))
	for _, rule := range rules {
		paths[rule.Path] = true
	}
	return paths
}

// sortedQuotaPaths returns observed quota paths in stable order so
// decision output does not depend on map iteration.
func sortedQuotaPaths(r *source.Readings) []string {
	if !r.QuotasOK {
		return nil
	}
	paths := make([]string, 0, len(r.Quotas))
	for p := range r.Quotas {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func quotaDecision(kind Kind, rule config.QuotaRule, q source.Quota, matched float64) Decision {
	return Decision{
		ID:              uuid.NewString(),
		Kind:            kind,
		RuleName:        rule.Name,
		Path:            rule.Path,
		Threshold:       matched,
		UsedPct:         q.UsedPct(),
		UsedBytes:       q.UsedBytes,
		LimitBytes:      q.LimitBytes,
		Recipients:      rule.MailTo,
		CustomMsg:       rule.CustomMsg,
		IncludeCapacity: rule.IncludeCapacity,
	}
}

// evalThreshold runs the threshold state machine for one condition.
//
// The matched threshold is the highest configured threshold <= usedPct.
// Transitions:
//   - not alerting: no entry in next (a prior entry is thereby cleared)
//   - alerting, no prior entry: fire, create entry
//   - alerting above the prior threshold: fire, update entry (escalation)
//   - alerting at or below the prior threshold: suppress, keep the prior
//     entry untouched so climbing back up re-alerts only past it
func evalThreshold(key string, thresholds []float64, usedPct float64, available bool,
	prior, next history.Store, now time.Time) (bool, float64) {

	if !available {
		return false, 0
	}

	matched, alerting := 0.0, false
	for _, t := range thresholds {
		if t <= usedPct {
			matched, alerting = t, true
		}
	}
	if !alerting {
		return false, 0
	}

	prev, seen := prior[key]
	if seen && prev.Threshold >= matched {
		next[key] = prev
		return false, 0
	}
	next[key] = history.Entry{Threshold: matched, AlertedAt: now}
	return true, matched
}

// evalReplication runs the binary state machine for one replication rule
// across all relationships. Each relationship is an independent
// condition; a new error or a changed error signature on a still-broken
// relationship transitions it. All transitioned relationships are
// bundled into one decision for the rule.
func evalReplication(rule config.ReplicationRule, r *source.Readings,
	prior, next history.Store, now time.Time) (Decision, bool) {

	if !r.RelationshipsOK {
		return Decision{}, false
	}

	var transitioned []source.Relationship
	for _, rel := range r.Relationships {
		if !rel.Errored() {
			continue
		}
		key := replicationKey(rule.Name, rel.ID)
		sig := signature(rel)

		if prev, seen := prior[key]; seen && prev.Signature == sig {
			next[key] = prev
			continue
		}
		next[key] = history.Entry{Signature: sig, AlertedAt: now}
		transitioned = append(transitioned, rel)
	}

	if len(transitioned) == 0 {
		return Decision{}, false
	}
	return Decision{
		ID:            uuid.NewString(),
		Kind:          KindReplication,
		RuleName:      rule.Name,
		Relationships: transitioned,
		Recipients:    rule.MailTo,
		CustomMsg:     rule.CustomMsg,
	}, true
}
