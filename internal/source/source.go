package source

import "context"

// Capacity is the cluster-wide file system usage reading.
type Capacity struct {
	UsedBytes  uint64
	TotalBytes uint64
}

// UsedPct returns used capacity as a percentage of total.
func (c Capacity) UsedPct() float64 {
	if c.TotalBytes == 0 {
		return 0
	}
	return float64(c.UsedBytes) * 100 / float64(c.TotalBytes)
}

// Quota is the usage reading for one directory quota.
type Quota struct {
	Path       string
	UsedBytes  uint64
	LimitBytes uint64
}

// UsedPct returns quota usage as a percentage of its limit.
func (q Quota) UsedPct() float64 {
	if q.LimitBytes == 0 {
		return 0
	}
	return float64(q.UsedBytes) * 100 / float64(q.LimitBytes)
}

// Relationship is the status of one replication relationship.
type Relationship struct {
	ID   string
	Role string // "source" | "target"

	SourceClusterName string
	SourceRootPath    string
	TargetClusterName string
	TargetRootPath    string

	// RecoveryPoint is the last consistent point reached by replication.
	RecoveryPoint string

	// Error is the error from the last replication job; empty when healthy.
	Error string
}

// Errored reports whether the relationship's last job failed.
func (r Relationship) Errored() bool { return r.Error != "" }

// Readings is one run's snapshot of everything the rules evaluate.
//
// A nil Capacity, or a false QuotasOK/RelationshipsOK, marks that reading
// as unavailable for this run. The engine degrades unavailable readings
// to "not alerting" rather than aborting the run.
type Readings struct {
	Capacity *Capacity

	Quotas   map[string]Quota // keyed by path
	QuotasOK bool

	Relationships   []Relationship
	RelationshipsOK bool
}

// Source supplies current readings for one run. Implementations are
// read-only against the cluster and perform no retries; a failed call
// surfaces as the corresponding reading being unavailable.
type Source interface {
	// Fetch gathers all readings. It returns an error only when nothing
	// could be fetched at all (e.g. authentication failed); partial
	// failures are encoded in the returned Readings.
	Fetch(ctx context.Context) (*Readings, error)
}
