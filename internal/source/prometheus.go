package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric families read from a storage exporter's text exposition.
const (
	// Total file system capacity in bytes.
	metricFSTotal = "storage_fs_total_bytes"

	// Used file system capacity in bytes.
	metricFSUsed = "storage_fs_used_bytes"

	// Per-quota usage, labelled by directory path.
	metricQuotaUsed = "storage_quota_used_bytes"

	// Per-quota limit, labelled by directory path.
	metricQuotaLimit = "storage_quota_limit_bytes"

	// Replication relationship info metric. Value 1 when the last job
	// errored, 0 when healthy. Labels: id, role, error, recovery_point,
	// source_cluster, source_path, target_cluster, target_path.
	metricReplication = "storage_replication_error_info"
)

// PromSource reads telemetry from a storage exporter's Prometheus
// text-exposition endpoint instead of the cluster REST API.
type PromSource struct {
	endpoint string
	client   *http.Client
}

// NewPromSource creates a PromSource scraping the given metrics URL.
func NewPromSource(endpoint string) *PromSource {
	return &PromSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultFetchTimeout},
	}
}

// Fetch scrapes the exposition endpoint once and maps the well-known
// metric families into Readings. A scrape failure fails the whole fetch:
// unlike the REST source there is only one upstream call, so nothing can
// partially succeed. Missing families leave their reading unavailable.
func (s *PromSource) Fetch(ctx context.Context) (*Readings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: scrape %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: scrape %s: unexpected status %d", s.endpoint, resp.StatusCode)
	}

	mfs, err := parseMetrics(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	r := &Readings{}
	if total, ok := gaugeValue(mfs[metricFSTotal]); ok {
		if used, ok := gaugeValue(mfs[metricFSUsed]); ok {
			r.Capacity = &Capacity{UsedBytes: uint64(used), TotalBytes: uint64(total)}
		}
	}
	if quotas, ok := quotasFrom(mfs[metricQuotaUsed], mfs[metricQuotaLimit]); ok {
		r.Quotas = quotas
		r.QuotasOK = true
	}
	if mf, ok := mfs[metricReplication]; ok {
		r.Relationships = relationshipsFrom(mf)
		r.RelationshipsOK = true
	}
	return r, nil
}

// parseMetrics decodes a Prometheus text exposition into metric families.
// A partial result with a non-fatal parse warning is still returned.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// gaugeValue returns the single gauge/untyped value in mf.
func gaugeValue(mf *dto.MetricFamily) (float64, bool) {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0, false
	}
	m := mf.GetMetric()[0]
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	}
	return 0, false
}

// labelValue returns the value of the named label on m, or "".
func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	}
	return 0
}

// quotasFrom joins the used and limit families on their path label.
func quotasFrom(used, limit *dto.MetricFamily) (map[string]Quota, bool) {
	if used == nil || limit == nil {
		return nil, false
	}
	limits := make(map[string]uint64, len(limit.GetMetric()))
	for _, m := range limit.GetMetric() {
		if p := labelValue(m, "path"); p != "" {
			limits[p] = uint64(metricValue(m))
		}
	}

	quotas := make(map[string]Quota, len(used.GetMetric()))
	for _, m := range used.GetMetric() {
		p := labelValue(m, "path")
		if p == "" {
			continue
		}
		quotas[p] = Quota{
			Path:       p,
			UsedBytes:  uint64(metricValue(m)),
			LimitBytes: limits[p],
		}
	}
	return quotas, true
}

func relationshipsFrom(mf *dto.MetricFamily) []Relationship {
	rels := make([]Relationship, 0, len(mf.GetMetric()))
	for _, m := range mf.GetMetric() {
		rel := Relationship{
			ID:                labelValue(m, "id"),
			Role:              labelValue(m, "role"),
			SourceClusterName: labelValue(m, "source_cluster"),
			SourceRootPath:    labelValue(m, "source_path"),
			TargetClusterName: labelValue(m, "target_cluster"),
			TargetRootPath:    labelValue(m, "target_path"),
			RecoveryPoint:     labelValue(m, "recovery_point"),
		}
		if metricValue(m) >= 1 {
			rel.Error = labelValue(m, "error")
			if rel.Error == "" {
				rel.Error = "replication job failed"
			}
		}
		rels = append(rels, rel)
	}
	return rels
}
