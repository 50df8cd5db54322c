package source

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/clustermon/cluster-email-alerts/internal/config"
)

const defaultFetchTimeout = 10 * time.Second

// RESTSource reads telemetry from the cluster's REST API. It logs in once
// per Fetch to obtain a bearer token and then queries file system stats,
// quota statuses, and replication relationship statuses.
type RESTSource struct {
	base     string
	username string
	password string
	client   *http.Client
}

// NewRESTSource builds a RESTSource from the cluster configuration.
func NewRESTSource(cfg config.ClusterConfig) *RESTSource {
	return &RESTSource{
		base:     fmt.Sprintf("https://%s:%d", cfg.Address, cfg.Port),
		username: cfg.Username,
		password: cfg.Password(),
		client: &http.Client{
			// Clusters commonly run self-signed certs on the REST port.
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: defaultFetchTimeout,
		},
	}
}

// bearerRoundTripper injects the session token into every request.
type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (t *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// Fetch logs in and gathers all readings. Login failure is fatal to the
// fetch; each individual reading failure is logged and leaves that
// reading unavailable.
func (s *RESTSource) Fetch(ctx context.Context) (*Readings, error) {
	authed, err := s.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: login to %s: %w", s.base, err)
	}

	r := &Readings{}

	fsCap, err := s.fetchCapacity(ctx, authed)
	if err != nil {
		slog.Warn("source: capacity reading unavailable", "err", err)
	} else {
		r.Capacity = fsCap
	}

	quotas, err := s.fetchQuotas(ctx, authed)
	if err != nil {
		slog.Warn("source: quota readings unavailable", "err", err)
	} else {
		r.Quotas = quotas
		r.QuotasOK = true
	}

	rels, err := s.fetchRelationships(ctx, authed)
	if err != nil {
		slog.Warn("source: replication readings unavailable", "err", err)
	} else {
		r.Relationships = rels
		r.RelationshipsOK = true
	}

	return r, nil
}

// login exchanges credentials for a bearer token and returns a client
// that sends it on every request.
func (s *RESTSource) login(ctx context.Context) (*http.Client, error) {
	body, _ := json.Marshal(map[string]string{
		"username": s.username,
		"password": s.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.base+"/v1/session/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		BearerToken string `json:"bearer_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if out.BearerToken == "" {
		return nil, fmt.Errorf("login response contained no bearer token")
	}

	return &http.Client{
		Transport: &bearerRoundTripper{base: s.client.Transport, token: out.BearerToken},
		Timeout:   s.client.Timeout,
	}, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (s *RESTSource) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("get %s: decode: %w", path, err)
	}
	return nil
}

func (s *RESTSource) fetchCapacity(ctx context.Context, client *http.Client) (*Capacity, error) {
	// The API reports byte counts as decimal strings.
	var stats struct {
		TotalSizeBytes string `json:"total_size_bytes"`
		FreeSizeBytes  string `json:"free_size_bytes"`
	}
	if err := s.getJSON(ctx, client, "/v1/file-system", &stats); err != nil {
		return nil, err
	}

	total, err := strconv.ParseUint(stats.TotalSizeBytes, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse total_size_bytes %q: %w", stats.TotalSizeBytes, err)
	}
	free, err := strconv.ParseUint(stats.FreeSizeBytes, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse free_size_bytes %q: %w", stats.FreeSizeBytes, err)
	}
	if free > total {
		return nil, fmt.Errorf("free %d exceeds total %d", free, total)
	}
	return &Capacity{UsedBytes: total - free, TotalBytes: total}, nil
}

func (s *RESTSource) fetchQuotas(ctx context.Context, client *http.Client) (map[string]Quota, error) {
	quotas := make(map[string]Quota)
	path := "/v1/files/quotas/status/?limit=1000"

	// Follow paging until the API stops returning a next link.
	for path != "" {
		var page struct {
			Quotas []struct {
				Path          string `json:"path"`
				Limit         string `json:"limit"`
				CapacityUsage string `json:"capacity_usage"`
			} `json:"quotas"`
			Paging struct {
				Next string `json:"next"`
			} `json:"paging"`
		}
		if err := s.getJSON(ctx, client, path, &page); err != nil {
			return nil, err
		}

		for _, q := range page.Quotas {
			limit, err := strconv.ParseUint(q.Limit, 10, 64)
			if err != nil {
				slog.Warn("source: skipping quota with bad limit",
					"path", q.Path, "limit", q.Limit)
				continue
			}
			used, err := strconv.ParseUint(q.CapacityUsage, 10, 64)
			if err != nil {
				slog.Warn("source: skipping quota with bad usage",
					"path", q.Path, "capacity_usage", q.CapacityUsage)
				continue
			}
			quotas[q.Path] = Quota{Path: q.Path, UsedBytes: used, LimitBytes: limit}
		}
		path = page.Paging.Next
	}
	return quotas, nil
}

func (s *RESTSource) fetchRelationships(ctx context.Context, client *http.Client) ([]Relationship, error) {
	var rels []Relationship

	for _, ep := range []struct {
		path string
		role string
	}{
		{"/v1/replication/source-relationships/status/", "source"},
		{"/v1/replication/target-relationships/status/", "target"},
	} {
		var statuses []struct {
			ID                string  `json:"id"`
			SourceClusterName string  `json:"source_cluster_name"`
			SourceRootPath    string  `json:"source_root_path"`
			TargetClusterName string  `json:"target_cluster_name"`
			TargetRootPath    string  `json:"target_root_path"`
			RecoveryPoint     string  `json:"recovery_point"`
			ErrorFromLastJob  *string `json:"error_from_last_job"`
		}
		if err := s.getJSON(ctx, client, ep.path, &statuses); err != nil {
			return nil, err
		}
		for _, st := range statuses {
			rel := Relationship{
				ID:                st.ID,
				Role:              ep.role,
				SourceClusterName: st.SourceClusterName,
				SourceRootPath:    st.SourceRootPath,
				TargetClusterName: st.TargetClusterName,
				TargetRootPath:    st.TargetRootPath,
				RecoveryPoint:     st.RecoveryPoint,
			}
			if st.ErrorFromLastJob != nil {
				rel.Error = *st.ErrorFromLastJob
			}
			rels = append(rels, rel)
		}
	}
	return rels, nil
}
