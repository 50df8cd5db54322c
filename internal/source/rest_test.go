package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newClusterServer fakes the cluster REST API with one quota and one
// errored source relationship.
func newClusterServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/session/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var creds struct{ Username, Password string }
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username != "monitor" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"bearer_token": "tok-123"})
	})

	requireAuth := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/v1/file-system", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"total_size_bytes": "1000000000000",
			"free_size_bytes":  "250000000000",
		})
	}))

	mux.HandleFunc("/v1/files/quotas/status/", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"quotas": []map[string]string{
				{"path": "/eng", "limit": "100000000000", "capacity_usage": "96200000000"},
				{"path": "/home", "limit": "50000000000", "capacity_usage": "10000000000"},
			},
			"paging": map[string]string{"next": ""},
		})
	}))

	mux.HandleFunc("/v1/replication/source-relationships/status/", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		errMsg := "connection refused"
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":                  "rel-1",
				"source_cluster_name": "prod",
				"source_root_path":    "/eng",
				"target_cluster_name": "dr",
				"target_root_path":    "/eng",
				"recovery_point":      "2026-02-28T00:00:00Z",
				"error_from_last_job": errMsg,
			},
		})
	}))

	mux.HandleFunc("/v1/replication/target-relationships/status/", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":                  "rel-2",
				"source_cluster_name": "backup",
				"source_root_path":    "/archive",
				"target_cluster_name": "prod",
				"target_root_path":    "/archive",
				"recovery_point":      "2026-03-01T00:00:00Z",
				"error_from_last_job": nil,
			},
		})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testRESTSource(srv *httptest.Server) *RESTSource {
	return &RESTSource{
		base:     srv.URL,
		username: "monitor",
		password: "secret",
		client:   srv.Client(),
	}
}

func TestRESTSource_Fetch(t *testing.T) {
	srv := newClusterServer(t)
	r, err := testRESTSource(srv).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if r.Capacity == nil {
		t.Fatal("capacity reading missing")
	}
	if got := r.Capacity.UsedPct(); got != 75 {
		t.Errorf("capacity UsedPct = %v, want 75", got)
	}

	if !r.QuotasOK || len(r.Quotas) != 2 {
		t.Fatalf("quotas: ok=%v len=%d, want ok with 2", r.QuotasOK, len(r.Quotas))
	}
	eng := r.Quotas["/eng"]
	if got := eng.UsedPct(); got != 96.2 {
		t.Errorf("/eng UsedPct = %v, want 96.2", got)
	}

	if !r.RelationshipsOK || len(r.Relationships) != 2 {
		t.Fatalf("relationships: ok=%v len=%d, want ok with 2", r.RelationshipsOK, len(r.Relationships))
	}
	if !r.Relationships[0].Errored() {
		t.Error("rel-1 should be errored")
	}
	if r.Relationships[1].Errored() {
		t.Error("rel-2 should be healthy (null error)")
	}
	if r.Relationships[0].Role != "source" || r.Relationships[1].Role != "target" {
		t.Errorf("roles: got %q/%q", r.Relationships[0].Role, r.Relationships[1].Role)
	}
}

func TestRESTSource_BadCredentials(t *testing.T) {
	srv := newClusterServer(t)
	s := testRESTSource(srv)
	s.username = "wrong"
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected login failure, got nil")
	}
}

// A failing sub-endpoint degrades that reading, not the whole fetch.
func TestRESTSource_PartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"bearer_token": "tok"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r, err := testRESTSource(srv).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch should survive partial failure: %v", err)
	}
	if r.Capacity != nil || r.QuotasOK || r.RelationshipsOK {
		t.Errorf("all readings should be unavailable, got %+v", r)
	}
}
