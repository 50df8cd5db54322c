// Package source fetches the telemetry readings the rules evaluate:
// cluster capacity usage, per-directory quota usage, and replication
// relationship statuses.
//
// Two implementations exist. RESTSource talks to the cluster's REST API
// (bearer-token login, then file-system, quota status, and replication
// status queries). PromSource scrapes a storage exporter's Prometheus
// text-exposition endpoint instead.
//
// Both are read-only and retry nothing: a failed call marks the affected
// reading unavailable in Readings, and the engine treats unavailable
// readings as "not alerting" for that run.
package source
