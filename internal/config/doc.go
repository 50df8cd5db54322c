// Package config loads the alert rule document from the YAML file passed
// via -config.
//
// The document has five sections:
//   - cluster — name, REST address/port, credentials (password via env var)
//   - source  — where readings come from: "rest" (default) or "prometheus"
//   - email   — sender address and delivery provider: smtp | ses | resend
//   - history — location of the alert history file (default alert-history.json)
//   - rules   — quota, default_quota, capacity, and replication rules
//
// Load(path) applies defaults before unmarshalling, then validates
// eagerly: thresholds must be strictly ascending percentages in (0, 100],
// every rule needs at least one recipient, and rule names must be unique
// within their section. A validation error aborts the run before any
// cluster call or email — a half-valid rule set never partially alerts.
package config
