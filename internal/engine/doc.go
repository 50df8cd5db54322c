// Package engine decides which alerts to send. Evaluate combines the
// configured rules, the current readings, and the history of previously
// sent alerts into a set of alert decisions plus the replacement history.
//
// The engine is pure: it performs no network or email I/O, and the
// history it returns is a fresh mapping in which an entry exists exactly
// when its condition is alerting this run. Conditions re-alert only on
// escalation (a higher threshold crossed, or a changed replication error
// signature), never on an unchanged state.
package engine
