// Package run wires one invocation together: load the history store,
// fetch readings from the metric source, evaluate the rules, hand each
// decision to the notifier, and atomically persist the replacement
// history. The engine stays pure; all I/O sequencing lives here.
package run
