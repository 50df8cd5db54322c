// Package notify turns alert decisions into operator emails.
//
// Compose renders a decision into subject and HTML body; the Notifier
// interface delivers it. EmailNotifier goes through the provider
// registry (smtp, ses, or resend); LogNotifier logs instead of sending,
// backing the -no-emails dry-run flag.
package notify
