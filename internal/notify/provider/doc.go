// Package provider implements the email delivery backends: smtp (plain,
// STARTTLS on 587, implicit TLS on 465), ses (AWS SES v2), and resend
// (Resend API). A Registry routes each send to the configured primary
// and falls back to any other configured backend on failure.
package provider
