package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeProvider records sends and can be told to fail.
type fakeProvider struct {
	name       string
	configured bool
	fail       bool
	sent       int
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) IsConfigured() bool { return f.configured }
func (f *fakeProvider) Send(context.Context, *Request) error {
	f.sent++
	if f.fail {
		return errors.New(f.name + " send failed")
	}
	return nil
}

var testRequest = &Request{
	From:    "alerts@example.com",
	To:      []string{"ops@example.com"},
	Subject: "s",
	HTML:    "b",
}

func TestRegistry_PrimarySends(t *testing.T) {
	primary := &fakeProvider{name: "smtp", configured: true}
	other := &fakeProvider{name: "ses", configured: true}
	r := NewRegistry("smtp", primary, other)

	if err := r.Send(context.Background(), testRequest); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if primary.sent != 1 || other.sent != 0 {
		t.Errorf("sends: primary=%d other=%d, want 1/0", primary.sent, other.sent)
	}
}

func TestRegistry_FallbackOnPrimaryFailure(t *testing.T) {
	primary := &fakeProvider{name: "smtp", configured: true, fail: true}
	fallback := &fakeProvider{name: "resend", configured: true}
	r := NewRegistry("smtp", primary, fallback)

	if err := r.Send(context.Background(), testRequest); err != nil {
		t.Fatalf("Send should succeed via fallback: %v", err)
	}
	if fallback.sent != 1 {
		t.Errorf("fallback sent %d times, want 1", fallback.sent)
	}
}

func TestRegistry_FallbackSkipsUnconfigured(t *testing.T) {
	primary := &fakeProvider{name: "smtp", configured: false}
	skipped := &fakeProvider{name: "ses", configured: false}
	used := &fakeProvider{name: "resend", configured: true}
	r := NewRegistry("smtp", primary, skipped, used)

	if err := r.Send(context.Background(), testRequest); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if primary.sent != 0 || skipped.sent != 0 || used.sent != 1 {
		t.Errorf("sends: %d/%d/%d, want 0/0/1", primary.sent, skipped.sent, used.sent)
	}
}

func TestRegistry_AllFailReturnsPrimaryError(t *testing.T) {
	primary := &fakeProvider{name: "smtp", configured: true, fail: true}
	fallback := &fakeProvider{name: "ses", configured: true, fail: true}
	r := NewRegistry("smtp", primary, fallback)

	err := r.Send(context.Background(), testRequest)
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !strings.Contains(err.Error(), "smtp") {
		t.Errorf("error should be the primary's, got %v", err)
	}
}

func TestBuildMessage_Headers(t *testing.T) {
	msg := string(buildMessage(&Request{
		From:    "alerts@example.com",
		To:      []string{"a@x.com", "b@x.com"},
		Subject: "Cluster capacity alert",
		HTML:    "<b>90%</b>",
	}))

	for _, want := range []string{
		"From: alerts@example.com\r\n",
		"To: a@x.com, b@x.com\r\n",
		"Subject: Cluster capacity alert\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"\r\n\r\n<b>90%</b>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
