package mail

import (
	"strings"
	"testing"
)

func TestBuildMessageDeclaresHTML(t *testing.T) {
	msg := string(buildMessage("no-reply@greenfold.local", "user@example.com", "Payment failed", "<p>Hi</p>"))

	if !strings.Contains(msg, "Content-Type: text/html; charset=UTF-8") {
		t.Fatalf("message must declare an HTML body:\n%s", msg)
	}
	if !strings.Contains(msg, "Subject: Payment failed\r\n") {
		t.Fatalf("subject header missing:\n%s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>Hi</p>") {
		t.Fatalf("body must follow a blank line:\n%s", msg)
	}
}

func TestRenderTemplate(t *testing.T) {
	cases := []struct {
		template string
		data     map[string]string
		want     string
	}{
		{"activation", map[string]string{"name": "Dana", "token": "tok-1"}, "auth/activate?token=tok-1"},
		{"payment_failed", map[string]string{"name": "Dana", "organization": "Acme"}, "payment for Acme failed"},
		{"subscription_cancelled", map[string]string{"name": "Dana", "organization": "Acme"}, "subscription for Acme was cancelled"},
		{"bogus", map[string]string{"key": "value"}, "key: value"},
	}
	for _, tc := range cases {
		got := RenderTemplate(tc.template, tc.data)
		if !strings.Contains(got, tc.want) {
			t.Fatalf("RenderTemplate(%q) = %q, want it to contain %q", tc.template, got, tc.want)
		}
	}
}
