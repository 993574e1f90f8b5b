package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func signPayload(t *testing.T, timestamp string, payload []byte, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	secret := "whsec_test"
	ts := "1700000000"

	header := fmt.Sprintf("t=%s,v1=%s", ts, signPayload(t, ts, payload, secret))
	if !VerifyStripeWebhookSignature(payload, header, secret) {
		t.Fatalf("expected signature to validate")
	}

	if VerifyStripeWebhookSignature(payload, header, "whsec_other") {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifyStripeWebhookSignature(payload, "t="+ts+",v1=deadbeef", secret) {
		t.Fatalf("expected bogus signature to fail")
	}
}

func TestVerifyStripeWebhookSignature_TamperedBody(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount":1999}`)
	secret := "whsec_test"
	ts := "1700000000"
	header := fmt.Sprintf("t=%s,v1=%s", ts, signPayload(t, ts, payload, secret))

	for i := range payload {
		tampered := append([]byte(nil), payload...)
		tampered[i] ^= 0x01
		if VerifyStripeWebhookSignature(tampered, header, secret) {
			t.Fatalf("expected flip at byte %d to fail verification", i)
		}
	}
}

func TestVerifyStripeWebhookSignature_SecretRotation(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	secret := "whsec_new"
	ts := "1700000001"

	// During rotation the processor sends one v1 per active secret.
	staleSig := signPayload(t, ts, payload, "whsec_old")
	goodSig := signPayload(t, ts, payload, secret)
	header := fmt.Sprintf("t=%s,v1=%s,v1=%s", ts, staleSig, goodSig)

	if !VerifyStripeWebhookSignature(payload, header, secret) {
		t.Fatalf("expected any matching v1 entry to validate")
	}
}

func TestVerifyStripeWebhookSignature_MalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	sig := signPayload(t, "1700000000", payload, secret)

	tests := []struct {
		name   string
		header string
	}{
		{name: "empty", header: ""},
		{name: "missing timestamp", header: "v1=" + sig},
		{name: "missing v1", header: "t=1700000000"},
		{name: "duplicate timestamp", header: "t=1700000000,t=1700000001,v1=" + sig},
		{name: "undecodable v1 only", header: "t=1700000000,v1=zzzz"},
		{name: "unrelated keys", header: "a=b,c=d"},
	}

	for _, tt := range tests {
		if VerifyStripeWebhookSignature(payload, tt.header, secret) {
			t.Fatalf("expected header %q (%s) to fail verification", tt.header, tt.name)
		}
	}
}

func TestParseSignatureHeader(t *testing.T) {
	parsed, ok := ParseSignatureHeader("t=123, v1=00ff, v1=aa11, v0=ignored")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if parsed.Timestamp != "123" {
		t.Fatalf("timestamp = %q, want 123", parsed.Timestamp)
	}
	if len(parsed.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(parsed.Signatures))
	}
}
