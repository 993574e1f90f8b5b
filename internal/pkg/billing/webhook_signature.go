package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ParsedSignatureHeader is the decomposed Stripe-Signature header value.
// The header is a comma-separated list of key=value pairs carrying exactly
// one timestamp and one or more v1 signatures (multiple during secret
// rotation windows).
type ParsedSignatureHeader struct {
	Timestamp  string
	Signatures [][]byte
}

// ParseSignatureHeader splits a Stripe-Signature header into its timestamp
// and v1 signature entries. A header missing t=, carrying more than one t=,
// or carrying zero decodable v1= entries is rejected.
func ParseSignatureHeader(header string) (*ParsedSignatureHeader, bool) {
	parsed := &ParsedSignatureHeader{}
	for _, pair := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			if parsed.Timestamp != "" {
				return nil, false
			}
			parsed.Timestamp = v
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(v))
			if err != nil {
				continue
			}
			parsed.Signatures = append(parsed.Signatures, sig)
		}
	}
	if parsed.Timestamp == "" || len(parsed.Signatures) == 0 {
		return nil, false
	}
	return parsed, true
}

// VerifyStripeWebhookSignature checks that payload was signed with
// webhookSecret. The signed string is "<timestamp>.<payload>" and the
// expected digest is HMAC-SHA256 hex-encoded into the v1 entries of the
// header. The request is valid if any v1 entry matches.
//
// No freshness window is applied to the timestamp; replayed deliveries are
// absorbed by event-id deduplication further down the pipeline.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	parsed, ok := ParseSignatureHeader(sig)
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parsed.Timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range parsed.Signatures {
		if hmac.Equal(expected, candidate) {
			return true
		}
	}
	return false
}
