package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadSignature indicates the webhook payload failed signature verification.
var ErrBadSignature = errors.New("bad webhook signature")

// Signed payloads older than this are rejected to limit replay windows.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks a provider signature header of the form
// "t=<unix>,v1=<hex hmac-sha256>" against the raw body and shared secret.
func VerifySignature(body []byte, header, secret string, now time.Time) error {
	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}

	expected := ComputeSignature(body, secret, timestamp)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}

// ComputeSignature returns the hex HMAC-SHA256 over "<timestamp>.<body>".
func ComputeSignature(body []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders the header value for a body, used by tests and
// local tooling to produce provider-shaped requests.
func SignatureHeader(body []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(body, secret, timestamp))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64
	var candidates []string
	seenTimestamp := false

	for _, part := range strings.Split(header, ",") {
		key, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: malformed timestamp", ErrBadSignature)
			}
			timestamp = parsed
			seenTimestamp = true
		case "v1":
			candidates = append(candidates, strings.ToLower(val))
		}
	}

	if !seenTimestamp || len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: missing elements", ErrBadSignature)
	}
	return timestamp, candidates, nil
}
