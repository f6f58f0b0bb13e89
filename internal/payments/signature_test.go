package payments

import (
	"errors"
	"testing"
	"time"
)

func TestVerifySignatureAcceptsFreshSignedPayload(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)

	header := SignatureHeader(body, "whsec_test", now.Unix())
	if err := VerifySignature(body, header, "whsec_test", now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	header := SignatureHeader([]byte(`{"id":"evt_1"}`), "whsec_test", now.Unix())

	err := VerifySignature([]byte(`{"id":"evt_2"}`), header, "whsec_test", now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)
	header := SignatureHeader(body, "whsec_test", now.Unix())

	err := VerifySignature(body, header, "whsec_other", now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Unix(1_700_000_000, 0)
	header := SignatureHeader(body, "whsec_test", signedAt.Unix())

	err := VerifySignature(body, header, "whsec_test", signedAt.Add(6*time.Minute))
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for stale payload, got %v", err)
	}
}

func TestVerifySignatureRejectsMalformedHeaders(t *testing.T) {
	body := []byte(`{}`)
	now := time.Unix(1_700_000_000, 0)

	for _, header := range []string{"", "v1=deadbeef", "t=abc,v1=deadbeef", "t=1700000000"} {
		if err := VerifySignature(body, header, "whsec_test", now); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("header %q: expected ErrBadSignature, got %v", header, err)
		}
	}
}

func TestVerifySignatureAcceptsAnyValidCandidate(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)

	header := "t=1700000000,v1=deadbeef,v1=" + ComputeSignature(body, "whsec_test", now.Unix())
	if err := VerifySignature(body, header, "whsec_test", now); err != nil {
		t.Fatalf("one matching candidate should verify, got %v", err)
	}
}
