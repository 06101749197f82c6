package session

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &Session{
		SessionID: "ignored",
		UserID:    "65f0c0ffee0123456789abcd",
		UserAgent: "curl/8.5.0",
		CreatedAt: 1700000000000,
		ExpiresAt: 1702592000000,
	}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID != "" {
		t.Fatalf("session id must not be encoded, got %q", out.SessionID)
	}
	if out.UserID != in.UserID || out.UserAgent != in.UserAgent || out.CreatedAt != in.CreatedAt || out.ExpiresAt != in.ExpiresAt {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	if _, err := Encode(&Session{UserID: ""}); err == nil {
		t.Fatal("expected empty user id to be rejected")
	}
	if _, err := Encode(&Session{UserID: "u", UserAgent: strings.Repeat("a", MaxUserAgentBytes+1)}); err == nil {
		t.Fatal("expected oversized user agent to be rejected")
	}
}

func TestDecodeRejectsUnknownVersionAndTruncation(t *testing.T) {
	data, err := Encode(&Session{UserID: "u-1", CreatedAt: 1, ExpiresAt: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	bad := append([]byte{}, data...)
	bad[0] = 9
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected unknown version to fail")
	}
	if _, err := Decode(data[:len(data)-1]); err == nil {
		t.Fatal("expected truncated blob to fail")
	}
	if _, err := Decode(append(data, 0)); err == nil {
		t.Fatal("expected trailing bytes to fail")
	}
}

// FuzzDecode exercises the decoder with arbitrary byte slices.
// Goal: no panics.
func FuzzDecode(f *testing.F) {
	valid, err := Encode(&Session{UserID: "u-1", UserAgent: "ua", CreatedAt: 1, ExpiresAt: 2})
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte{1, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		sess, err := Decode(data)
		if err == nil && sess == nil {
			t.Fatal("Decode returned nil session without error")
		}
	})
}
