package hasher

import (
	"bytes"
	"testing"
)

func TestDigestDeterministic(t *testing.T) {
	data := []byte("BILL OF LADING BOL-2024-001\nVessel: MV Meridian\n")

	first := Digest(data)
	second := Digest(data)
	if first != second {
		t.Fatalf("same bytes produced different digests: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%s)", len(first), first)
	}
}

func TestDigestKnownVector(t *testing.T) {
	// SHA-256 of the empty input.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Digest(nil); got != want {
		t.Fatalf("empty input digest = %s, want %s", got, want)
	}
}

func TestDigestSingleByteDifference(t *testing.T) {
	a := []byte("INVOICE INV-2024-001 amount=125000")
	b := []byte("INVOICE INV-2024-001 amount=125001")

	if Digest(a) == Digest(b) {
		t.Fatal("single-byte difference produced identical digests")
	}
}

func TestDigestReaderMatchesDigest(t *testing.T) {
	data := []byte("CERTIFICATE OF ORIGIN CO-2024-001")

	fromReader, err := DigestReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DigestReader failed: %v", err)
	}
	if fromReader != Digest(data) {
		t.Fatalf("DigestReader = %s, Digest = %s", fromReader, Digest(data))
	}
}
