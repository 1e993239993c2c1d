package golden

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := []byte("[0] QueryRoot\n  [1] TableScan t\n")
	compressed, err := Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if bytes.Equal(compressed, data) {
		t.Fatalf("expected Encode to actually compress, got identical bytes back")
	}
	got, err := Decode(compressed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, data)
	}
}

func TestCompare(t *testing.T) {
	data := []byte("explain output")
	compressed, err := Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	equal, want, err := Compare(data, compressed)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !equal {
		t.Fatalf("expected got and golden to compare equal")
	}
	if !bytes.Equal(want, data) {
		t.Fatalf("expected Compare to return the decoded golden content")
	}

	equal, _, err = Compare([]byte("different"), compressed)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if equal {
		t.Fatalf("expected mismatched content to compare unequal")
	}
}

func TestStoreSaveLoadCheck(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	data := []byte("fixture content")
	if err := s.Save("explain-basic", data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("explain-basic")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Load mismatch: got %q, want %q", got, data)
	}

	equal, _, err := s.Check("explain-basic", data)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !equal {
		t.Fatalf("expected Check to report a match against the saved fixture")
	}

	equal, _, err = s.Check("explain-basic", []byte("changed"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if equal {
		t.Fatalf("expected Check to report a mismatch against changed content")
	}

	if _, _, err := s.Check("missing-fixture", data); err == nil {
		t.Fatalf("expected Check to error on a missing fixture rather than silently report a mismatch")
	}
}
