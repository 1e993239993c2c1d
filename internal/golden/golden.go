// Package golden stores zstd-compressed golden fixtures for the
// plan/optimize test suites — the canonical textual or JSON explain
// output a graph is expected to produce — and the round-trip helpers
// to read and check them, mirroring the teacher's own use of
// klauspost/compress/zstd for on-disk blocks (compr.zstdCompressor)
// generalized from compressing table data to compressing test
// fixtures.
package golden

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Encode compresses data with zstd at the default level, the same
// algorithm and defaults compr.zstdCompressor uses for on-disk blocks.
func Encode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("golden: new encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decode reverses Encode.
func Decode(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("golden: new decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("golden: decode: %w", err)
	}
	return out, nil
}

// Compare decodes golden and reports whether it is byte-identical to
// got, returning the decoded golden content either way so a failing
// test can print a useful diff.
func Compare(got, golden []byte) (equal bool, want []byte, err error) {
	want, err = Decode(golden)
	if err != nil {
		return false, nil, err
	}
	return bytes.Equal(got, want), want, nil
}

// Store is a directory of `<name>.golden.zst` fixture files.
type Store struct {
	Dir string
}

func (s Store) path(name string) string {
	return filepath.Join(s.Dir, name+".golden.zst")
}

// Load reads and decompresses the named fixture.
func (s Store) Load(name string) ([]byte, error) {
	compressed, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("golden: read %s: %w", name, err)
	}
	return Decode(compressed)
}

// Save compresses data and writes it as the named fixture, overwriting
// any existing content — used from a test's `-update` path, never from
// the normal assertion path.
func (s Store) Save(name string, data []byte) error {
	compressed, err := Encode(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("golden: mkdir %s: %w", s.Dir, err)
	}
	if err := os.WriteFile(s.path(name), compressed, 0o644); err != nil {
		return fmt.Errorf("golden: write %s: %w", name, err)
	}
	return nil
}

// Check loads the named fixture and compares it against got, reporting
// whether they match and the fixture's decoded content for diffing on
// mismatch. A missing fixture is reported as an error, not a mismatch,
// so a typo'd fixture name fails loudly instead of silently passing.
func (s Store) Check(name string, got []byte) (equal bool, want []byte, err error) {
	want, err = s.Load(name)
	if err != nil {
		return false, nil, err
	}
	return bytes.Equal(got, want), want, nil
}
