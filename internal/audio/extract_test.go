package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/suyashkumar/dicom"

	"dictascribe/internal/testutil"
)

func TestWavPathFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/data/study.dcm", "/data/study.wav"},
		{"/data/study.DCM", "/data/study.wav"},
		{"/data/study", "/data/study.wav"},
		{`\\pacs01\dictation\study.dcm`, `\\pacs01\dictation\study.wav`},
	}
	for _, tt := range tests {
		if got := WavPathFor(tt.in); got != tt.want {
			t.Errorf("WavPathFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeSamples16Bit(t *testing.T) {
	// -1, 0, 256 little-endian
	data := []byte{0xFF, 0xFF, 0x00, 0x00, 0x00, 0x01}
	got := DecodeSamples(data, 16)
	want := []int{-1, 0, 256}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDecodeSamples8Bit(t *testing.T) {
	got := DecodeSamples([]byte{0, 128, 255}, 8)
	want := []int{0, 128, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDecodeSamplesOddLengthDropsTrailingByte(t *testing.T) {
	got := DecodeSamples([]byte{0x01, 0x00, 0x02, 0x00, 0xFF}, 16)
	if len(got) != 2 {
		t.Fatalf("samples = %d, want 2", len(got))
	}
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("samples = %v, want [1 2]", got)
	}
}

func TestExtractRetriesUntilUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.dcm")
	if err := os.WriteFile(path, []byte("placeholder"), 0o600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(testutil.SilentLogger())
	e.delay = time.Millisecond

	var attempts int
	e.parse = func(p string) (dicom.Dataset, error) {
		attempts++
		return dicom.Dataset{}, &os.PathError{Op: "read", Path: p, Err: errors.New("resource busy")}
	}

	_, err := e.Extract(context.Background(), path)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if attempts != 5 {
		t.Errorf("attempts = %d, want 5", attempts)
	}
	if !strings.Contains(err.Error(), "after 5 attempts") {
		t.Errorf("error message = %q, want the attempt count", err)
	}
}

func TestExtractParseErrorIsNotRetried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.dcm")
	if err := os.WriteFile(path, []byte("placeholder"), 0o600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(testutil.SilentLogger())
	e.delay = time.Millisecond

	var attempts int
	e.parse = func(string) (dicom.Dataset, error) {
		attempts++
		return dicom.Dataset{}, errors.New("unexpected preamble")
	}

	_, err := e.Extract(context.Background(), path)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("error = %v, want ErrMalformed", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (corrupt files do not heal)", attempts)
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := NewExtractor(testutil.SilentLogger())
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.dcm"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestExtractMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.dcm")
	if err := os.WriteFile(path, []byte("this is not a DICOM file"), 0o600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor(testutil.SilentLogger())
	_, err := e.Extract(context.Background(), path)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}
