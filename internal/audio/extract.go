// Package audio decodes the waveform subrecord embedded in a dictation
// DICOM file into a WAV file next to the source.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrUnavailable reports a file that exists but could not be read after
// exhausting retries (locked, permission denied, share hiccup).
var ErrUnavailable = errors.New("unable to access file")

// ErrMalformed reports a DICOM file without a usable waveform subrecord.
var ErrMalformed = errors.New("malformed waveform data")

const (
	readAttempts = 5
	retryDelay   = time.Second
)

// Waveform module tags; the dictation modality nests these under the
// waveform sequence.
var (
	tagWaveformSequence    = tag.Tag{Group: 0x5400, Element: 0x0100}
	tagWaveformData        = tag.Tag{Group: 0x5400, Element: 0x1010}
	tagBitsAllocated       = tag.Tag{Group: 0x5400, Element: 0x1004}
	tagSamplingFrequency   = tag.Tag{Group: 0x003A, Element: 0x001A}
	tagNumberOfWaveChannel = tag.Tag{Group: 0x003A, Element: 0x0005}
)

type Extractor struct {
	log      *logrus.Entry
	parse    func(path string) (dicom.Dataset, error)
	attempts uint64
	delay    time.Duration
}

func NewExtractor(log *logrus.Entry) *Extractor {
	return &Extractor{
		log:      log,
		parse:    func(path string) (dicom.Dataset, error) { return dicom.ParseFile(path, nil) },
		attempts: readAttempts,
		delay:    retryDelay,
	}
}

// Extract reads the waveform from dcmPath and writes a WAV file beside
// it, returning the WAV path. Transient read failures are retried 5
// times at 1s intervals before giving up with ErrUnavailable.
func (e *Extractor) Extract(ctx context.Context, dcmPath string) (string, error) {
	if _, err := os.Stat(dcmPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s: %w", dcmPath, os.ErrNotExist)
	}

	ds, err := e.readWithRetry(ctx, dcmPath)
	if err != nil {
		return "", err
	}

	if _, err := ds.FindElementByTag(tagWaveformSequence); err != nil {
		return "", fmt.Errorf("%w: no waveform sequence in %s", ErrMalformed, dcmPath)
	}

	data, err := bytesOf(ds, tagWaveformData)
	if err != nil || len(data) == 0 {
		return "", fmt.Errorf("%w: waveform data missing in %s", ErrMalformed, dcmPath)
	}

	sampleRate, err := samplingFrequency(ds)
	if err != nil {
		return "", fmt.Errorf("%w: sampling frequency missing in %s", ErrMalformed, dcmPath)
	}

	bits, ok := intOf(ds, tagBitsAllocated)
	if !ok {
		e.log.WithField("path", dcmPath).Warn("waveform bits allocated missing, assuming 16-bit signed samples")
		bits = 16
	}
	switch bits {
	case 8, 16:
	default:
		e.log.WithFields(logrus.Fields{"path": dcmPath, "bits": bits}).
			Warn("unsupported waveform bit depth, decoding as 16-bit signed samples")
		bits = 16
	}

	if bits == 16 && len(data)%2 != 0 {
		e.log.WithFields(logrus.Fields{"path": dcmPath, "bytes": len(data)}).
			Warn("odd-length 16-bit waveform payload, dropping the trailing byte")
	}

	if channels, ok := intOf(ds, tagNumberOfWaveChannel); ok && channels != 1 {
		e.log.WithFields(logrus.Fields{"path": dcmPath, "channels": channels}).
			Warn("expected mono audio, downstream encoding may misinterpret interleaved channels")
	}

	wavPath := WavPathFor(dcmPath)
	if err := writeWav(wavPath, data, sampleRate, bits); err != nil {
		return "", fmt.Errorf("write wav %s: %w", wavPath, err)
	}

	e.log.WithFields(logrus.Fields{
		"path":        wavPath,
		"sample_rate": sampleRate,
		"bits":        bits,
	}).Info("audio extracted")
	return wavPath, nil
}

// readWithRetry parses the DICOM file, retrying transient access errors.
// Parse errors are permanent: a corrupt file will not fix itself.
func (e *Extractor) readWithRetry(ctx context.Context, dcmPath string) (dicom.Dataset, error) {
	var ds dicom.Dataset
	attempt := 0

	operation := func() error {
		attempt++
		var err error
		ds, err = e.parse(dcmPath)
		if err == nil {
			return nil
		}

		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			e.log.WithFields(logrus.Fields{"path": dcmPath, "attempt": attempt}).
				WithError(err).Warn("transient error reading dictation file")
			return err
		}
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.delay), e.attempts-1), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		if errors.Is(err, ErrMalformed) {
			return dicom.Dataset{}, err
		}
		return dicom.Dataset{}, fmt.Errorf("%w after %d attempts: %s", ErrUnavailable, e.attempts, dcmPath)
	}
	return ds, nil
}

// WavPathFor derives the output WAV path from the source path.
func WavPathFor(dcmPath string) string {
	if strings.HasSuffix(strings.ToLower(dcmPath), ".dcm") {
		return dcmPath[:len(dcmPath)-4] + ".wav"
	}
	return dcmPath + ".wav"
}

func writeWav(path string, data []byte, sampleRate, bits int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bits, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           DecodeSamples(data, bits),
		SourceBitDepth: bits,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// DecodeSamples converts the raw waveform payload into samples. 16-bit
// data is little-endian signed, 8-bit is unsigned per the waveform IOD.
func DecodeSamples(data []byte, bits int) []int {
	if bits == 8 {
		samples := make([]int, len(data))
		for i, b := range data {
			samples[i] = int(b)
		}
		return samples
	}

	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return samples
}

func bytesOf(ds dicom.Dataset, t tag.Tag) ([]byte, error) {
	el, err := ds.FindElementByTagNested(t)
	if err != nil {
		return nil, err
	}
	b, ok := el.Value.GetValue().([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected value type for tag %v", t)
	}
	return b, nil
}

func intOf(ds dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTagNested(t)
	if err != nil {
		return 0, false
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func samplingFrequency(ds dicom.Dataset) (int, error) {
	el, err := ds.FindElementByTagNested(tagSamplingFrequency)
	if err != nil {
		return 0, err
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			f, err := strconv.ParseFloat(strings.TrimSpace(v[0]), 64)
			if err != nil {
				return 0, err
			}
			return int(f), nil
		}
	case []float64:
		if len(v) > 0 {
			return int(v[0]), nil
		}
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	}
	return 0, errors.New("sampling frequency element empty")
}
