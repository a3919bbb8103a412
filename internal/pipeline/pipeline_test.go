package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dictascribe/internal/audio"
	"dictascribe/internal/relational"
	"dictascribe/internal/share"
	"dictascribe/internal/srencoder"
	"dictascribe/internal/statusstore"
	"dictascribe/internal/testutil"
	"dictascribe/internal/transcriber"
)

type fakeLocator struct {
	path string
	err  error
}

func (f *fakeLocator) Locate(context.Context, string) (string, error) {
	return f.path, f.err
}

type fakeConnector struct {
	err   error
	calls int
}

func (f *fakeConnector) Connect(context.Context, string, share.Credentials) error {
	f.calls++
	return f.err
}

type fakeExtractor struct {
	t     *testing.T
	err   error
	panic bool
	path  string // set on first call
}

func (f *fakeExtractor) Extract(context.Context, string) (string, error) {
	if f.panic {
		panic("waveform decoder blew up")
	}
	if f.err != nil {
		return "", f.err
	}
	f.path = filepath.Join(f.t.TempDir(), "out.wav")
	if err := os.WriteFile(f.path, []byte("RIFF"), 0o600); err != nil {
		f.t.Fatal(err)
	}
	return f.path, nil
}

type fakeTranscriber struct {
	res *transcriber.Result
	err error
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string) (*transcriber.Result, error) {
	return f.res, f.err
}

type fakeEncoder struct {
	path  string
	err   error
	calls int
}

func (f *fakeEncoder) Encode(context.Context, transcriber.Result, string) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeWriter struct {
	err   error
	calls int
}

func (f *fakeWriter) Write(context.Context, string, string, string) error {
	f.calls++
	return f.err
}

func okResult() *transcriber.Result {
	return &transcriber.Result{
		Reading:    "Chest X-ray shows clear lungs.",
		Conclusion: "No acute findings.",
		Raw:        `{"Reading":"...","Conclusion":"..."}`,
	}
}

func newTestOrchestrator(t *testing.T, loc Locator, conn share.Connector, ext Extractor,
	tr transcriber.Transcriber, enc srencoder.Encoder, wr ReportWriter, opts Options) (*Orchestrator, *statusstore.MemoryStore) {
	t.Helper()
	store := statusstore.NewMemoryStore()
	o := New(loc, conn, ext, tr, store, enc, wr, opts, testutil.SilentLogger())
	return o, store
}

func mustStatus(t *testing.T, store *statusstore.MemoryStore, key string) statusstore.StudyStatus {
	t.Helper()
	st, err := store.GetStatus(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if st == nil {
		t.Fatalf("no status document for %s", key)
	}
	return *st
}

func TestProcessHappyPath(t *testing.T) {
	ext := &fakeExtractor{t: t}
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/2024/study1.dcm"},
		&fakeConnector{},
		ext,
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{})

	if err := o.Process(context.Background(), "1001"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	st := mustStatus(t, store, "1001")
	if st.Status != statusstore.StatusProcessingComplete {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusProcessingComplete)
	}
	if st.ErrorMessage != "" {
		t.Errorf("unexpected error message %q", st.ErrorMessage)
	}
	if st.DicomPath != "/mnt/dictation/2024/study1.dcm" {
		t.Errorf("dicom path = %q", st.DicomPath)
	}

	results := store.Results("1001")
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Reading != "Chest X-ray shows clear lungs." {
		t.Errorf("reading = %q", results[0].Reading)
	}

	if _, err := os.Stat(ext.path); !os.IsNotExist(err) {
		t.Errorf("temporary audio file %s was not deleted", ext.path)
	}
}

func TestProcessAudioUnavailable(t *testing.T) {
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study2.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t, err: audio.ErrUnavailable},
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{})

	if err := o.Process(context.Background(), "1002"); err == nil {
		t.Fatal("Process() expected error")
	}

	st := mustStatus(t, store, "1002")
	if st.Status != statusstore.StatusError {
		t.Fatalf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
	if !strings.Contains(st.ErrorMessage, "Unable to access file") {
		t.Errorf("error message = %q, want it to mention file access", st.ErrorMessage)
	}
	if got := store.Results("1002"); len(got) != 0 {
		t.Errorf("results = %d, want 0", len(got))
	}
}

func TestProcessTranscriptionFails(t *testing.T) {
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study3.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{err: transcriber.ErrValidation},
		nil, nil, Options{})

	if err := o.Process(context.Background(), "1003"); err == nil {
		t.Fatal("Process() expected error")
	}

	st := mustStatus(t, store, "1003")
	if st.Status != statusstore.StatusError {
		t.Fatalf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
	if st.ErrorMessage != "No transcription generated" {
		t.Errorf("error message = %q", st.ErrorMessage)
	}
}

func TestProcessWithSREncoding(t *testing.T) {
	enc := &fakeEncoder{path: "sr_output/study4_SR.dcm"}
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study4.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		enc, nil, Options{EncapsulateSR: true})

	if err := o.Process(context.Background(), "1004"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	st := mustStatus(t, store, "1004")
	if st.Status != statusstore.StatusCompleteSR {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusCompleteSR)
	}
	if enc.calls != 1 {
		t.Errorf("encoder calls = %d, want 1", enc.calls)
	}

	latest, err := store.LatestResult(context.Background(), "1004")
	if err != nil || latest == nil {
		t.Fatalf("LatestResult() = %v, %v", latest, err)
	}
	if latest.SRPath != "sr_output/study4_SR.dcm" {
		t.Errorf("sr_path = %q", latest.SRPath)
	}
}

func TestProcessSRFailureRetainsResult(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("bad source dataset")}
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study5.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		enc, nil, Options{EncapsulateSR: true})

	if err := o.Process(context.Background(), "1005"); err == nil {
		t.Fatal("Process() expected error")
	}

	st := mustStatus(t, store, "1005")
	if st.Status != statusstore.StatusError {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
	// The transcription saved before encoding must survive the failure.
	if got := store.Results("1005"); len(got) != 1 {
		t.Errorf("results = %d, want 1", len(got))
	}
}

func TestProcessSRFailureStillWritesLegacy(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("bad source dataset")}
	wr := &fakeWriter{}
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study11.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		enc, wr, Options{EncapsulateSR: true, StoreLegacyReport: true})

	if err := o.Process(context.Background(), "1011"); err == nil {
		t.Fatal("Process() expected error")
	}

	// The legacy stage depends only on the persisted transcription, so an
	// encoder failure must not skip it.
	if wr.calls != 1 {
		t.Errorf("writer calls = %d, want 1", wr.calls)
	}
	st := mustStatus(t, store, "1011")
	if st.Status != statusstore.StatusError {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
	if got := store.Results("1011"); len(got) != 1 {
		t.Errorf("results = %d, want 1", len(got))
	}
}

func TestProcessPrintsRawOutput(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study12.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{PrintOutput: true})

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	if err := o.Process(context.Background(), "1012"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), okResult().Raw) {
		t.Errorf("stdout = %q, want the raw model output", out)
	}
}

func TestProcessLegacyFailureIsNonFatal(t *testing.T) {
	wr := &fakeWriter{err: errors.New("ORA-00001")}
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study6.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		nil, wr, Options{StoreLegacyReport: true})

	if err := o.Process(context.Background(), "1006"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if wr.calls != 1 {
		t.Errorf("writer calls = %d, want 1", wr.calls)
	}

	st := mustStatus(t, store, "1006")
	if st.Status != statusstore.StatusProcessingComplete {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusProcessingComplete)
	}
}

func TestProcessLocateFailure(t *testing.T) {
	o, store := newTestOrchestrator(t,
		&fakeLocator{err: relational.ErrNotFound},
		&fakeConnector{},
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{})

	if err := o.Process(context.Background(), "1007"); err == nil {
		t.Fatal("Process() expected error")
	}
	st := mustStatus(t, store, "1007")
	if st.Status != statusstore.StatusError {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
}

func TestProcessShareAuthFailure(t *testing.T) {
	conn := &fakeConnector{err: share.ErrAuth}
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: `\\pacs01\dictation\study8.dcm`},
		conn,
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{ShareCreds: share.Credentials{Username: "svc", Password: "pw"}})

	if err := o.Process(context.Background(), "1008"); err == nil {
		t.Fatal("Process() expected error")
	}
	if conn.calls != 1 {
		t.Errorf("connector calls = %d, want 1", conn.calls)
	}
	st := mustStatus(t, store, "1008")
	if st.Status != statusstore.StatusError {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
	if !strings.Contains(st.ErrorMessage, "authenticate") {
		t.Errorf("error message = %q", st.ErrorMessage)
	}
}

func TestProcessUNCWithoutCredentialsProceeds(t *testing.T) {
	conn := &fakeConnector{err: share.ErrAuth} // must never be called
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: `\\pacs01\dictation\study9.dcm`},
		conn,
		&fakeExtractor{t: t},
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{})

	if err := o.Process(context.Background(), "1009"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if conn.calls != 0 {
		t.Errorf("connector calls = %d, want 0", conn.calls)
	}
	st := mustStatus(t, store, "1009")
	if st.Status != statusstore.StatusProcessingComplete {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusProcessingComplete)
	}
}

func TestProcessRecoversFromPanic(t *testing.T) {
	o, store := newTestOrchestrator(t,
		&fakeLocator{path: "/mnt/dictation/study10.dcm"},
		&fakeConnector{},
		&fakeExtractor{t: t, panic: true},
		&fakeTranscriber{res: okResult()},
		nil, nil, Options{})

	if err := o.Process(context.Background(), "1010"); err == nil {
		t.Fatal("Process() expected error after panic")
	}
	st := mustStatus(t, store, "1010")
	if st.Status != statusstore.StatusError {
		t.Errorf("status = %s, want %s", st.Status, statusstore.StatusError)
	}
	if !strings.Contains(st.ErrorMessage, "pipeline failed") {
		t.Errorf("error message = %q", st.ErrorMessage)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 5, "hello"},
		{"multibyte", "héllo", 2, "h"}, // never split the é
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
