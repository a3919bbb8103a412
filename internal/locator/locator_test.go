package locator

import (
	"context"
	"errors"
	"testing"

	"dictascribe/internal/relational"
	"dictascribe/internal/testutil"
)

type fakeStore struct {
	report       relational.Report
	reportErr    error
	dictation    relational.Dictation
	dictationErr error
	shareFolder  string
	storageErr   error
}

func (f *fakeStore) FindEligibleStudies(context.Context, int) ([]string, error) { return nil, nil }

func (f *fakeStore) FindReportByStudy(context.Context, string) (relational.Report, error) {
	return f.report, f.reportErr
}

func (f *fakeStore) FindDictationByReport(context.Context, int64) (relational.Dictation, error) {
	return f.dictation, f.dictationErr
}

func (f *fakeStore) FindStorageLocation(context.Context, int64) (string, error) {
	return f.shareFolder, f.storageErr
}

func (f *fakeStore) Close() error { return nil }

func TestLocate(t *testing.T) {
	store := &fakeStore{
		report:      relational.Report{Key: 55, Status: 3010},
		dictation:   relational.Dictation{PathName: `2024\06`, FileName: "study.dcm", StorageKey: 7},
		shareFolder: "dictation",
	}
	l := New(store, "pacs01", testutil.SilentLogger())

	got, err := l.Locate(context.Background(), "9001")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	want := `\\pacs01\dictation\2024\06\study.dcm`
	if got != want {
		t.Errorf("Locate() = %q, want %q", got, want)
	}
}

func TestLocateNotFoundAtEachHop(t *testing.T) {
	notFound := relational.ErrNotFound
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"no report", &fakeStore{reportErr: notFound}},
		{"no dictation", &fakeStore{dictationErr: notFound}},
		{"no storage", &fakeStore{storageErr: notFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.store, "pacs01", testutil.SilentLogger())
			_, err := l.Locate(context.Background(), "9002")
			if !errors.Is(err, relational.ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestJoinUNC(t *testing.T) {
	tests := []struct {
		name        string
		host        string
		shareFolder string
		parts       []string
		want        string
	}{
		{
			name:        "bare share name",
			host:        "pacs01",
			shareFolder: "dictation",
			parts:       []string{`2024\06`, "a.dcm"},
			want:        `\\pacs01\dictation\2024\06\a.dcm`,
		},
		{
			name:        "full unc root",
			host:        "ignored",
			shareFolder: `\\archive\dictation\`,
			parts:       []string{"a.dcm"},
			want:        `\\archive\dictation\a.dcm`,
		},
		{
			name:        "local mount",
			host:        "ignored",
			shareFolder: "/mnt/dictation",
			parts:       []string{"2024/06", "a.dcm"},
			want:        "/mnt/dictation/2024/06/a.dcm",
		},
		{
			name:        "forward slashes normalized for unc",
			host:        "pacs01",
			shareFolder: "dictation",
			parts:       []string{"2024/06", "a.dcm"},
			want:        `\\pacs01\dictation\2024\06\a.dcm`,
		},
		{
			name:        "empty segments dropped",
			host:        "pacs01",
			shareFolder: "dictation",
			parts:       []string{"", `\2024\`, "a.dcm"},
			want:        `\\pacs01\dictation\2024\a.dcm`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinUNC(tt.host, tt.shareFolder, tt.parts...); got != tt.want {
				t.Errorf("JoinUNC() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsUNC(t *testing.T) {
	if !IsUNC(`\\pacs01\dictation\a.dcm`) {
		t.Error("UNC path not detected")
	}
	if IsUNC("/mnt/dictation/a.dcm") {
		t.Error("local path misdetected as UNC")
	}
}
