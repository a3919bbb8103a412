package spool

import "testing"

func TestIsDictationFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"study.dcm", true},
		{"study.DCM", true},
		{"study", true},
		{"study.wav", false},
		{"notes.txt", false},
		{".hidden", false},
		{".hidden.dcm", false},
	}
	for _, tt := range tests {
		if got := isDictationFile(tt.name); got != tt.want {
			t.Errorf("isDictationFile(%q) = %t, want %t", tt.name, got, tt.want)
		}
	}
}

func TestSpoolKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/spool/study12.dcm", "spool:study12"},
		{"/spool/study12", "spool:study12"},
		{"study.12.dcm", "spool:study.12"},
	}
	for _, tt := range tests {
		if got := spoolKey(tt.path); got != tt.want {
			t.Errorf("spoolKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
