package srencoder

import (
	"strings"
	"testing"
)

func TestSRFileNameFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`\\pacs01\dictation\2024\study12.dcm`, "study12_SR.dcm"},
		{"/mnt/dictation/study12.dcm", "study12_SR.dcm"},
		{"study12.dcm", "study12_SR.dcm"},
		{"study12", "study12_SR.dcm"},
		{`C:\archive\study.12.dcm`, "study.12_SR.dcm"},
	}
	for _, tt := range tests {
		if got := srFileNameFor(tt.in); got != tt.want {
			t.Errorf("srFileNameFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewUID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		uid := NewUID()
		if !strings.HasPrefix(uid, uidRoot+".") {
			t.Fatalf("uid %q missing root prefix", uid)
		}
		if len(uid) > 64 {
			t.Fatalf("uid %q exceeds 64 characters (%d)", uid, len(uid))
		}
		for _, r := range uid {
			if r != '.' && (r < '0' || r > '9') {
				t.Fatalf("uid %q contains invalid character %q", uid, r)
			}
		}
		if _, dup := seen[uid]; dup {
			t.Fatalf("uid %q generated twice", uid)
		}
		seen[uid] = struct{}{}
	}
}
