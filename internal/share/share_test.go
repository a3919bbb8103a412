package share

import "testing"

func TestSplitUNC(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantHost  string
		wantShare string
		wantErr   bool
	}{
		{"full path", `\\pacs01\dictation\2024\a.dcm`, "pacs01", "dictation", false},
		{"share root only", `\\pacs01\dictation`, "pacs01", "dictation", false},
		{"not unc", "/mnt/dictation/a.dcm", "", "", true},
		{"missing share", `\\pacs01`, "", "", true},
		{"empty server", `\\\dictation`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, shareName, err := SplitUNC(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitUNC(%q) error = %v, wantErr %t", tt.path, err, tt.wantErr)
			}
			if host != tt.wantHost || shareName != tt.wantShare {
				t.Errorf("SplitUNC(%q) = %q, %q, want %q, %q",
					tt.path, host, shareName, tt.wantHost, tt.wantShare)
			}
		})
	}
}
