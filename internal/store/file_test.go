package store

import (
	"os"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/research"
)

func TestFileStoreWriteAndReadState(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(config.FileConfig{ReportDir: dir, StateDir: dir})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	sess := research.NewSession("sess-1", "weekly mileage & pace: review?")
	if err := sess.SetOutline("weekly mileage", []research.Section{{Title: "A"}}); err != nil {
		t.Fatalf("SetOutline: %v", err)
	}
	sess.MarkCompleted("# Report\n\nbody")

	reportPath, err := fs.WriteReport(sess)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != "# Report\n\nbody" {
		t.Fatalf("report content: %q", data)
	}

	statePath, err := fs.WriteState(sess)
	if err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	got, err := fs.ReadState(statePath)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if got.ID != sess.ID || got.Status != research.StatusCompleted {
		t.Fatalf("state round trip: %+v", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"how is my pace", "how_is_my_pace"},
		{"pace? review!", "pace_review"},
		{"", "query"},
		{strings.Repeat("x", 40), strings.Repeat("x", 30)},
	}
	for _, tc := range cases {
		if got := slug(tc.in); got != tc.want {
			t.Fatalf("slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
