package command

import (
	"strings"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

type rowOut struct {
	Position uint64 `json:"position"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
}

func TestInspect(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var rows []rowOut
	te.mustRunJSON(t, &rows, "inspect", "--journal", path)
	if len(rows) != len(sampleEntries()) {
		t.Fatalf("rows = %d, want %d", len(rows), len(sampleEntries()))
	}
	if rows[0].Kind != "init-module" || rows[0].Detail != "module=01020304 memory=64 B" {
		t.Errorf("first row = %+v", rows[0])
	}

	rows = nil
	te.mustRunJSON(t, &rows, "inspect", "--journal", path, "--kind", "fd-write", "--from", "3")
	if len(rows) != 2 || rows[0].Position != 7 || rows[1].Position != 8 {
		t.Errorf("filtered rows = %+v", rows)
	}

	rows = nil
	te.mustRunJSON(t, &rows, "inspect", "--journal", path, "--limit", "2")
	if len(rows) != 2 {
		t.Errorf("limited rows = %d", len(rows))
	}
}

func TestInspectSummary(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var counts []struct {
		Kind  string `json:"kind"`
		Count uint64 `json:"count"`
	}
	te.mustRunJSON(t, &counts, "inspect", "--journal", path, "--summary")
	got := make(map[string]uint64)
	for _, c := range counts {
		got[c.Kind] = c.Count
	}
	want := map[string]uint64{
		"init-module":          1,
		"clear-ethereal":       1,
		"update-memory-region": 2,
		"open-fd":              2,
		"fd-write":             3,
		"snapshot":             2,
	}
	for k, n := range want {
		if got[k] != n {
			t.Errorf("%s = %d, want %d", k, got[k], n)
		}
	}
}

func TestInspectTable(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	out, err := te.run(t, "inspect", "--journal", path, "--kind", "process-exit")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "no entries" {
		t.Errorf("output = %q", out)
	}

	if _, err := te.run(t, "inspect", "--journal", path, "--kind", "nope"); !domain.IsDomainError(err, domain.ErrInvalidArgument.Code) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestInspectSourceFlags(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	if _, err := te.run(t, "inspect"); err == nil {
		t.Error("missing source should fail")
	}
	if _, err := te.run(t, "inspect", "--journal", path, "--log", "app"); err == nil {
		t.Error("--journal with --log should fail")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		entry domain.Entry
		want  string
	}{
		{domain.ClearEthereal{}, ""},
		{domain.ProcessExit{ExitCode: 3}, "code=3"},
		{domain.RenumberFileDescriptor{From: 4, To: 9}, "from=4 to=9"},
		{domain.FileDescriptorSeek{FD: 3, Offset: -2, Whence: domain.WhenceEnd}, "fd=3 offset=-2 whence=" + domain.WhenceEnd.String()},
		{domain.InitModule{ModuleHash: make([]byte, 32)}, "module=0000000000000000… memory=0 B"},
	}
	for _, tt := range tests {
		if got := describe(tt.entry); got != tt.want {
			t.Errorf("describe(%s) = %q, want %q", tt.entry.Kind(), got, tt.want)
		}
	}
}
