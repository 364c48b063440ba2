package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
)

// testEnv is a scratch directory with a configuration file pointing every
// store at it.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := "store:\n  dir: " + filepath.Join(dir, "store") + "\n" +
		"checkpoint:\n  dir: " + filepath.Join(dir, "checkpoints") + "\n" +
		"log:\n  level: error\n"
	path := filepath.Join(dir, "rewind.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return &testEnv{dir: dir, config: path}
}

// run executes the CLI with the test configuration and returns stdout.
func (te *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"rewind", "--config", te.config}, args...))
	return stdout.String(), err
}

// mustRunJSON runs the CLI with JSON output and decodes the result.
func (te *testEnv) mustRunJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := te.run(t, append([]string{"-o", "json"}, args...)...)
	if err != nil {
		t.Fatalf("rewind %v: %v", args, err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode output of %v: %v\n%s", args, err, out)
	}
}

// sampleEntries is a two-segment journal: the second segment re-declares
// fd 3 and continues writing where the first left off.
func sampleEntries() []domain.Entry {
	file := domain.Descriptor{Type: domain.DescriptorFile, Path: "/data.txt"}
	return []domain.Entry{
		domain.InitModule{ModuleHash: []byte{1, 2, 3, 4}, MemorySize: 64},
		domain.OpenFileDescriptor{FD: 3, Descriptor: file},
		domain.FileDescriptorWrite{FD: 3, Offset: 0, Data: []byte("hello")},
		domain.UpdateMemoryRegion{Offset: 0, Data: []byte("abc")},
		domain.Snapshot{Timestamp: 1, Trigger: domain.TriggerPeriodic},
		domain.ClearEthereal{},
		domain.OpenFileDescriptor{FD: 3, Descriptor: file},
		domain.FileDescriptorWrite{FD: 3, Offset: 5, Data: []byte(" world")},
		domain.FileDescriptorWrite{FD: 1, Data: []byte("out\n")},
		domain.UpdateMemoryRegion{Offset: 8, Data: []byte("xyz")},
		domain.Snapshot{Timestamp: 2, Trigger: domain.TriggerPeriodic},
	}
}

func writeJournal(t *testing.T, path string, entries []domain.Entry) {
	t.Helper()
	w, err := journalfile.OpenWriter(journalfile.Config{Path: path})
	if err != nil {
		t.Fatalf("OpenWriter() error = %v", err)
	}
	for _, e := range entries {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append(%s) error = %v", e.Kind(), err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func (te *testEnv) journal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(te.dir, "app.journal")
	writeJournal(t, path, sampleEntries())
	return path
}
