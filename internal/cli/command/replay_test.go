package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/process/memproc"
)

type summaryOut struct {
	Journal      string   `json:"journal"`
	ResumedFrom  string   `json:"resumed_from"`
	Applied      uint64   `json:"applied"`
	Position     uint64   `json:"position"`
	Segments     uint64   `json:"segments"`
	Stopped      bool     `json:"stopped_at_snapshot"`
	Checkpoints  int      `json:"checkpoints"`
	MemoryBytes  uint64   `json:"memory_bytes"`
	Files        int      `json:"files"`
	Fingerprint  string   `json:"fingerprint"`
	Differential []string `json:"differential"`
}

func TestReplayFile(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)
	imagePath := filepath.Join(te.dir, "image.json")

	var got summaryOut
	te.mustRunJSON(t, &got, "replay", "--journal", path, "--image", imagePath)

	if got.Journal != "file:"+path {
		t.Errorf("journal = %q", got.Journal)
	}
	if got.Applied != uint64(len(sampleEntries())) {
		t.Errorf("applied = %d, want %d", got.Applied, len(sampleEntries()))
	}
	if got.MemoryBytes != 64 || got.Files != 1 {
		t.Errorf("memory = %d files = %d", got.MemoryBytes, got.Files)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		t.Fatal(err)
	}
	var img domain.ProcessImage
	if err := json.Unmarshal(data, &img); err != nil {
		t.Fatal(err)
	}
	if string(img.Files["/data.txt"]) != "hello world" {
		t.Errorf("/data.txt = %q", img.Files["/data.txt"])
	}
	if string(img.Memory[:3]) != "abc" || string(img.Memory[8:11]) != "xyz" {
		t.Errorf("memory = %q", img.Memory[:11])
	}
	if fp := memproc.FingerprintImage(img); fp != got.Fingerprint {
		t.Errorf("image fingerprint = %s, summary says %s", fp, got.Fingerprint)
	}
}

func TestReplayUntilSnapshot(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var got summaryOut
	te.mustRunJSON(t, &got, "replay", "--journal", path, "--until-snapshot", "1")
	if !got.Stopped {
		t.Error("run should report stopping at a snapshot")
	}
	if got.Applied != 5 {
		t.Errorf("applied = %d, want 5", got.Applied)
	}
}

func TestReplayDifferential(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var got summaryOut
	te.mustRunJSON(t, &got, "replay", "--journal", path, "--differential")
	if !slices.Contains(got.Differential, domain.KindUpdateMemoryRegion.String()) {
		t.Errorf("differential = %v, want the last segment's memory update", got.Differential)
	}
	for _, k := range got.Differential {
		if k == domain.KindClearEthereal.String() {
			t.Errorf("differential should not hold segment boundaries: %v", got.Differential)
		}
	}
}

func TestReplayCheckpointResume(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var full summaryOut
	te.mustRunJSON(t, &full, "replay", "--journal", path, "--checkpoint")
	if full.Checkpoints != 1 {
		t.Fatalf("checkpoints = %d, want 1", full.Checkpoints)
	}

	var list []struct {
		ID       string `json:"id"`
		Journal  string `json:"journal"`
		Position uint64 `json:"position"`
	}
	te.mustRunJSON(t, &list, "checkpoint", "list")
	if len(list) != 1 || list[0].Journal != full.Journal {
		t.Fatalf("checkpoint list = %+v", list)
	}

	var resumed summaryOut
	te.mustRunJSON(t, &resumed, "replay", "--journal", path, "--resume")
	if resumed.ResumedFrom != list[0].ID {
		t.Errorf("resumed_from = %q, want %q", resumed.ResumedFrom, list[0].ID)
	}
	if resumed.Applied >= full.Applied {
		t.Errorf("resume applied %d entries, full replay %d", resumed.Applied, full.Applied)
	}
	if resumed.Position != full.Position {
		t.Errorf("position = %d, want %d", resumed.Position, full.Position)
	}
	if resumed.Fingerprint != full.Fingerprint {
		t.Errorf("resumed fingerprint %s differs from full replay %s", resumed.Fingerprint, full.Fingerprint)
	}

	var detail struct {
		ID          string `json:"id"`
		Fingerprint string `json:"fingerprint"`
		Files       int    `json:"files"`
	}
	te.mustRunJSON(t, &detail, "checkpoint", "show", list[0].ID)
	if detail.ID != list[0].ID || detail.Files != 1 {
		t.Errorf("checkpoint show = %+v", detail)
	}
	if _, err := te.run(t, "checkpoint", "show", "missing"); err == nil {
		t.Error("showing an unknown checkpoint should fail")
	}
}

func TestReplayResumeWithoutCheckpoint(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var got summaryOut
	te.mustRunJSON(t, &got, "replay", "--journal", path, "--resume")
	if got.ResumedFrom != "" || got.Applied != uint64(len(sampleEntries())) {
		t.Errorf("summary = %+v", got)
	}
}

func TestReplayCorruptJournal(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte{0xff, 0xff})
	f.Close()

	if _, err := te.run(t, "replay", "--journal", path); err == nil {
		t.Fatal("torn tail should fail without --allow-torn-tail")
	}
	var got summaryOut
	te.mustRunJSON(t, &got, "replay", "--journal", path, "--allow-torn-tail")
	if got.Applied != uint64(len(sampleEntries())) {
		t.Errorf("applied = %d", got.Applied)
	}
}

func TestReplayRejectsFollowFromStore(t *testing.T) {
	te := newTestEnv(t)
	_, err := te.run(t, "replay", "--log", "app", "--follow")
	if err == nil || !strings.Contains(err.Error(), "--follow") {
		t.Errorf("error = %v", err)
	}
}
