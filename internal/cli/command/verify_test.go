package command

import "testing"

func TestVerifyFile(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)

	var report struct {
		Journal string `json:"journal"`
		Match   bool   `json:"match"`
		Runs    []struct {
			Session     string `json:"session"`
			Applied     uint64 `json:"applied"`
			Fingerprint string `json:"fingerprint"`
		} `json:"runs"`
	}
	te.mustRunJSON(t, &report, "verify", "--journal", path, "--runs", "3")
	if !report.Match {
		t.Fatalf("runs differ: %+v", report.Runs)
	}
	if len(report.Runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(report.Runs))
	}
	seen := make(map[string]bool)
	for _, run := range report.Runs {
		if run.Applied != uint64(len(sampleEntries())) {
			t.Errorf("run %s applied %d", run.Session, run.Applied)
		}
		if seen[run.Session] {
			t.Errorf("session id %s reused", run.Session)
		}
		seen[run.Session] = true
	}
}

func TestVerifyRejectsZeroRuns(t *testing.T) {
	te := newTestEnv(t)
	path := te.journal(t)
	if _, err := te.run(t, "verify", "--journal", path, "--runs", "0"); err == nil {
		t.Error("--runs 0 should fail")
	}
}
