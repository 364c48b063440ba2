package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Info contains build information.
type Info struct {
	Version       string `json:"version" yaml:"version"`
	Commit        string `json:"commit" yaml:"commit"`
	BuildTime     string `json:"build_time" yaml:"build_time"`
	GoVersion     string `json:"go_version" yaml:"go_version"`
	Modified      bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	FormatVersion int    `json:"journal_format_version" yaml:"journal_format_version"`
}

var (
	once sync.Once
	info Info
)

// JournalFormatVersion is reported alongside the binary version. It is set
// by the command package to avoid an import cycle with domain.
var JournalFormatVersion int

// Get returns the build information.
func Get() Info {
	once.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
				info.Version = bi.Main.Version
			}
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if info.Commit == "" {
						info.Commit = s.Value
					}
				case "vcs.time":
					if info.BuildTime == "" {
						info.BuildTime = s.Value
					}
				case "vcs.modified":
					info.Modified = s.Value == "true"
				}
			}
		}
		if info.Commit == "" {
			info.Commit = "unknown"
		}
		if info.BuildTime == "" {
			info.BuildTime = "unknown"
		}
	})
	out := info
	out.FormatVersion = JournalFormatVersion
	return out
}

// String returns a one-line version string.
func String() string {
	i := Get()
	s := i.Version + " (" + shortCommit(i.Commit)
	if i.Modified {
		s += "-dirty"
	}
	return s + ", " + i.GoVersion + ")"
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
