package command

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rewind-go/internal/cli/output"
	"github.com/yndnr/rewind-go/internal/core/domain"
)

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	flags := append(sourceFlags(),
		&cli.Uint64Flag{
			Name:  "from",
			Usage: "First log position to show",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Show at most N entries (0 for all)",
		},
		&cli.StringSliceFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Usage:   "Only show entries of these kinds (e.g. fd-write, snapshot)",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Count entries per kind instead of listing them",
		},
	)
	return &cli.Command{
		Name:   "inspect",
		Usage:  "List the entries of a journal",
		Flags:  flags,
		Action: inspectAction,
	}
}

// entryRow is one listed entry.
type entryRow struct {
	Position uint64      `json:"position" yaml:"position"`
	Offset   int64       `json:"offset" yaml:"offset"`
	Kind     domain.Kind `json:"kind" yaml:"kind"`
	Detail   string      `json:"detail" yaml:"detail"`
}

// kindCount is one row of an inspect summary.
type kindCount struct {
	Kind  domain.Kind `json:"kind" yaml:"kind"`
	Count uint64      `json:"count" yaml:"count"`
}

func parseKinds(names []string) (map[domain.Kind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	want := make(map[domain.Kind]bool, len(names))
	for _, name := range names {
		i := slices.IndexFunc(domain.Kinds(), func(k domain.Kind) bool { return k.String() == name })
		if i < 0 {
			return nil, domain.ErrInvalidArgument.WithDetailsf("unknown entry kind %q", name)
		}
		want[domain.Kinds()[i]] = true
	}
	return want, nil
}

func inspectAction(c *cli.Context) error {
	e := envFrom(c)
	spec, err := resolveSource(c, e.cfg)
	if err != nil {
		return err
	}
	kinds, err := parseKinds(c.StringSlice("kind"))
	if err != nil {
		return err
	}

	src, err := openSource(c.Context, e, spec, openOptions{allowTornTail: c.Bool("allow-torn-tail")})
	if err != nil {
		return err
	}
	defer src.Close()

	var (
		from   = c.Uint64("from")
		limit  = c.Int("limit")
		rows   []entryRow
		counts = make(map[domain.Kind]uint64)
	)
	for pos := uint64(0); ; pos++ {
		offset := src.Offset()
		entry, err := src.Next(c.Context)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("position %d (offset %d): %w", pos, offset, err)
		}
		if pos < from || (kinds != nil && !kinds[entry.Kind()]) {
			continue
		}
		if c.Bool("summary") {
			counts[entry.Kind()]++
			continue
		}
		rows = append(rows, entryRow{Position: pos, Offset: offset, Kind: entry.Kind(), Detail: describe(entry)})
		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	if c.Bool("summary") {
		var out []kindCount
		for _, k := range domain.Kinds() {
			if n := counts[k]; n > 0 {
				out = append(out, kindCount{Kind: k, Count: n})
			}
		}
		return e.print(out)
	}
	if rows == nil && e.format == output.FormatTable {
		fmt.Fprintln(e.stdout, "no entries")
		return nil
	}
	return e.print(rows)
}

// describe renders the payload of an entry on one line.
func describe(e domain.Entry) string {
	switch e := e.(type) {
	case domain.InitModule:
		return fmt.Sprintf("module=%s memory=%s", shortHex(e.ModuleHash), output.FormatBytes(int64(e.MemorySize)))
	case domain.ClearEthereal:
		return ""
	case domain.UpdateMemoryRegion:
		return fmt.Sprintf("offset=%#x len=%d", e.Offset, len(e.Data))
	case domain.ProcessExit:
		return fmt.Sprintf("code=%d", e.ExitCode)
	case domain.SetThread:
		return fmt.Sprintf("thread=%d call_stack=%d memory_stack=%d store=%d", e.ID,
			len(e.State.CallStack), len(e.State.MemoryStack), len(e.State.StoreData))
	case domain.CloseThread:
		return fmt.Sprintf("thread=%d code=%d", e.ID, e.ExitCode)
	case domain.OpenFileDescriptor:
		return fmt.Sprintf("fd=%d type=%s path=%q flags=%#x", e.FD, e.Descriptor.Type, e.Descriptor.Path, e.Descriptor.Flags)
	case domain.CloseFileDescriptor:
		return fmt.Sprintf("fd=%d", e.FD)
	case domain.RenumberFileDescriptor:
		return fmt.Sprintf("from=%d to=%d", e.From, e.To)
	case domain.DuplicateFileDescriptor:
		return fmt.Sprintf("original=%d copy=%d", e.Original, e.Copied)
	case domain.FileDescriptorSeek:
		return fmt.Sprintf("fd=%d offset=%d whence=%s", e.FD, e.Offset, e.Whence)
	case domain.FileDescriptorWrite:
		return fmt.Sprintf("fd=%d offset=%d len=%d", e.FD, e.Offset, len(e.Data))
	case domain.MarkStandardStream:
		return fmt.Sprintf("fd=%d stream=%s", e.FD, e.Stream)
	case domain.UnmarkStandardStream:
		return fmt.Sprintf("fd=%d", e.FD)
	case domain.Snapshot:
		return fmt.Sprintf("timestamp=%d trigger=%s", e.Timestamp, e.Trigger)
	}
	return ""
}

func shortHex(b []byte) string {
	if len(b) > 8 {
		return hex.EncodeToString(b[:8]) + "…"
	}
	return hex.EncodeToString(b)
}
