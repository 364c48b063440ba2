package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rewind-go/internal/cli/output"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/process/memproc"
	"github.com/yndnr/rewind-go/internal/storage/checkpoint"
)

// CheckpointCommand returns the checkpoint subcommand group.
func CheckpointCommand() *cli.Command {
	return &cli.Command{
		Name:    "checkpoint",
		Aliases: []string{"ckpt"},
		Usage:   "Inspect and prune replay checkpoints",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List checkpoints, oldest first",
				Action:  checkpointList,
			},
			{
				Name:      "show",
				Usage:     "Verify a checkpoint and describe its process image",
				ArgsUsage: "ID",
				Action:    checkpointShow,
			},
			{
				Name:  "prune",
				Usage: "Remove all but the newest checkpoints",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of checkpoints to keep (overrides checkpoint.keep)",
					},
				},
				Action: checkpointPrune,
			},
		},
	}
}

func checkpointList(c *cli.Context) error {
	e := envFrom(c)
	mgr, err := newCheckpointManager(e.cfg)
	if err != nil {
		return err
	}
	infos, err := mgr.List()
	if err != nil {
		return err
	}
	return e.print(infos)
}

// checkpointDetail describes a verified checkpoint.
type checkpointDetail struct {
	checkpoint.Info `yaml:",inline"`
	Fingerprint     string `json:"fingerprint" yaml:"fingerprint"`
	MemoryBytes     int    `json:"memory_bytes" yaml:"memory_bytes"`
	Files           int    `json:"files" yaml:"files"`
	Descriptors     int    `json:"descriptors" yaml:"descriptors"`
	Threads         int    `json:"threads" yaml:"threads"`
	Exited          bool   `json:"exited" yaml:"exited"`
}

func (d checkpointDetail) Table() *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("id", d.ID)
	t.AddRow("journal", d.Journal)
	t.AddRow("position", d.Position)
	t.AddRow("offset", d.Offset)
	t.AddRow("created", time.UnixMilli(d.CreatedAt).UTC())
	t.AddRow("sealed", d.Sealed)
	t.AddRow("size", output.FormatBytes(d.Size))
	t.AddRow("checksum", d.Checksum)
	t.AddRow("fingerprint", d.Fingerprint)
	t.AddRow("memory", output.FormatBytes(int64(d.MemoryBytes)))
	t.AddRow("files", d.Files)
	t.AddRow("descriptors", d.Descriptors)
	t.AddRow("threads", d.Threads)
	t.AddRow("exited", d.Exited)
	return t
}

func checkpointShow(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrMissingArgument.WithDetails("usage: checkpoint show ID")
	}
	e := envFrom(c)
	mgr, err := newCheckpointManager(e.cfg)
	if err != nil {
		return err
	}
	infos, err := mgr.List()
	if err != nil {
		return err
	}
	id := c.Args().First()
	for _, info := range infos {
		if info.ID != id {
			continue
		}
		img, full, err := mgr.LoadFile(info.Path)
		if err != nil {
			return err
		}
		return e.print(checkpointDetail{
			Info:        *full,
			Fingerprint: memproc.FingerprintImage(img),
			MemoryBytes: len(img.Memory),
			Files:       len(img.Files),
			Descriptors: len(img.Descriptors),
			Threads:     len(img.Threads),
			Exited:      img.Exited,
		})
	}
	return domain.ErrInvalidArgument.WithDetailsf("no checkpoint %q in %s", id, e.cfg.Checkpoint.Dir)
}

func checkpointPrune(c *cli.Context) error {
	e := envFrom(c)
	cfg := *e.cfg
	if c.IsSet("keep") {
		cfg.Checkpoint.Keep = c.Int("keep")
	}
	if cfg.Checkpoint.Keep < 1 {
		return domain.ErrInvalidArgument.WithDetails("--keep must be at least 1")
	}
	mgr, err := newCheckpointManager(&cfg)
	if err != nil {
		return err
	}
	removed, err := mgr.Prune()
	if err != nil {
		return err
	}
	e.log.Info("checkpoints pruned", "removed", len(removed), "keep", cfg.Checkpoint.Keep)
	if removed == nil {
		removed = []*checkpoint.Info{}
	}
	return e.print(removed)
}
