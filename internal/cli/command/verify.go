package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/rewind-go/internal/cli/output"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/core/replay"
	"github.com/yndnr/rewind-go/internal/process/memproc"
	"github.com/yndnr/rewind-go/internal/telemetry/metric"
)

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	flags := append(sourceFlags(),
		&cli.IntFlag{
			Name:    "runs",
			Aliases: []string{"n"},
			Usage:   "Number of concurrent replays",
			Value:   3,
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Show a spinner on stderr while replaying",
		},
	)
	return &cli.Command{
		Name:   "verify",
		Usage:  "Replay a journal several times at once and check that every restore is identical",
		Flags:  flags,
		Action: verifyAction,
	}
}

// verifyRun is the outcome of one replay.
type verifyRun struct {
	Session     string        `json:"session" yaml:"session"`
	Applied     uint64        `json:"applied" yaml:"applied"`
	Position    uint64        `json:"position" yaml:"position"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Fingerprint string        `json:"fingerprint" yaml:"fingerprint"`
}

// verifyReport is the result printed by verify.
type verifyReport struct {
	Journal string      `json:"journal" yaml:"journal"`
	Match   bool        `json:"match" yaml:"match"`
	Runs    []verifyRun `json:"runs" yaml:"runs"`
}

func (r verifyReport) Table() *output.Table {
	t := output.NewTable("SESSION", "APPLIED", "POSITION", "DURATION", "FINGERPRINT")
	for _, run := range r.Runs {
		t.AddRow(run.Session, run.Applied, run.Position, run.Duration, run.Fingerprint)
	}
	return t
}

func verifyAction(c *cli.Context) error {
	e := envFrom(c)
	spec, err := resolveSource(c, e.cfg)
	if err != nil {
		return err
	}
	n := c.Int("runs")
	if n < 1 {
		return domain.ErrInvalidArgument.WithDetails("--runs must be at least 1")
	}

	var spinner *output.Spinner
	if c.Bool("progress") {
		spinner = output.NewSpinner(e.stderr, fmt.Sprintf("replaying %s %d times", spec.name(), n))
		spinner.Start()
		defer spinner.Stop("")
	}

	report, err := verifyJournal(c.Context, e, spec, n, c.Bool("allow-torn-tail"))
	if err != nil {
		return err
	}
	if spinner != nil {
		spinner.Stop("")
	}
	if err := e.print(report); err != nil {
		return err
	}
	if !report.Match {
		return fmt.Errorf("verify %s: restores differ", spec.name())
	}
	return nil
}

// verifyJournal replays spec n times concurrently, each run with its own
// reader and process, and compares the restored states.
func verifyJournal(ctx context.Context, e *env, spec sourceSpec, n int, allowTornTail bool) (verifyReport, error) {
	cfg := e.cfg
	mgr := replay.NewManager(e.log, metric.NewRegistry())
	runs := make([]verifyRun, n)

	// The store holds a directory lock, so runs share one handle.
	open := func(ctx context.Context) (*openedSource, error) {
		return openSource(ctx, e, spec, openOptions{allowTornTail: allowTornTail})
	}
	if spec.log != "" {
		store, err := openStore(e)
		if err != nil {
			return verifyReport{}, err
		}
		defer store.Close()
		open = func(ctx context.Context) (*openedSource, error) {
			return storeSource(ctx, store, spec.log)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			src, err := open(gctx)
			if err != nil {
				return err
			}
			defer src.Close()

			proc := memproc.New(
				memproc.WithMaxMemory(cfg.Process.MaxMemory),
				memproc.WithMaxFileSize(cfg.Process.MaxFileSize),
			)
			sess := mgr.Start(gctx, spec.name(), proc, src, replay.RunOptions{},
				replay.WithRespawnThreads(cfg.Replay.RespawnThreads),
				replay.WithFlushOnFinish(cfg.Replay.FlushOnFinish),
				replay.WithMaxStagedBytes(cfg.Replay.MaxStagedBytes),
			)
			<-sess.Done()
			res, err := sess.Wait(context.Background())
			if err != nil {
				return fmt.Errorf("run %d: %w", i+1, err)
			}
			runs[i] = verifyRun{
				Session:     sess.ID,
				Applied:     res.Applied,
				Position:    res.Position,
				Duration:    res.Duration,
				Fingerprint: proc.Fingerprint(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return verifyReport{}, err
	}

	report := verifyReport{Journal: spec.name(), Match: true, Runs: runs}
	for _, r := range runs[1:] {
		if r.Fingerprint != runs[0].Fingerprint || r.Position != runs[0].Position {
			report.Match = false
		}
	}
	return report, nil
}
