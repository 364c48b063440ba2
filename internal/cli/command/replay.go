package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/rewind-go/internal/cli/output"
	"github.com/yndnr/rewind-go/internal/config"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/core/replay"
	"github.com/yndnr/rewind-go/internal/infra/confloader"
	"github.com/yndnr/rewind-go/internal/infra/shutdown"
	"github.com/yndnr/rewind-go/internal/process/memproc"
	"github.com/yndnr/rewind-go/internal/storage/checkpoint"
	"github.com/yndnr/rewind-go/internal/telemetry/metric"
	"github.com/yndnr/rewind-go/internal/telemetry/tracer"
)

const shutdownTimeout = 10 * time.Second

var errInterrupted = errors.New("replay interrupted")

// ReplayCommand returns the replay command.
func ReplayCommand() *cli.Command {
	flags := append(sourceFlags(),
		&cli.BoolFlag{
			Name:    "follow",
			Aliases: []string{"f"},
			Usage:   "Keep applying entries as the journal file grows, until SIGINT or SIGTERM",
		},
		&cli.BoolFlag{
			Name:  "checkpoint",
			Usage: "Write a checkpoint at every segment boundary",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Start from the newest checkpoint of this journal",
		},
		&cli.Uint64Flag{
			Name:  "until-snapshot",
			Usage: "Stop after N snapshot entries",
		},
		&cli.Float64Flag{
			Name:  "rate",
			Usage: "Entries per second (overrides replay.rate)",
		},
		&cli.BoolFlag{
			Name:  "flush",
			Usage: "Flush buffered stdio into the process on finish (overrides replay.flush_on_finish)",
		},
		&cli.BoolFlag{
			Name:  "respawn",
			Usage: "Re-create journaled threads on finish (overrides replay.respawn_threads)",
		},
		&cli.BoolFlag{
			Name:  "stdio",
			Usage: "Forward the restored process's standard output and error to this terminal",
		},
		&cli.BoolFlag{
			Name:  "differential",
			Usage: "Report the ethereal entries of the last segment",
		},
		&cli.StringFlag{
			Name:  "image",
			Usage: "Write the restored process image as JSON to `FILE`",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address while replaying (overrides metrics.addr)",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Show progress on stderr",
		},
	)
	return &cli.Command{
		Name:   "replay",
		Usage:  "Restore a process by replaying its journal",
		Flags:  flags,
		Action: replayAction,
	}
}

// replaySummary is the result printed by replay.
type replaySummary struct {
	Journal      string              `json:"journal" yaml:"journal"`
	Session      string              `json:"session" yaml:"session"`
	ResumedFrom  string              `json:"resumed_from,omitempty" yaml:"resumed_from,omitempty"`
	Applied      uint64              `json:"applied" yaml:"applied"`
	Position     uint64              `json:"position" yaml:"position"`
	Segments     uint64              `json:"segments" yaml:"segments"`
	Stopped      bool                `json:"stopped_at_snapshot" yaml:"stopped_at_snapshot"`
	Duration     time.Duration       `json:"duration" yaml:"duration"`
	Checkpoints  int                 `json:"checkpoints" yaml:"checkpoints"`
	Exited       bool                `json:"exited" yaml:"exited"`
	ExitCode     uint32              `json:"exit_code" yaml:"exit_code"`
	MemoryBytes  uint64              `json:"memory_bytes" yaml:"memory_bytes"`
	Files        int                 `json:"files" yaml:"files"`
	Threads      int                 `json:"threads" yaml:"threads"`
	Fingerprint  string              `json:"fingerprint" yaml:"fingerprint"`
	Diagnostics  []replay.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Differential []string            `json:"differential,omitempty" yaml:"differential,omitempty"`
}

// replayConfig applies command flags over the loaded configuration.
func replayConfig(c *cli.Context, base *config.Config) config.Config {
	cfg := *base
	if c.IsSet("rate") {
		cfg.Replay.Rate = c.Float64("rate")
		if cfg.Replay.Burst < 1 {
			cfg.Replay.Burst = 1
		}
	}
	if c.IsSet("flush") {
		cfg.Replay.FlushOnFinish = c.Bool("flush")
	}
	if c.IsSet("respawn") {
		cfg.Replay.RespawnThreads = c.Bool("respawn")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	return cfg
}

func replayAction(c *cli.Context) error {
	e := envFrom(c)
	cfg := replayConfig(c, e.cfg)
	if err := config.Verify(&cfg); err != nil {
		return err
	}
	spec, err := resolveSource(c, &cfg)
	if err != nil {
		return err
	}
	follow := c.Bool("follow")
	if follow && spec.log != "" {
		return domain.ErrInvalidArgument.WithDetails("--follow needs a journal file")
	}

	parent, cancelParent := context.WithCancel(c.Context)
	defer cancelParent()
	sh := shutdown.NewHandler(shutdownTimeout, e.log)
	ctx := sh.Start(parent)

	stopTracing, err := tracer.Setup(ctx, tracer.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := stopTracing(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	var ckpts *checkpoint.Manager
	if c.Bool("checkpoint") || c.Bool("resume") {
		if ckpts, err = newCheckpointManager(&cfg); err != nil {
			return err
		}
	}

	procOpts := []memproc.Option{
		memproc.WithMaxMemory(cfg.Process.MaxMemory),
		memproc.WithMaxFileSize(cfg.Process.MaxFileSize),
	}
	if c.Bool("stdio") {
		procOpts = append(procOpts, memproc.WithStdout(e.stdout), memproc.WithStderr(e.stderr))
	}
	proc := memproc.New(procOpts...)

	var (
		start      uint64
		resumeAt   int64 = -1
		resumedID  string
		journalKey = spec.name()
	)
	if c.Bool("resume") {
		img, info, err := ckpts.Load(journalKey)
		switch {
		case errors.Is(err, checkpoint.ErrNoCheckpoints):
			e.log.Info("no checkpoint found, replaying from the start", "journal", journalKey)
		case err != nil:
			return err
		default:
			proc = memproc.FromImage(img, procOpts...)
			start, resumeAt, resumedID = info.Position, info.Offset, info.ID
			e.log.Info("resuming from checkpoint", "id", info.ID, "position", info.Position, "offset", info.Offset)
		}
	}

	src, err := openSource(ctx, e, spec, openOptions{follow: follow, allowTornTail: c.Bool("allow-torn-tail")})
	if err != nil {
		return err
	}
	defer src.Close()
	if resumeAt >= 0 {
		if err := src.seek(resumeAt); err != nil {
			return fmt.Errorf("seek to checkpoint offset %d: %w", resumeAt, err)
		}
	}

	metrics := metric.NewRegistry()
	if src.store != nil {
		if err := src.store.RegisterMetrics(metrics.Prometheus()); err != nil {
			return err
		}
	}
	if cfg.Metrics.Addr != "" {
		srv, err := serveMetrics(e, cfg.Metrics.Addr, metrics)
		if err != nil {
			return err
		}
		defer srv.Close()
		sh.OnShutdown("metrics", srv.Shutdown)
	}

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	if follow {
		sh.OnShutdown("follower", func(context.Context) error {
			src.stop()
			return nil
		})
		if e.configPath != "" {
			w, err := confloader.NewWatcher(e.configPath, confloader.WithWatcherLogger(e.log))
			if err != nil {
				e.log.Warn("configuration watch disabled", "error", err)
			} else {
				w.OnChange(func(string) { e.reloadLogLevel() })
				w.StartAsync()
				defer w.Stop()
			}
		}
	} else {
		sh.OnShutdown("replay", func(context.Context) error {
			cancelRun(errInterrupted)
			return nil
		})
	}

	runOpts := replay.RunOptions{UntilSnapshot: c.Uint64("until-snapshot")}
	if cfg.Replay.Rate > 0 {
		runOpts.Limiter = rate.NewLimiter(rate.Limit(cfg.Replay.Rate), cfg.Replay.Burst)
	}
	var progress *output.Progress
	if c.Bool("progress") {
		progress = output.NewProgress(e.stderr, "replay", src.total)
		runOpts.Progress = func(p replay.Progress) { progress.Update(src.Offset(), p.Applied) }
	}
	written := 0
	if c.Bool("checkpoint") {
		runOpts.OnSegment = func(ctx context.Context, b replay.Boundary) error {
			info, err := ckpts.Create(checkpoint.Boundary{Journal: journalKey, Position: b.Position, Offset: b.Offset}, proc.Image())
			if err != nil {
				return err
			}
			written++
			e.log.Info("checkpoint written", "id", info.ID, "position", info.Position)
			removed, err := ckpts.Prune()
			if err != nil {
				e.log.Warn("checkpoint prune failed", "error", err)
			}
			for _, r := range removed {
				e.log.Debug("checkpoint pruned", "id", r.ID)
			}
			return nil
		}
	}

	collector := &replay.Collector{}
	playerOpts := []replay.Option{
		replay.WithStartPosition(start),
		replay.WithRespawnThreads(cfg.Replay.RespawnThreads),
		replay.WithFlushOnFinish(cfg.Replay.FlushOnFinish),
		replay.WithMaxStagedBytes(cfg.Replay.MaxStagedBytes),
	}
	if c.Bool("differential") {
		playerOpts = append(playerOpts, replay.WithDifferential(collector))
	}

	mgr := replay.NewManager(e.log, metrics)
	sess := mgr.Start(runCtx, journalKey, proc, src, runOpts, playerOpts...)
	res, runErr := sess.Wait(context.Background())
	if progress != nil {
		progress.Finish()
	}
	if runErr != nil {
		return fmt.Errorf("replay %s: %w", journalKey, runErr)
	}

	if path := c.String("image"); path != "" {
		if err := writeImage(path, proc.Image()); err != nil {
			return err
		}
	}

	p := sess.Player()
	exited, code := proc.ExitStatus()
	summary := replaySummary{
		Journal:     journalKey,
		Session:     sess.ID,
		ResumedFrom: resumedID,
		Applied:     res.Applied,
		Position:    res.Position,
		Segments:    res.Segments,
		Stopped:     res.Stopped,
		Duration:    res.Duration,
		Checkpoints: written,
		Exited:      exited,
		ExitCode:    code,
		MemoryBytes: proc.MemorySize(),
		Files:       len(proc.Files()),
		Threads:     len(proc.Threads()),
		Fingerprint: proc.Fingerprint(),
		Diagnostics: p.Diagnostics(),
	}
	for _, entry := range collector.Entries() {
		summary.Differential = append(summary.Differential, entry.Kind().String())
	}
	return e.print(summary)
}

func newCheckpointManager(cfg *config.Config) (*checkpoint.Manager, error) {
	c, err := cfg.Journal.Cipher(config.PurposeCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint key: %w", err)
	}
	return checkpoint.NewManager(checkpoint.Config{Dir: cfg.Checkpoint.Dir, Keep: cfg.Checkpoint.Keep, Cipher: c})
}

func serveMetrics(e *env, addr string, metrics *metric.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		e.log.Info("metrics listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server failed", "error", err)
		}
	}()
	return srv, nil
}

func writeImage(path string, img domain.ProcessImage) error {
	data, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
