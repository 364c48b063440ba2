package command

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rewind-go/internal/cli/output"
	"github.com/yndnr/rewind-go/internal/config"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/infra/buildinfo"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

const envKey = "rewind.env"

// env is the state the root Before hook prepares for every action.
type env struct {
	cfg        *config.Config
	configPath string
	overrides  map[string]any
	log        logger.Logger
	format     output.Format
	stdout     io.Writer
	stderr     io.Writer
}

// App creates the CLI application.
func App() *cli.App {
	buildinfo.JournalFormatVersion = domain.FormatVersion
	return &cli.App{
		Name:    "rewind",
		Usage:   "Restore WASIX processes by replaying their journals",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ReplayCommand(),
			InspectCommand(),
			VerifyCommand(),
			StoreCommand(),
			CheckpointCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: setup,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"REWIND_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
	}
}

// globalOverrides maps global flags the user set to configuration keys.
func globalOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	if c.IsSet("log-format") {
		overrides["log.format"] = c.String("log-format")
	}
	return overrides
}

func setup(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}

	path := c.String("config")
	overrides := globalOverrides(c)
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	l, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(l)

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[envKey] = &env{
		cfg:        cfg,
		configPath: path,
		overrides:  overrides,
		log:        l,
		format:     format,
		stdout:     c.App.Writer,
		stderr:     c.App.ErrWriter,
	}
	return nil
}

// envFrom returns the state prepared by setup.
func envFrom(c *cli.Context) *env {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e
	}
	// Actions run without setup only in tests that build a bare context.
	return &env{
		cfg:    config.Default(),
		log:    logger.Default(),
		format: output.FormatTable,
		stdout: c.App.Writer,
		stderr: c.App.ErrWriter,
	}
}

func (e *env) print(data any) error {
	return output.Print(e.stdout, e.format, data)
}

// reloadLogLevel re-reads the configuration file and applies its log
// level. Other settings only take effect on the next run.
func (e *env) reloadLogLevel() {
	cfg, err := config.Load(e.configPath, e.overrides)
	if err != nil {
		e.log.Warn("configuration reload failed", "error", err)
		return
	}
	if cfg.Log.Level != logger.GetLevel() {
		logger.SetLevel(cfg.Log.Level)
		e.log.Info("log level changed", "level", cfg.Log.Level)
	}
}
