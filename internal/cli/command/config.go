package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/rewind-go/internal/cli/output"
	"github.com/yndnr/rewind-go/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration diagnostics",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					e := envFrom(c)
					format := e.format
					if format == output.FormatTable {
						// Sections do not fit a flat table.
						format = output.FormatYAML
					}
					return output.Print(e.stdout, format, config.Sanitize(e.cfg))
				},
			},
		},
	}
}
