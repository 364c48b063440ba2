package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rewind-go/internal/config"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
	"github.com/yndnr/rewind-go/internal/storage/journalstore"
)

// StoreCommand returns the store subcommand group.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Manage journals kept in the badger journal store",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Copy a journal file into a stored log",
				ArgsUsage: "FILE LOG",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "allow-torn-tail",
						Usage: "Stop at a partial final frame instead of failing",
					},
				},
				Action: storeImport,
			},
			{
				Name:      "export",
				Usage:     "Write a stored log to a journal file",
				ArgsUsage: "LOG FILE",
				Action:    storeExport,
			},
			{
				Name:    "logs",
				Aliases: []string{"ls"},
				Usage:   "List stored logs",
				Action:  storeLogs,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a stored log",
				ArgsUsage: "LOG",
				Action:    storeDelete,
			},
			{
				Name:   "gc",
				Usage:  "Run value-log garbage collection",
				Action: storeGC,
			},
		},
	}
}

func twoArgs(c *cli.Context, first, second string) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", domain.ErrMissingArgument.WithDetailsf("usage: %s %s %s", c.Command.FullName(), first, second)
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

// withStore runs fn against the configured store and closes it afterwards.
func withStore(c *cli.Context, fn func(*env, *journalstore.Store) error) error {
	e := envFrom(c)
	store, err := openStore(e)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(e, store)
}

type importResult struct {
	Source  string `json:"source" yaml:"source"`
	Log     string `json:"log" yaml:"log"`
	Entries uint64 `json:"entries" yaml:"entries"`
	Total   uint64 `json:"total" yaml:"total"`
}

func storeImport(c *cli.Context) error {
	path, log, err := twoArgs(c, "FILE", "LOG")
	if err != nil {
		return err
	}
	return withStore(c, func(e *env, store *journalstore.Store) error {
		src, err := openFileSource(e, path, openOptions{allowTornTail: c.Bool("allow-torn-tail")})
		if err != nil {
			return err
		}
		defer src.Close()

		n, err := store.Import(c.Context, log, src)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		total, err := store.Count(c.Context, log)
		if err != nil {
			return err
		}
		e.log.Info("journal imported", "file", path, "log", log, "entries", n)
		return e.print(importResult{Source: path, Log: log, Entries: n, Total: total})
	})
}

type exportResult struct {
	Log     string `json:"log" yaml:"log"`
	Path    string `json:"path" yaml:"path"`
	Entries uint64 `json:"entries" yaml:"entries"`
	Bytes   int64  `json:"bytes" yaml:"bytes"`
	Sealed  bool   `json:"sealed" yaml:"sealed"`
}

func storeExport(c *cli.Context) error {
	log, path, err := twoArgs(c, "LOG", "FILE")
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return domain.ErrInvalidArgument.WithDetailsf("%s already exists", path)
	}
	return withStore(c, func(e *env, store *journalstore.Store) error {
		src, err := storeSource(c.Context, store, log)
		if err != nil {
			return err
		}
		cipher, err := e.cfg.Journal.Cipher(config.PurposeJournal)
		if err != nil {
			return fmt.Errorf("journal key: %w", err)
		}
		w, err := journalfile.OpenWriter(journalfile.Config{
			Path:     path,
			SyncMode: journalfile.SyncMode(e.cfg.Journal.SyncMode),
			Cipher:   cipher,
		})
		if err != nil {
			return err
		}

		for {
			entry, err := src.Next(c.Context)
			if errors.Is(err, io.EOF) {
				break
			}
			if err == nil {
				err = w.Append(entry)
			}
			if err != nil {
				w.Close()
				return fmt.Errorf("export %s: %w", log, err)
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
		return e.print(exportResult{Log: log, Path: path, Entries: w.Count(), Bytes: w.Offset(), Sealed: cipher != nil})
	})
}

func storeLogs(c *cli.Context) error {
	return withStore(c, func(e *env, store *journalstore.Store) error {
		logs, err := store.Logs(c.Context)
		if err != nil {
			return err
		}
		return e.print(logs)
	})
}

func storeDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrMissingArgument.WithDetails("usage: store delete LOG")
	}
	log := c.Args().First()
	return withStore(c, func(e *env, store *journalstore.Store) error {
		return store.DeleteLog(c.Context, log)
	})
}

type gcResult struct {
	Rewrites int                `json:"rewrites" yaml:"rewrites"`
	Stats    journalstore.Stats `json:"stats" yaml:"stats"`
}

func storeGC(c *cli.Context) error {
	return withStore(c, func(e *env, store *journalstore.Store) error {
		n, err := store.GC(c.Context)
		if err != nil {
			return err
		}
		return e.print(gcResult{Rewrites: n, Stats: store.Stats()})
	})
}
