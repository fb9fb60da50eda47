package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"headlessrun/internal/config"
)

// RunOptions carries the flags of one `run` invocation.
type RunOptions struct {
	Command    string
	Dir        string
	Timeout    time.Duration
	Env        []string
	EnvFile    string
	KeyFile    string
	NoHistory  bool
	EventsAddr string
}

type Deps struct {
	LoadConfig   func() config.Config
	RunCommand   func(ctx context.Context, cfg config.Config, opts RunOptions) (int, error)
	ShowHistory  func(ctx context.Context, cfg config.Config, limit int, runID string) error
	ShowPatterns func(cfg config.Config) error
	RunMigrateUp func(ctx context.Context, cfg config.Config) error
	EnvKeygen    func(cfg config.Config, keyPath string) error
	EnvEncrypt   func(cfg config.Config, keyPath, inPath, outPath string) error
	EnvDecrypt   func(cfg config.Config, keyPath, inPath string) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "headlessrun",
		Usage: "run interactive commands unattended",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a command, answering its prompts automatically",
				ArgsUsage: "-- COMMAND [ARGS...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "working directory for the command"},
					&cli.DurationFlag{Name: "timeout", Usage: "per-attempt deadline (0 uses the configured default)"},
					&cli.StringSliceFlag{Name: "env", Usage: "extra KEY=VALUE for the command environment"},
					&cli.StringFlag{Name: "env-file", Usage: "encrypted env bundle to load"},
					&cli.StringFlag{Name: "key", Usage: "env bundle key file (defaults to DATA_DIR/env.key)"},
					&cli.BoolFlag{Name: "no-history", Usage: "skip recording this run in the history database"},
					&cli.StringFlag{Name: "events-addr", Usage: "serve a websocket event feed on this address"},
				},
				Action: func(ctx *cli.Context) error {
					if deps.RunCommand == nil {
						return errors.New("run command handler is not configured")
					}
					commandLine := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
					if commandLine == "" {
						return cli.Exit("run: no command given", 2)
					}
					opts := RunOptions{
						Command:    commandLine,
						Dir:        ctx.String("dir"),
						Timeout:    ctx.Duration("timeout"),
						Env:        ctx.StringSlice("env"),
						EnvFile:    ctx.String("env-file"),
						KeyFile:    ctx.String("key"),
						NoHistory:  ctx.Bool("no-history"),
						EventsAddr: ctx.String("events-addr"),
					}
					code, err := deps.RunCommand(ctx.Context, loadConfig(deps), opts)
					if err != nil && code == 0 {
						return err
					}
					if code != 0 {
						return cli.Exit("", code)
					}
					return nil
				},
			},
			{
				Name:  "history",
				Usage: "list recorded runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "max runs to list"},
					&cli.StringFlag{Name: "run", Usage: "show the answered prompts of one run"},
				},
				Action: func(ctx *cli.Context) error {
					if deps.ShowHistory == nil {
						return errors.New("history handler is not configured")
					}
					return deps.ShowHistory(ctx.Context, loadConfig(deps), ctx.Int("limit"), ctx.String("run"))
				},
			},
			{
				Name:  "patterns",
				Usage: "print the active prompt rule table",
				Action: func(ctx *cli.Context) error {
					if deps.ShowPatterns == nil {
						return errors.New("patterns handler is not configured")
					}
					return deps.ShowPatterns(loadConfig(deps))
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							if deps.RunMigrateUp == nil {
								return errors.New("migrate up handler is not configured")
							}
							return deps.RunMigrateUp(ctx.Context, loadConfig(deps))
						},
					},
				},
			},
			{
				Name:  "env",
				Usage: "manage encrypted env bundles",
				Subcommands: []*cli.Command{
					{
						Name:  "keygen",
						Usage: "create a new bundle key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "key", Usage: "key file path (defaults to DATA_DIR/env.key)"},
						},
						Action: func(ctx *cli.Context) error {
							if deps.EnvKeygen == nil {
								return errors.New("env keygen handler is not configured")
							}
							return deps.EnvKeygen(loadConfig(deps), ctx.String("key"))
						},
					},
					{
						Name:      "encrypt",
						Usage:     "seal a KEY=VALUE file into a bundle",
						ArgsUsage: "INPUT OUTPUT",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "key", Usage: "key file path"},
						},
						Action: func(ctx *cli.Context) error {
							if deps.EnvEncrypt == nil {
								return errors.New("env encrypt handler is not configured")
							}
							if ctx.NArg() != 2 {
								return cli.Exit("env encrypt: expected INPUT and OUTPUT paths", 2)
							}
							return deps.EnvEncrypt(loadConfig(deps), ctx.String("key"), ctx.Args().Get(0), ctx.Args().Get(1))
						},
					},
					{
						Name:      "decrypt",
						Usage:     "print the contents of a bundle",
						ArgsUsage: "INPUT",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "key", Usage: "key file path"},
						},
						Action: func(ctx *cli.Context) error {
							if deps.EnvDecrypt == nil {
								return errors.New("env decrypt handler is not configured")
							}
							if ctx.NArg() != 1 {
								return cli.Exit("env decrypt: expected INPUT path", 2)
							}
							return deps.EnvDecrypt(loadConfig(deps), ctx.String("key"), ctx.Args().Get(0))
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}
