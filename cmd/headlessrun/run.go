package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"headlessrun/internal/command"
	"headlessrun/internal/config"
	"headlessrun/internal/db"
	"headlessrun/internal/envcrypt"
	"headlessrun/internal/escalate"
	"headlessrun/internal/eventfeed"
	"headlessrun/internal/lifecycle"
	"headlessrun/internal/logging"
	"headlessrun/internal/promptdetect"
	"headlessrun/internal/runhistory"
	"headlessrun/internal/session"
	"headlessrun/internal/spawn"
)

func newRunLogger(cfg config.Config) *slog.Logger {
	return logging.NewLogger(logging.Options{Level: cfg.LogLevel, Writer: os.Stderr, Component: "headlessrun"})
}

type multiSink []escalate.Sink

func (m multiSink) AttemptStarted(strategy escalate.Strategy) {
	for _, s := range m {
		s.AttemptStarted(strategy)
	}
}

func (m multiSink) AttemptFinished(a escalate.Attempt) {
	for _, s := range m {
		s.AttemptFinished(a)
	}
}

func (m multiSink) PromptAnswered(strategy escalate.Strategy, tag, excerpt string) {
	for _, s := range m {
		s.PromptAnswered(strategy, tag, excerpt)
	}
}

func runCommand(ctx context.Context, cfg config.Config, opts command.RunOptions) (int, error) {
	logger := newRunLogger(cfg)

	overlayEnv, err := collectEnv(cfg, opts)
	if err != nil {
		return 0, err
	}

	ov, err := promptdetect.LoadOrInit(cfg.PatternsPath)
	if err != nil {
		return 0, fmt.Errorf("load patterns: %w", err)
	}
	table, err := ov.BuildTable()
	if err != nil {
		return 0, fmt.Errorf("build rule table: %w", err)
	}

	mgr := lifecycle.NewManager()
	runID := uuid.NewString()
	sinks := make(multiSink, 0, 2)
	exitCode := 1

	if !opts.NoHistory {
		gdb, err := db.Open(cfg.HistoryDBPath)
		if err != nil {
			logger.Warn("history db unavailable, run will not be recorded", "path", cfg.HistoryDBPath, "err", err)
		} else {
			store, err := runhistory.NewStore(gdb)
			if err != nil {
				return 0, err
			}
			if id, err := store.BeginRun(opts.Command, opts.Dir); err != nil {
				logger.Warn("failed to record run start", "err", err)
			} else {
				runID = id
				sinks = append(sinks, store.NewRecorder(runID, logger))
				mgr.AddShutdown("finalize-run", func(context.Context) error {
					return store.CompleteRun(runID, exitCode, exitCode == 0)
				})
			}
			// Registered after finalize-run; shutdown hooks run in order.
			mgr.AddShutdown("close-history-db", func(context.Context) error {
				return db.Close(gdb)
			})
		}
	}

	eventsAddr := strings.TrimSpace(opts.EventsAddr)
	if eventsAddr == "" {
		eventsAddr = strings.TrimSpace(cfg.EventsAddr)
	}
	if eventsAddr != "" {
		srv := eventfeed.NewServer(eventfeed.NewHub())
		sinks = append(sinks, eventfeed.NewBroadcaster(srv.Hub(), runID))
		mgr.AddRun("event-feed", func(runCtx context.Context) error {
			logger.Info("serving event feed", "addr", eventsAddr)
			return srv.ListenAndServe(runCtx, eventsAddr)
		})
	}

	deadline := opts.Timeout
	if deadline <= 0 {
		deadline = cfg.AttemptTimeout
	}

	ctrl := &escalate.Controller{
		Spec: spawn.Spec{
			Command: opts.Command,
			Dir:     opts.Dir,
			// spawn.Start merges the process env and the non-interactive
			// defaults; only the overlay belongs here.
			Env: overlayEnv,
		},
		Table:     table,
		Timing:    session.Timing{Settle: cfg.SettleDelay, Keystroke: cfg.KeystrokeDelay, Cooldown: cfg.Cooldown},
		BufferCap: cfg.BufferCap,
		Deadline:  deadline,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Logger:    logger,
	}
	if len(sinks) > 0 {
		ctrl.Sink = sinks
	}

	mgr.SetPrimary("escalation-chain", func(runCtx context.Context) error {
		code, _, err := ctrl.Run(runCtx)
		exitCode = code
		if err != nil {
			// Exhaustion is reported through the exit code; only context
			// errors abort the lifecycle.
			if ctxErr := runCtx.Err(); ctxErr != nil {
				return ctxErr
			}
		}
		return nil
	})

	if err := mgr.StartAndWait(ctx); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

// collectEnv merges the encrypted bundle (if any) with --env overrides,
// overrides winning.
func collectEnv(cfg config.Config, opts command.RunOptions) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(opts.EnvFile) != "" {
		key, err := envcrypt.LoadKey(envKeyPath(cfg, opts.KeyFile))
		if err != nil {
			return nil, fmt.Errorf("load env key: %w", err)
		}
		blob, err := os.ReadFile(opts.EnvFile)
		if err != nil {
			return nil, err
		}
		bundle, err := envcrypt.DecryptEnv(string(blob), key)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", opts.EnvFile, err)
		}
		for k, v := range bundle {
			out[k] = v
		}
	}
	for _, kv := range opts.Env {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --env value: %q", kv)
		}
		out[name] = value
	}
	return out, nil
}

func envKeyPath(cfg config.Config, flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return filepath.Join(cfg.DataDir, "env.key")
}

func showHistory(_ context.Context, cfg config.Config, limit int, runID string) error {
	gdb, err := db.Open(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()
	store, err := runhistory.NewStore(gdb)
	if err != nil {
		return err
	}

	if strings.TrimSpace(runID) != "" {
		prompts, err := store.PromptsForRun(runID)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			fmt.Println("no prompts recorded for this run")
			return nil
		}
		for _, p := range prompts {
			fmt.Printf("%s  %-24s %-16s %q\n", time.Unix(p.CreatedAt, 0).UTC().Format(time.RFC3339), p.Strategy, p.RuleTag, p.BufferTail)
		}
		return nil
	}

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-9s exit=%d  %s\n", r.RunID, r.StartedAt.Format(time.RFC3339), r.Status, r.ExitCode, r.Command)
		for _, a := range r.Attempts {
			line := fmt.Sprintf("    %-26s exit=%d", a.Strategy, a.ExitCode)
			if a.TimedOut {
				line += "  timed-out"
			} else if a.ErrorKind != "" {
				line += "  " + a.ErrorKind
			}
			fmt.Println(line)
		}
	}
	return nil
}

func showPatterns(cfg config.Config) error {
	ov, err := promptdetect.LoadOrInit(cfg.PatternsPath)
	if err != nil {
		return err
	}
	table, err := ov.BuildTable()
	if err != nil {
		return err
	}
	for i, rule := range table.Rules() {
		paced := ""
		if rule.Paced {
			paced = "  paced"
		}
		fmt.Printf("%2d  %-16s %-60s -> %q%s\n", i+1, rule.Tag, rule.Pattern.String(), string(rule.Response), paced)
	}
	return nil
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	gdb, err := db.Open(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	return db.Close(gdb)
}

func envKeygen(cfg config.Config, keyPath string) error {
	path := envKeyPath(cfg, keyPath)
	if err := envcrypt.GenerateKey(path); err != nil {
		return err
	}
	fmt.Printf("key written to %s\n", path)
	return nil
}

func envEncrypt(cfg config.Config, keyPath, inPath, outPath string) error {
	key, err := envcrypt.LoadKey(envKeyPath(cfg, keyPath))
	if err != nil {
		return fmt.Errorf("load env key (run `headlessrun env keygen` first): %w", err)
	}
	plain, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	bundle, err := envcrypt.Parse(string(plain))
	if err != nil {
		return err
	}
	enc, err := envcrypt.EncryptEnv(bundle, key)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(enc+"\n"), 0o600)
}

func envDecrypt(cfg config.Config, keyPath, inPath string) error {
	key, err := envcrypt.LoadKey(envKeyPath(cfg, keyPath))
	if err != nil {
		return fmt.Errorf("load env key: %w", err)
	}
	blob, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	bundle, err := envcrypt.DecryptEnv(string(blob), key)
	if err != nil {
		return err
	}
	fmt.Print(envcrypt.Format(bundle))
	return nil
}
