package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"headlessrun/internal/config"
)

func TestBuildApp_RunCommand(t *testing.T) {
	var got RunOptions
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunCommand: func(_ context.Context, _ config.Config, opts RunOptions) (int, error) {
			got = opts
			return 0, nil
		},
	})
	args := []string{
		"headlessrun", "run",
		"--dir", "/tmp/project",
		"--timeout", "90s",
		"--env", "FOO=bar",
		"--no-history",
		"--events-addr", "127.0.0.1:9000",
		"--", "npm", "install",
	}
	if err := app.RunContext(context.Background(), args); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got.Command != "npm install" {
		t.Fatalf("unexpected command: %q", got.Command)
	}
	if got.Dir != "/tmp/project" {
		t.Fatalf("unexpected dir: %q", got.Dir)
	}
	if got.Timeout != 90*time.Second {
		t.Fatalf("unexpected timeout: %v", got.Timeout)
	}
	if len(got.Env) != 1 || got.Env[0] != "FOO=bar" {
		t.Fatalf("unexpected env: %#v", got.Env)
	}
	if !got.NoHistory {
		t.Fatal("expected no-history to be set")
	}
	if got.EventsAddr != "127.0.0.1:9000" {
		t.Fatalf("unexpected events addr: %q", got.EventsAddr)
	}
}

func TestBuildApp_RunPropagatesExitCode(t *testing.T) {
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunCommand: func(context.Context, config.Config, RunOptions) (int, error) {
			return 3, errors.New("all strategies exhausted")
		},
	})
	// Default handler would os.Exit; keep the error observable instead.
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(context.Background(), []string{"headlessrun", "run", "--", "false"})
	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit coder, got %v", err)
	}
	if exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %d", exitErr.ExitCode())
	}
}

func TestBuildApp_RunRequiresCommand(t *testing.T) {
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunCommand: func(context.Context, config.Config, RunOptions) (int, error) {
			t.Fatal("handler should not be called without a command")
			return 0, nil
		},
	})
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(context.Background(), []string{"headlessrun", "run"})
	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit coder, got %v", err)
	}
	if exitErr.ExitCode() != 2 {
		t.Fatalf("expected exit code 2, got %d", exitErr.ExitCode())
	}
}

func TestBuildApp_HistoryCommand(t *testing.T) {
	gotLimit := 0
	gotRun := ""
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		ShowHistory: func(_ context.Context, _ config.Config, limit int, runID string) error {
			gotLimit = limit
			gotRun = runID
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"headlessrun", "history", "--limit", "5", "--run", "abc"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if gotLimit != 5 || gotRun != "abc" {
		t.Fatalf("unexpected history args limit=%d run=%q", gotLimit, gotRun)
	}
}

func TestBuildApp_MigrateUpCommand(t *testing.T) {
	migrateCalled := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunMigrateUp: func(context.Context, config.Config) error {
			migrateCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"headlessrun", "migrate", "up"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if migrateCalled != 1 {
		t.Fatalf("expected migrate called once, got %d", migrateCalled)
	}
}

func TestBuildApp_EnvSubcommands(t *testing.T) {
	keygenCalled := 0
	encryptIn, encryptOut := "", ""
	decryptIn := ""
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		EnvKeygen: func(_ config.Config, keyPath string) error {
			keygenCalled++
			return nil
		},
		EnvEncrypt: func(_ config.Config, _, inPath, outPath string) error {
			encryptIn, encryptOut = inPath, outPath
			return nil
		},
		EnvDecrypt: func(_ config.Config, _, inPath string) error {
			decryptIn = inPath
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"headlessrun", "env", "keygen"}); err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	if keygenCalled != 1 {
		t.Fatalf("expected keygen called once, got %d", keygenCalled)
	}
	if err := app.RunContext(context.Background(), []string{"headlessrun", "env", "encrypt", "in.env", "out.envc"}); err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if encryptIn != "in.env" || encryptOut != "out.envc" {
		t.Fatalf("unexpected encrypt args in=%q out=%q", encryptIn, encryptOut)
	}
	if err := app.RunContext(context.Background(), []string{"headlessrun", "env", "decrypt", "out.envc"}); err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decryptIn != "out.envc" {
		t.Fatalf("unexpected decrypt arg %q", decryptIn)
	}
}
