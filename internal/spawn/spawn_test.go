package spawn

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestBuildEnv_Precedence(t *testing.T) {
	base := []string{"PATH=/bin", "DEBIAN_FRONTEND=dialog", "KEEP=1"}
	env := BuildEnv(base, map[string]string{"CI": "false", "EXTRA": "x"})

	got := map[string]string{}
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			t.Fatalf("malformed entry %q", kv)
		}
		got[k] = v
	}
	if got["PATH"] != "/bin" || got["KEEP"] != "1" {
		t.Fatalf("base env lost: %v", got)
	}
	if got["DEBIAN_FRONTEND"] != "noninteractive" {
		t.Fatalf("defaults should override base, got %q", got["DEBIAN_FRONTEND"])
	}
	if got["CI"] != "false" {
		t.Fatalf("overlay should override defaults, got %q", got["CI"])
	}
	if got["EXTRA"] != "x" {
		t.Fatalf("overlay entry missing: %v", got)
	}
	if got["GIT_TERMINAL_PROMPT"] != "0" || got["PIP_NO_INPUT"] != "1" {
		t.Fatalf("non-interactive defaults missing: %v", got)
	}
}

func TestBuildEnv_SkipsEmptyKeys(t *testing.T) {
	env := BuildEnv([]string{"=weird", "OK=1"}, map[string]string{" ": "x"})
	for _, kv := range env {
		if strings.HasPrefix(kv, "=") || strings.HasPrefix(kv, " =") {
			t.Fatalf("empty key leaked: %q", kv)
		}
	}
}

func TestStart_RequiresCommand(t *testing.T) {
	if _, err := Start(Spec{Command: "  "}, Options{}); err == nil {
		t.Fatal("expected error for blank command")
	}
}

func TestStart_RejectsConflictingStdin(t *testing.T) {
	if _, err := Start(Spec{Command: "true"}, Options{Stdin: strings.NewReader(""), PipeStdin: true}); err == nil {
		t.Fatal("expected error for conflicting stdin options")
	}
}

func TestStart_ShellSyntaxAndExitCode(t *testing.T) {
	p, err := Start(Spec{Command: "echo one && exit 7"}, Options{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out, _ := io.ReadAll(p.Stdout)
	_, _ = io.ReadAll(p.Stderr)
	err = p.Wait()
	if code := ExitCode(err); code != 7 {
		t.Fatalf("expected exit 7, got %d (%v)", code, err)
	}
	if strings.TrimSpace(string(out)) != "one" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestStart_StdinReaderIsConsumed(t *testing.T) {
	p, err := Start(Spec{Command: "read line && echo got:$line"}, Options{Stdin: strings.NewReader("hello\n")})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out, _ := io.ReadAll(p.Stdout)
	_, _ = io.ReadAll(p.Stderr)
	if err := p.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "got:hello" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestStart_PipeStdin(t *testing.T) {
	p, err := Start(Spec{Command: "read line && echo echoed:$line"}, Options{PipeStdin: true})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if p.Stdin == nil {
		t.Fatal("expected stdin pipe")
	}
	if _, err := p.Stdin.Write([]byte("ping\n")); err != nil {
		t.Fatalf("stdin write failed: %v", err)
	}
	_ = p.Stdin.Close()
	out, _ := io.ReadAll(p.Stdout)
	_, _ = io.ReadAll(p.Stderr)
	if err := p.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "echoed:ping" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestKill_TerminatesHangingProcess(t *testing.T) {
	p, err := Start(Spec{Command: "sleep 60"}, Options{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, _ = io.ReadAll(p.Stdout)
		_, _ = io.ReadAll(p.Stderr)
		done <- p.Wait()
	}()
	time.Sleep(50 * time.Millisecond)
	if err := p.Kill(); err != nil {
		t.Fatalf("kill failed: %v", err)
	}
	select {
	case err := <-done:
		if code := ExitCode(err); code != -1 {
			t.Fatalf("expected -1 for signal death, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("killed process did not exit")
	}
}

func TestStart_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	p, err := Start(Spec{Command: "pwd", Dir: dir}, Options{})
	if err != nil {
		t.Fatalf("start with dir failed: %v", err)
	}
	out, _ := io.ReadAll(p.Stdout)
	_, _ = io.ReadAll(p.Stderr)
	if err := p.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	// Resolve symlinks (macOS tempdirs) by just checking the suffix.
	got := strings.TrimSpace(string(out))
	if !strings.HasSuffix(got, strings.TrimPrefix(dir, "/private")) && got != dir {
		t.Fatalf("expected pwd %q, got %q", dir, got)
	}
}

func TestExitCode_SignalDeath(t *testing.T) {
	p, err := Start(Spec{Command: "kill -TERM $$; sleep 5"}, Options{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, _ = io.ReadAll(p.Stdout)
	_, _ = io.ReadAll(p.Stderr)
	err = p.Wait()
	if err == nil {
		t.Fatal("expected wait error for signalled process")
	}
	if code := ExitCode(err); code != -1 && code != 143 {
		t.Fatalf("unexpected exit code %d", code)
	}
}
