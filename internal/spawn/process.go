package spawn

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Spec describes what to run. Immutable once execution begins.
type Spec struct {
	Command string
	Dir     string
	Env     map[string]string
}

// Options selects how the child's stdin is wired. Stdin and PipeStdin
// are mutually exclusive; with neither set the child gets no input.
type Options struct {
	Stdin     io.Reader
	PipeStdin bool
}

// Process is a started child with independently readable output streams.
// The command line runs under a shell so it may use pipes and chaining.
type Process struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Start launches the spec. A launch failure is reported immediately,
// without waiting for any output.
func Start(spec Spec, opts Options) (*Process, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("command is required")
	}
	if opts.Stdin != nil && opts.PipeStdin {
		return nil, errors.New("stdin reader and stdin pipe are mutually exclusive")
	}

	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = BuildEnv(os.Environ(), spec.Env)
	// Own process group so Kill reaches the shell's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &Process{cmd: cmd}

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	} else if opts.PipeStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		p.Stdin = stdin
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	p.Stdout = stdout
	p.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

// Wait blocks until the child exits. Callers must drain Stdout and
// Stderr before Wait per os/exec pipe semantics; the session loop's
// pumps do that.
func (p *Process) Wait() error {
	if p == nil || p.cmd == nil {
		return errors.New("process is not started")
	}
	return p.cmd.Wait()
}

// Kill forcibly terminates the child and its process group.
func (p *Process) Kill() error {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return errors.New("process is not started")
	}
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// ExitCode extracts the exit status from a Wait error. Returns 0 for
// nil, the child's code for a normal non-zero exit, and -1 when no code
// is available (signal death, wait failure).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return -1
}
