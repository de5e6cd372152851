// Package process implements forge's process supervisor (spec §4.1): it
// spawns external toolchain commands, captures their output, enforces
// timeouts, and kills the whole process tree on abort.
//
// Grounded on distr1-distri's internal/build, which spawns every compiler
// and linker invocation via exec.CommandContext with a dedicated process
// group (syscall.SysProcAttr{Setpgid: true}) so a timeout or cancellation
// can kill children too; this package generalizes that pattern into a
// standalone, reusable supervisor.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Result is the outcome of one supervised process invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

const (
	// ExitTimeout is reported when the process was killed for exceeding its
	// deadline.
	ExitTimeout = -1
	// ExitCancelled is reported when the process was killed due to external
	// cancellation.
	ExitCancelled = -2
)

// Supervisor runs external commands with timeout and cancellation support.
type Supervisor struct{}

// New returns a ready-to-use Supervisor.
func New() *Supervisor { return &Supervisor{} }

// Run executes command with args in workDir with the given environment
// (nil means inherit), enforcing timeout. ctx cancellation is honoured
// independently of timeout and reported with ExitCancelled.
func (s *Supervisor) Run(ctx context.Context, command string, args []string, workDir string, env []string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = workDir
	if env != nil {
		cmd.Env = env
	}
	cmd.Stdin = nil // never inherit the parent's stdin

	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Stderr: err.Error(), Duration: time.Since(start)}, err
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		dur := time.Since(start)
		res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Duration: dur}
		if err == nil {
			res.ExitCode = 0
			return res, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, err
		}
		res.ExitCode = -1
		return res, err

	case <-runCtx.Done():
		killTree(cmd)
		<-waitErr // reap
		dur := time.Since(start)
		if timeout > 0 && ctx.Err() == nil {
			return Result{
				ExitCode: ExitTimeout,
				Stdout:   stdout.String(),
				Stderr:   stderr.String() + "\n[process] timed out after " + timeout.String(),
				Duration: dur,
			}, context.DeadlineExceeded
		}
		return Result{
			ExitCode: ExitCancelled,
			Stdout:   stdout.String(),
			Stderr:   stderr.String() + "\n[process] cancelled",
			Duration: dur,
		}, context.Canceled
	}
}

// LookPath reports whether command is resolvable on PATH. It is OS-aware in
// spirit (the spec names "where" on Windows, "which" elsewhere); in Go,
// exec.LookPath already abstracts both behind one cross-platform call.
func LookPath(command string) (path string, ok bool) {
	p, err := exec.LookPath(command)
	if err != nil {
		return "", false
	}
	return p, true
}

// versionFlags are tried, in order, to make a discovered tool report its
// version.
var versionFlags = []string{"--version", "-v", "-V", "version"}

// Probe tries each of candidates in turn, returning the first one found on
// PATH together with whatever it reports for one of the conventional
// version flags.
func (s *Supervisor) Probe(ctx context.Context, candidates []string, timeout time.Duration) (found string, version string, ok bool) {
	for _, name := range candidates {
		path, exists := LookPath(name)
		if !exists {
			continue
		}
		for _, flag := range versionFlags {
			res, err := s.Run(ctx, path, []string{flag}, "", nil, timeout)
			if err == nil || res.ExitCode == 0 {
				out := strings.TrimSpace(res.Stdout)
				if out == "" {
					out = strings.TrimSpace(res.Stderr)
				}
				return name, firstLine(out), true
			}
		}
		// Tool exists but would not report a version; still usable.
		return name, "", true
	}
	return "", "", false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func setProcessGroup(cmd *exec.Cmd) {
	if runtime.GOOS == "windows" {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree kills the process and, on POSIX, its whole process group.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
}
