package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/examples"
)

// Result captures one compiler or example-binary invocation.
type Result struct {
	ExitCode int
	Output   []byte // combined stdout+stderr
	Duration time.Duration
	TimedOut bool
}

// OK reports whether the invocation exited zero.
func (r Result) OK() bool { return r.ExitCode == 0 && !r.TimedOut }

// Compile compiles the example and returns the binary path with the result.
// A non-zero compiler exit is reported through Result, not error; error means
// the compiler could not be invoked at all.
func (t *Toolchain) Compile(ctx context.Context, ex examples.Example) (string, Result, error) {
	src, err := t.sourcePath(ex)
	if err != nil {
		return "", Result{}, err
	}
	bin := t.binaryPath(ex)

	res, err := t.invoke(ctx, t.Compiler, t.compileArgs(src, bin), 0)
	if err != nil {
		return "", res, err
	}
	return bin, res, nil
}

// Run executes a compiled example binary under the run timeout.
func (t *Toolchain) Run(ctx context.Context, binPath string) (Result, error) {
	return t.invoke(ctx, binPath, nil, t.RunTimeout)
}

// invoke runs a command, capturing combined output and the exit code.
func (t *Toolchain) invoke(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...) // #nosec G204 -- command comes from validated config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Kill the whole process group on cancellation. The default cancel only
	// signals the direct child; a forked grandchild would keep the output pipe
	// open and block Wait past the deadline.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: out.Bytes(), Duration: time.Since(start)}

	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		// The caller's context was canceled (shutdown), not the run timeout.
		return res, ctx.Err()
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	// Startup failure: binary missing, not executable, etc.
	return res, fmt.Errorf("invoke %s: %w", name, err)
}
