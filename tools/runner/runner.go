// Package runner runs external programs such as ROBOT and docker.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/c360studio/omop2owl/errs"
)

// Command describes one program invocation.
type Command struct {
	// Name is the program to run, resolved via PATH.
	Name string

	// Args are the program arguments.
	Args []string

	// Env holds extra KEY=VALUE entries added to the current environment.
	Env []string

	// Dir is the working directory; empty means the current directory.
	Dir string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured output of a finished program.
type Result struct {
	Stdout string
	Stderr string
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, cmd Command) (Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// ExitError reports a program that could not be started or exited non-zero.
type ExitError struct {
	Command Command
	Err     error
	Stderr  string
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s failed: %v", e.Command.Name, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Command.Name, e.Err, stderr)
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Is matches errs.ErrToolFailed.
func (e *ExitError) Is(target error) bool {
	return target == errs.ErrToolFailed
}

// Exec runs commands with os/exec.
type Exec struct{}

// Run starts the command and waits for it, capturing stdout and stderr.
func (Exec) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return res, &ExitError{Command: c, Err: err, Stderr: res.Stderr}
	}
	return res, nil
}
