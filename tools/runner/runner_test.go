package runner

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/omop2owl/errs"
)

func TestCommandString(t *testing.T) {
	cmd := Command{Name: "robot", Args: []string{"template", "--template", "x.tsv"}}
	assert.Equal(t, "robot template --template x.tsv", cmd.String())
	assert.Equal(t, "docker", Command{Name: "docker"}.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ExitError{Command: Command{Name: "robot"}, Err: cause, Stderr: "  boom\n"}

	assert.Equal(t, "robot failed: exit status 1: boom", err.Error())
	assert.True(t, errors.Is(err, errs.ErrToolFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, errs.ClassTool, errs.Classify(err))

	quiet := &ExitError{Command: Command{Name: "docker"}, Err: cause}
	assert.Equal(t, "docker failed: exit status 1", quiet.Error())
}

func TestExecRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("captures output and env", func(t *testing.T) {
		res, err := Exec{}.Run(context.Background(), Command{
			Name: "sh",
			Args: []string{"-c", "echo $OMOP2OWL_TEST; echo warn >&2"},
			Env:  []string{"OMOP2OWL_TEST=hello"},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello\n", res.Stdout)
		assert.Equal(t, "warn\n", res.Stderr)
	})

	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		res, err := Exec{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "pwd"}, Dir: dir})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, filepath.Base(dir))
	})

	t.Run("non-zero exit carries stderr", func(t *testing.T) {
		_, err := Exec{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo bad input >&2; exit 3"}})
		require.Error(t, err)

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, "bad input\n", exitErr.Stderr)
		assert.True(t, errors.Is(err, errs.ErrToolFailed))
	})

	t.Run("missing program", func(t *testing.T) {
		_, err := Exec{}.Run(context.Background(), Command{Name: "omop2owl-no-such-program"})
		assert.True(t, errors.Is(err, errs.ErrToolFailed))
	})
}

func TestRecorder(t *testing.T) {
	calls := 0
	fake := Func(func(ctx context.Context, cmd Command) (Result, error) {
		calls++
		if cmd.Name == "fail" {
			return Result{Stderr: strings.Repeat("x", MaxRecordedOutputLength+10)}, &ExitError{Command: cmd, Err: errors.New("exit status 1")}
		}
		return Result{Stdout: "ok"}, nil
	})

	rec := NewRecorder(fake, nil)

	res, err := rec.Run(context.Background(), Command{Name: "robot"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)

	_, err = rec.Run(context.Background(), Command{Name: "fail"})
	require.Error(t, err)

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "success", records[0].Status)
	assert.Equal(t, "error", records[1].Status)
	assert.NotEmpty(t, records[1].Error)
	assert.True(t, strings.HasSuffix(records[1].Stderr, "...[truncated]"))
}
