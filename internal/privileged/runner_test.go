package privileged

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	require.Zero(t, res.ExitCode)
	require.True(t, res.Success())
	require.Equal(t, "out\n", res.Stdout)
	require.Equal(t, "err\n", res.Stderr)
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
	require.False(t, res.Success())
}

func TestExecRunner_ContextTimeoutKillsCommand(t *testing.T) {
	r := NewExecRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := r.Run(ctx, "sleep", "10")
	require.Error(t, err)
	require.Less(t, time.Since(started), 5*time.Second)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), "/does/not/exist")
	require.Error(t, err)
}

func TestObservedRunner_ReportsDurations(t *testing.T) {
	var observed []time.Duration
	r := NewObservedRunner(NewExecRunner(), func(d time.Duration) {
		observed = append(observed, d)
	})

	res, err := r.Run(context.Background(), "sh", "-c", "exit 0")
	require.NoError(t, err)
	require.True(t, res.Success())

	_, err = r.Run(context.Background(), "/does/not/exist")
	require.Error(t, err)

	require.Len(t, observed, 2, "failed invocations are observed too")
}
