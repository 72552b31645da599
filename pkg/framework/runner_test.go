package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerWaitIgnoresCancel(t *testing.T) {
	r := NewRunner()
	for i := 0; i < 3; i++ {
		r.Go(RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
	}
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestRunnerFailureStopsOthers(t *testing.T) {
	errBus := errors.New("bus failure")
	r := NewRunner()
	r.Go(
		NamedRun("watchdog", RunFunc(func(context.Context) error { return errBus })),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	err := r.Wait()
	require.ErrorIs(t, err, errBus)
	require.Equal(t, "watchdog: bus failure", err.Error())
	require.Error(t, r.Context.Err())
}

func TestRunnerNames(t *testing.T) {
	run := RunFunc(func(context.Context) error { return nil })
	require.Equal(t, "edges", RunnableName(NamedRun("edges", run), "0"))
	require.Equal(t, "0", RunnableName(run, "0"))
}

func TestRunWithContextCancel(t *testing.T) {
	require.Equal(t, errLineStuck, RunWithContextCancel(context.Background(), nil, func() error {
		return errLineStuck
	}))

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var canceled bool
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		close(release)
	}, func() error {
		<-release
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, canceled)
}
