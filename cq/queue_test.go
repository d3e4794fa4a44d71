package cq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushThenNext(t *testing.T) {
	var q = New()
	q.Push("tag-1", nil)

	ev, err := q.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tag-1", ev.Tag)
	require.NoError(t, ev.Err)
}

func TestNextBlocksUntilPush(t *testing.T) {
	var q = New()
	var done = make(chan Event, 1)

	go func() {
		ev, err := q.Next(context.Background())
		require.NoError(t, err)
		done <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push("late", nil)

	select {
	case ev := <-done:
		require.Equal(t, "late", ev.Tag)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Next to unblock")
	}
}

func TestNextRespectsContextCancellation(t *testing.T) {
	var q = New()
	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	_, err := q.Next(ctx)
	require.Error(t, err)
}

func TestShutdownUnblocksWaitersAndRejectsFurtherPush(t *testing.T) {
	var q = New()
	var done = make(chan error, 1)

	go func() {
		_, err := q.Next(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Shutdown()

	select {
	case err := <-done:
		require.True(t, ErrShutdown(err))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for shutdown to unblock Next")
	}

	q.Push("dropped", nil)
	_, err := q.Next(context.Background())
	require.True(t, ErrShutdown(err))
}
