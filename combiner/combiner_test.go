package combiner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecuteRunsSynchronouslyWhenIdle(t *testing.T) {
	var c Combiner
	var ran bool
	c.Execute(func() { ran = true })
	require.True(t, ran)
}

func TestExecuteQueuesWhileRunning(t *testing.T) {
	var c Combiner
	var order []int

	c.Execute(func() {
		order = append(order, 1)
		c.Execute(func() { order = append(order, 2) })
		c.Execute(func() { order = append(order, 3) })
	})

	require.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelLanePreemptsQueuedNormalWork(t *testing.T) {
	var c Combiner
	var order []string

	c.Execute(func() {
		order = append(order, "normal-1")
		c.Execute(func() { order = append(order, "normal-2") })
		c.ExecuteCancel(func() { order = append(order, "cancel") })
	})

	require.Equal(t, []string{"normal-1", "cancel", "normal-2"}, order)
}
