package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridrpc/call/transport"
)

// TestEmptyBatchPostsExactlyOneOKCompletion drives the §8 boundary behavior:
// an empty batch posts exactly one OK completion, synchronously.
func TestEmptyBatchPostsExactlyOneOKCompletion(t *testing.T) {
	stream, _ := transport.NewPair()
	c, queue := newTestCall(t, stream, true)

	require.Equal(t, CallErrorOK, c.StartBatch(nil, "empty-tag"))

	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := queue.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "empty-tag", ev.Tag)
	require.NoError(t, ev.Err)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = queue.Next(ctx2)
	require.Error(t, err, "empty batch must post exactly one completion")
}

// blockingStream is a transport.Stream whose SendMessage never invokes
// onDone, so a SEND_MESSAGE op's batch never completes — used to pin a
// batch in flight deterministically rather than racing a real transport's
// completion against a second StartBatch call.
type blockingStream struct{}

func (blockingStream) SendMetadata(transport.Metadata, transport.Flags, func(error)) {}
func (blockingStream) SendMessage([]byte, transport.Flags, func(error))              {}
func (blockingStream) RecvInitialMetadata(func(transport.Metadata, error))           {}
func (blockingStream) RecvMessage(func(transport.MessageStream, error))              {}
func (blockingStream) RecvTrailingMetadata(func(transport.Metadata, error))          {}
func (blockingStream) Cancel(error)                                                  {}

var _ transport.Stream = blockingStream{}

// TestOverlappingSendMessageYieldsTooManyOperations drives the §8 boundary
// behavior: two batches both carrying SEND_MESSAGE, without the first
// having completed, fail the second with TOO_MANY_OPERATIONS and leave the
// Call's state unchanged.
func TestOverlappingSendMessageYieldsTooManyOperations(t *testing.T) {
	c, _ := newTestCall(t, blockingStream{}, true)

	require.Equal(t, CallErrorOK, c.StartBatch([]Op{
		{Kind: OpSendMessage, SendMessage: []byte("first")},
	}, "first-tag"))

	var code = c.StartBatch([]Op{
		{Kind: OpSendMessage, SendMessage: []byte("second")},
	}, "second-tag")
	require.Equal(t, CallErrorTooManyOperations, code)

	c.mu.Lock()
	var stillOccupiedByFirst = c.occupied[OpSendMessage.slot()] != nil && c.sendMessageDone
	c.mu.Unlock()
	require.True(t, stillOccupiedByFirst, "the first batch's occupancy must be unchanged by the rejected second batch")
}
