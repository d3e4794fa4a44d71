package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/gridrpc/call/cq"
	"github.com/gridrpc/call/transport"
)

func TestChildMustBeClientParentMustBeServer(t *testing.T) {
	parentStream, _ := transport.NewPair()
	parent, _ := newTestCall(t, parentStream, false)

	childStream, _ := transport.NewPair()
	_, err := Create(Args{
		Channel:         fakeChannel{},
		Stream:          childStream,
		CompletionQueue: cq.New(),
		IsClient:        false, // must be client to be a valid child
		Parent:          parent,
	})
	require.Error(t, err)
}

// TestParentChildPropagation drives end-to-end scenario 4: when the
// parent's trailing metadata arrives, a child that inherited cancellation
// is cancelled with API_OVERRIDE/CANCELLED.
func TestParentChildPropagation(t *testing.T) {
	parentClientStream, parentServerStream := transport.NewPair()
	parent, _ := newTestCall(t, parentServerStream, false)
	parentClient, _ := newTestCall(t, parentClientStream, true)

	childStream, _ := transport.NewPair()
	child, err := Create(Args{
		Channel:         fakeChannel{},
		Stream:          childStream,
		CompletionQueue: cq.New(),
		IsClient:        true,
		Parent:          parent,
		Propagation:     PropagateDeadline | PropagateCancellation,
	})
	require.NoError(t, err)
	require.True(t, child.cancelInherited)

	var parentDone = make(chan struct{})
	require.Equal(t, CallErrorOK, parent.StartBatchAndExecute([]Op{
		{Kind: OpRecvCloseOnServer},
	}, func(error) { close(parentDone) }))

	// Drive the peer side so the parent's trailing metadata actually
	// arrives (a client's SEND_CLOSE_FROM_CLIENT carries it).
	require.Equal(t, CallErrorOK, parentClient.StartBatch([]Op{
		{Kind: OpSendCloseFromClient},
	}, "close"))

	select {
	case <-parentDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for parent's recv-close completion")
	}

	var final = child.register.GetFinal()
	require.Equal(t, codes.Canceled, final.Code)
}
