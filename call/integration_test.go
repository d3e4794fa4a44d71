package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/gridrpc/call/cq"
	"github.com/gridrpc/call/transport"
)

type fakeChannel struct{}

func (fakeChannel) DefaultCompressionLevel() Level { return LevelNone }
func (fakeChannel) Peer() string                   { return "fake-peer" }

func newTestCall(t *testing.T, stream transport.Stream, isClient bool) (*Call, *cq.Queue) {
	t.Helper()
	var queue = cq.New()
	c, err := Create(Args{
		Channel:         fakeChannel{},
		Stream:          stream,
		CompletionQueue: queue,
		IsClient:        isClient,
	})
	require.NoError(t, err)
	return c, queue
}

// TestHappyClientUnary drives end-to-end scenario 1 from the testable
// properties: a client unary call against a server that reads the client's
// message, replies with headers and a message of its own, and closes with OK.
func TestHappyClientUnary(t *testing.T) {
	clientStream, serverStream := transport.NewPair()

	client, clientCQ := newTestCall(t, clientStream, true)
	server, _ := newTestCall(t, serverStream, false)

	var serverInitialMD transport.Metadata
	var serverMessage []byte
	require.Equal(t, CallErrorOK, server.StartBatchAndExecute([]Op{
		{Kind: OpRecvInitialMetadata, RecvMetadataOut: &serverInitialMD},
	}, func(error) {}))
	require.Equal(t, CallErrorOK, server.StartBatchAndExecute([]Op{
		{Kind: OpRecvMessage, RecvMessageOut: &serverMessage},
	}, func(error) {}))

	var clientInitialMD transport.Metadata
	var clientMessage []byte
	var clientFinal Final
	require.Equal(t, CallErrorOK, client.StartBatch([]Op{
		{Kind: OpSendInitialMetadata, SendMetadata: transport.Metadata{{Key: ":path", Value: "/svc/M"}}},
		{Kind: OpSendMessage, SendMessage: []byte("hi")},
		{Kind: OpSendCloseFromClient},
		{Kind: OpRecvInitialMetadata, RecvMetadataOut: &clientInitialMD},
		{Kind: OpRecvMessage, RecvMessageOut: &clientMessage},
		{Kind: OpRecvStatusOnClient, RecvStatusOut: &clientFinal},
	}, "client-tag"))

	require.Equal(t, CallErrorOK, server.StartBatchAndExecute([]Op{
		{Kind: OpSendInitialMetadata},
		{Kind: OpSendMessage, SendMessage: []byte("ok")},
		{Kind: OpSendStatusFromServer, StatusCode: uint32(codes.OK)},
	}, func(error) {}))

	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := clientCQ.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "client-tag", ev.Tag)
	require.NoError(t, ev.Err)
	require.Equal(t, codes.OK, clientFinal.Code)
	require.Equal(t, []byte("ok"), clientMessage)
	require.Equal(t, []byte("hi"), serverMessage)
}

// TestWireError drives end-to-end scenario 2: the server reports a non-OK
// status and the client observes it as its final status.
func TestWireError(t *testing.T) {
	clientStream, serverStream := transport.NewPair()

	client, clientCQ := newTestCall(t, clientStream, true)
	server, _ := newTestCall(t, serverStream, false)

	require.Equal(t, CallErrorOK, server.StartBatchAndExecute([]Op{
		{Kind: OpRecvInitialMetadata},
	}, func(error) {}))

	var clientFinal Final
	require.Equal(t, CallErrorOK, client.StartBatch([]Op{
		{Kind: OpSendInitialMetadata, SendMetadata: transport.Metadata{{Key: ":path", Value: "/svc/M"}}},
		{Kind: OpSendCloseFromClient},
		{Kind: OpRecvInitialMetadata},
		{Kind: OpRecvStatusOnClient, RecvStatusOut: &clientFinal},
	}, "client-tag"))

	require.Equal(t, CallErrorOK, server.StartBatchAndExecute([]Op{
		{Kind: OpSendInitialMetadata},
		{Kind: OpSendStatusFromServer, StatusCode: uint32(codes.NotFound), StatusDetails: "not found", WantDetails: true},
	}, func(error) {}))

	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := clientCQ.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, codes.NotFound, clientFinal.Code)
	require.Equal(t, "not found", clientFinal.Message)
}
