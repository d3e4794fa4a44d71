package call

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridrpc/call/ops"
	"github.com/gridrpc/call/transport"
)

func TestFilterRecvInitialMetadataStripsCompressionHeaders(t *testing.T) {
	var md = transport.Metadata{
		{Key: "content-encoding", Value: "gzip"},
		{Key: "grpc-encoding", Value: "gzip"},
		{Key: "grpc-accept-encoding", Value: "gzip,deflate"},
		{Key: "x-app-header", Value: "v"},
	}

	var result = FilterRecvInitialMetadata(md, ops.New(nil))
	require.Equal(t, AlgorithmGzip, result.StreamCompression)
	require.Equal(t, AlgorithmGzip, result.MessageCompression)
	require.True(t, result.PeerAccepts.Has(AlgorithmDeflate))
	require.Len(t, result.App, 1)
	require.Equal(t, "x-app-header", result.App[0].Key)
}

func TestFilterRecvTrailingMetadataSynthesizesWireError(t *testing.T) {
	var md = transport.Metadata{
		{Key: "grpc-status", Value: "5"},
		{Key: "grpc-message", Value: "not found"},
	}

	var result = FilterRecvTrailingMetadata(md, ops.New(nil))
	require.Error(t, result.WireError)
	require.Empty(t, result.App)
}

func TestFilterRecvTrailingMetadataOKHasNoError(t *testing.T) {
	var md = transport.Metadata{{Key: "grpc-status", Value: "0"}}

	var result = FilterRecvTrailingMetadata(md, ops.New(nil))
	require.NoError(t, result.WireError)
}
