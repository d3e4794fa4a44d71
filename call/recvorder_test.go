package call

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecvOrderInitialFirst(t *testing.T) {
	var r recvState
	stashed, ok := r.OnInitialMetadataReady()
	require.True(t, ok)
	require.Nil(t, stashed)

	var bc = &batchControl{}
	require.True(t, r.OnMessageReady(bc))
}

// TestRecvOrderMessageFirst drives end-to-end scenario 6: message-ready
// fires before initial-metadata-ready, stashing its batch control; the
// subsequent initial-md-ready observes the stash and resumes it.
func TestRecvOrderMessageFirst(t *testing.T) {
	var r recvState
	var bc = &batchControl{}

	require.False(t, r.OnMessageReady(bc))

	stashed, ok := r.OnInitialMetadataReady()
	require.True(t, ok)
	require.Same(t, bc, stashed)
}

func TestRecvOrderInitialMustFireAtMostOnce(t *testing.T) {
	var r recvState
	_, ok := r.OnInitialMetadataReady()
	require.True(t, ok)

	_, ok = r.OnInitialMetadataReady()
	require.False(t, ok)
}
