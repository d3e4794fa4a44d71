package call

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRegisterSetOncePerSource(t *testing.T) {
	var r = NewRegister(true)
	r.Set(SourceWire, status.Error(codes.NotFound, "first"))
	r.Set(SourceWire, status.Error(codes.Internal, "second"))

	var final = r.GetFinal()
	require.Equal(t, codes.NotFound, final.Code)
	require.Equal(t, "first", final.Message)
}

func TestRegisterDefaultsClientUnknown(t *testing.T) {
	var r = NewRegister(true)
	require.Equal(t, codes.Unknown, r.GetFinal().Code)
}

func TestRegisterDefaultsServerOK(t *testing.T) {
	var r = NewRegister(false)
	require.Equal(t, codes.OK, r.GetFinal().Code)
}

func TestRegisterPriorityOrdering(t *testing.T) {
	var r = NewRegister(true)
	r.Set(SourceSurface, status.Error(codes.Internal, "surface"))
	r.Set(SourceAPIOverride, status.Error(codes.Canceled, "api"))

	require.Equal(t, codes.Canceled, r.GetFinal().Code)
}

func TestRegisterFirstPassExcludesOK(t *testing.T) {
	var r = NewRegister(true)
	r.Set(SourceAPIOverride, nil)
	r.Set(SourceWire, status.Error(codes.NotFound, "not found"))

	require.Equal(t, codes.NotFound, r.GetFinal().Code)
}
