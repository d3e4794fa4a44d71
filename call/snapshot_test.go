package call

import (
	"strconv"
	"testing"

	"github.com/bradleyjkemp/cupaloy"
)

// TestErrorCodeTableSnapshot pins the §6 error code -> name table, matching
// the reference codebase's heavy use of cupaloy for protocol/codec tests.
func TestErrorCodeTableSnapshot(t *testing.T) {
	var table = make(map[string]string, len(names))
	for code, name := range names {
		table[strconv.Itoa(int(code))] = name
	}
	cupaloy.SnapshotT(t, table)
}

// TestAcceptEncodingFormatSnapshot pins the canonical comma-separated
// rendering of a representative accept-set.
func TestAcceptEncodingFormatSnapshot(t *testing.T) {
	var set, _ = ParseAcceptEncoding("gzip, deflate, snappy")
	cupaloy.SnapshotT(t, set.Format())
}
