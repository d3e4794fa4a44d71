package call

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/grpc/codes"
)

// statusCodeCache memoizes grpc-status decodes by raw header value beyond
// the fast paths for the three most common codes (§4.2, §8 round-trip law:
// "two distinct header elements with the same numeric value decode to the
// same code; the second decode does not re-parse").
var statusCodeCache, _ = lru.New[string, codes.Code](1024)

// DecodeGRPCStatus parses a grpc-status header value into a code. 0/1/2 are
// handled without touching the cache or the integer parser at all.
func DecodeGRPCStatus(raw string) (codes.Code, bool) {
	switch raw {
	case "0":
		return codes.OK, true
	case "1":
		return codes.Canceled, true
	case "2":
		return codes.Unknown, true
	}

	if c, ok := statusCodeCache.Get(raw); ok {
		return c, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return codes.Unknown, false
	}
	var c = codes.Code(n)
	statusCodeCache.Add(raw, c)
	return c, true
}
