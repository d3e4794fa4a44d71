package call

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AcceptSet is a bitset of algorithms a peer has declared acceptable via
// grpc-accept-encoding / accept-encoding. "none" (identity) is always a
// member regardless of what was parsed, since every peer can accept
// uncompressed bytes.
type AcceptSet uint32

const bitNone = AcceptSet(1) << 0

var bitOf = map[Algorithm]AcceptSet{
	AlgorithmNone:    bitNone,
	AlgorithmGzip:    AcceptSet(1) << 1,
	AlgorithmDeflate: AcceptSet(1) << 2,
	AlgorithmSnappy:  AcceptSet(1) << 3,
}

// Has reports whether alg is a member of the set.
func (a AcceptSet) Has(alg Algorithm) bool {
	var bit, ok = bitOf[alg]
	if !ok {
		return false
	}
	return a&bit != 0
}

// Format renders the set back to its comma-separated wire form, in a fixed
// canonical order, for the accept-encoding round-trip law (§8).
func (a AcceptSet) Format() string {
	var names []string
	for _, alg := range []Algorithm{AlgorithmNone, AlgorithmDeflate, AlgorithmGzip, AlgorithmSnappy} {
		if a.Has(alg) {
			names = append(names, string(alg))
		}
	}
	return strings.Join(names, ",")
}

// acceptCache memoizes ParseAcceptEncoding results keyed by the raw header
// value, per §4.2 ("memoized on the header value ... to avoid re-parsing
// identical headers") — the reference codebase's network/frontend.go uses
// the same hashicorp/golang-lru cache shape for its connection-routing
// lookups.
var acceptCache, _ = lru.New[string, AcceptSet](4096)

// ParseAcceptEncoding parses a comma-separated accept-encoding value into a
// bitset, tolerating surrounding whitespace around each entry and silently
// dropping (but logging, at the call site) unrecognized tokens. "none" /
// "identity" is always implicitly present in the result.
func ParseAcceptEncoding(raw string) (AcceptSet, []string) {
	if cached, ok := acceptCache.Get(raw); ok {
		return cached, nil
	}

	var set = bitNone
	var unknown []string
	for _, tok := range strings.Split(raw, ",") {
		var alg = Algorithm(strings.TrimSpace(tok))
		if alg == "" {
			continue
		}
		if bit, ok := bitOf[alg]; ok {
			set |= bit
		} else {
			unknown = append(unknown, string(alg))
		}
	}

	acceptCache.Add(raw, set)
	return set, unknown
}
