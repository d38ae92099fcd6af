package engine

// ChainRingSize is the default bound on the call chain's memory, matching
// the source's 64-entry rolling buffer (spec §4.4.5) while the chain
// itself is an ordinary value-typed slice threaded through recursive
// calls rather than a package-level static buffer (SPEC_FULL.md §9
// design note). An Engine overrides this per instance from
// ptconfig.Config.ChainRingSize (see engine.go's chainCap); the constant
// remains the fallback for callers that build a Chain directly, such as
// this package's own tests.
const ChainRingSize = 64

// RecursionWarnThreshold is the default recursion depth above which a
// warning is logged (spec §4.4.5), independent of ChainRingSize. An
// Engine overrides this from ptconfig.Config.MaxRecursionDepth (see
// engine.go's recursionWarnThreshold).
const RecursionWarnThreshold = 32

// Chain is the ordered list of "plugin.interface" identifiers currently
// on the dispatch stack, used for cycle detection (spec §4.4.5). It is
// capped at a caller-supplied ring size; appending past the cap rotates
// out the oldest entry, mirroring the source's ring semantics without a
// shared mutable buffer.
type Chain []string

// Contains reports whether id is already present in the chain.
func (c Chain) Contains(id string) bool {
	for _, entry := range c {
		if entry == id {
			return true
		}
	}
	return false
}

// Append returns a new Chain with id appended, dropping the oldest entry
// if the result would exceed ringSize. A non-positive ringSize disables
// rotation.
func (c Chain) Append(id string, ringSize int) Chain {
	next := make(Chain, 0, len(c)+1)
	next = append(next, c...)
	next = append(next, id)
	if ringSize > 0 && len(next) > ringSize {
		next = next[len(next)-ringSize:]
	}
	return next
}
