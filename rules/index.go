package rules

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

// HashSourceKey derives the FNV-1a hash of a (plugin, interface,
// param_index) tuple (spec §3 "Rule-index"). The source codebase uses
// this hash to select a bucket in a hand-rolled open-chain table; here it
// only selects a bucket in a native Go map (see SPEC_FULL.md §9), kept
// around so index lookups and log lines carry the same bucket key the
// source would report.
func HashSourceKey(plugin, iface string, paramIndex int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(plugin))
	h.Write([]byte{0})
	h.Write([]byte(iface))
	h.Write([]byte{0})
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], uint32(paramIndex))
	h.Write(idx[:])
	return h.Sum64()
}

// Table is the engine's rule store: an insertion-ordered rule list plus a
// hash index narrowing lookups to O(matches) (spec §3 "Rule-index").
type Table struct {
	mu    sync.RWMutex
	rules []TransferRule
	index map[uint64][]int // hash(source) -> rule indices sharing that bucket
}

// NewTable returns an empty rule table.
func NewTable() *Table {
	return &Table{index: make(map[uint64][]int)}
}

// Add appends rule to the table, assigning it the next insertion-order ID
// and indexing it by its source tuple's hash. Returns the assigned ID.
func (t *Table) Add(rule TransferRule) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rule.ID = len(t.rules)
	t.rules = append(t.rules, rule)

	key := HashSourceKey(rule.Source.Plugin, rule.Source.Interface, rule.Source.ParamIndex)
	t.index[key] = append(t.index[key], rule.ID)
	return rule.ID
}

// All returns every rule in insertion order.
func (t *Table) All() []TransferRule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TransferRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// LookupIndexed returns every enabled rule whose source exactly matches
// src, using the hash index to narrow the candidate set before the exact
// comparison (spec §4.4.2 step 1). Results preserve rule insertion order.
func (t *Table) LookupIndexed(src Endpoint) []TransferRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := HashSourceKey(src.Plugin, src.Interface, src.ParamIndex)
	candidates := t.index[key]
	if len(candidates) == 0 {
		return nil
	}

	out := make([]TransferRule, 0, len(candidates))
	for _, id := range candidates {
		r := t.rules[id]
		if r.MatchesSource(src) {
			out = append(out, r)
		}
	}
	return out
}

// LookupLinear returns the same result as LookupIndexed computed by a
// plain linear scan over every rule, bypassing the hash index entirely.
// It exists for the indexed/linear equivalence property (spec §8,
// testable property 6) and as the engine's fallback when the index has
// not been built yet.
func (t *Table) LookupLinear(src Endpoint) []TransferRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []TransferRule
	for _, r := range t.rules {
		if r.MatchesSource(src) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rules)
}
