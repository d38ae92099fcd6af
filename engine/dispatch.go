package engine

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/ptlog"
	"github.com/nexusplugins/ptengine/rules"
)

// TransferPointer is the first of the two public plugin-facing entry
// points (spec §4.4.1, §4.5): a plugin reports a pointer it holds. It
// updates the process-wide last-transferred slot, type-checks it against
// whatever was stored previously, and fires rule dispatch for the source
// tuple.
//
// Returns 0 when at least one rule matched and succeeded, 1 when at least
// one rule succeeded but the tag or size differs from the previously stored
// pointer (a non-fatal mismatch; dispatch still runs), or -1 when no rule
// matched or none of the matched rules succeeded.
func (e *Engine) TransferPointer(srcPlugin, srcIface string, srcParamIndex int, ptr unsafe.Pointer, tag abi.ParamTag, typeName string, size uintptr) int {
	traceID := e.newTraceID()
	e.recordDispatch()
	e.setLastErr(nil)

	value := abi.Value{Tag: tag, Ptr: ptr, Size: size}

	mismatch := e.last.valid && (e.last.value.Tag != tag || e.last.value.Size != size)
	e.last = lastTransferred{valid: true, value: value, typeName: typeName}

	src := rules.Endpoint{Plugin: srcPlugin, Interface: srcIface, ParamIndex: srcParamIndex}
	chain := Chain(nil).Append(srcPlugin+"."+srcIface, e.chainCap())
	successes := e.dispatchFrom(src, value, chain, 0, traceID)

	if successes == 0 {
		ptlog.L().Warn("engine: transfer_pointer matched no rule",
			zap.String("plugin", srcPlugin), zap.String("interface", srcIface), zap.Int("param_index", srcParamIndex), zap.String("trace_id", traceID))
		return -1
	}
	if mismatch {
		return 1
	}
	return 0
}

// CallPlugin is the second public entry point (spec §4.4.1, §4.5): a
// plugin asks the engine to propagate from one of its own parameters. If
// paramIndex is non-negative and that slot of the calling interface's own
// runtime state is already ready, the stored value is used instead of the
// supplied one — letting an earlier-captured parameter drive later
// propagation.
//
// Returns 0 when at least one rule matched and succeeded, -1 otherwise.
func (e *Engine) CallPlugin(srcPlugin, srcIface string, paramIndex int, value abi.Value) int {
	traceID := e.newTraceID()
	e.recordDispatch()
	e.setLastErr(nil)

	if paramIndex >= 0 {
		if st, ok := e.States.Find(srcPlugin, srcIface); ok && st.InRange(paramIndex) && st.Slots[paramIndex].Ready {
			value = st.Slots[paramIndex].Value
		}
	}

	src := rules.Endpoint{Plugin: srcPlugin, Interface: srcIface, ParamIndex: paramIndex}
	chain := Chain(nil).Append(srcPlugin+"."+srcIface, e.chainCap())
	successes := e.dispatchFrom(src, value, chain, 0, traceID)

	if successes == 0 {
		ptlog.L().Warn("engine: call_plugin matched no rule",
			zap.String("plugin", srcPlugin), zap.String("interface", srcIface), zap.Int("param_index", paramIndex), zap.String("trace_id", traceID))
		return -1
	}
	return 0
}

// dispatchFrom implements spec §4.4.2: index lookup, then a broadcast and
// multicast pass followed by a unicast pass with exact-duplicate-target
// suppression. Returns the number of rules that successfully reached and
// invoked their target.
func (e *Engine) dispatchFrom(src rules.Endpoint, value abi.Value, chain Chain, depth int, traceID string) int {
	candidates := e.Rules.LookupIndexed(src)
	if candidates == nil {
		candidates = e.Rules.LookupLinear(src)
	}
	return e.applyMatchedRules(candidates, value, chain, depth, traceID)
}

// applyMatchedRules runs the shared two-pass dispatch algorithm (spec
// §4.4.2 step 2) over an already-matched rule set: broadcast/multicast
// first, then unicast with exact-duplicate-target suppression. It is used
// both for top-level dispatch and for non-SetGroup return-value fan-out
// (spec §4.4.4, "Non-SetGroup rule... honor the exact duplicate target
// unicast break").
func (e *Engine) applyMatchedRules(candidates []rules.TransferRule, value abi.Value, chain Chain, depth int, traceID string) int {
	if len(candidates) == 0 {
		return 0
	}

	var fanoutRules, unicastRules []rules.TransferRule
	for _, r := range candidates {
		if r.Mode == rules.ModeUnicast {
			unicastRules = append(unicastRules, r)
		} else {
			fanoutRules = append(fanoutRules, r)
		}
	}

	successes := 0
	// fired remembers which (plugin, interface) targets have already been
	// invoked and reset within this event. The constant-companion scan
	// (target.go, applyConstantCompanions) fills every unready literal
	// slot of a target the first time any rule touches it, so a second
	// rule naming the same target has nothing left to contribute and
	// would otherwise re-invoke it a second time.
	fired := make(map[string]bool)

	for _, r := range fanoutRules {
		if r.Mode == rules.ModeMulticast && r.MulticastGroup == "" {
			// Required non-empty group (spec §3); ungated multicast
			// never fires.
			continue
		}
		if !r.Condition.Evaluate(value) {
			ptlog.L().Warn("engine: rule condition not met, skipping", zap.Int("rule_index", r.ID), zap.String("trace_id", traceID))
			continue
		}
		if fired[targetKey(r.Target)] {
			continue
		}
		ok, err := e.applyRule(r, value, chain, depth, traceID)
		if err != nil {
			e.setLastErr(err)
		}
		if ok {
			successes++
			fired[targetKey(r.Target)] = true
		}
	}

	for i, r := range unicastRules {
		if !r.Condition.Evaluate(value) {
			ptlog.L().Warn("engine: rule condition not met, skipping", zap.Int("rule_index", r.ID), zap.String("trace_id", traceID))
			continue
		}
		if laterExactDuplicate(unicastRules[i+1:], r.Target) {
			// A later rule names the identical target; the later rule
			// wins and this one is suppressed (spec §4.4.2 step 2,
			// scenario 4: "only the second rule is considered active").
			ptlog.L().Warn("engine: duplicate unicast target, earlier rule suppressed", zap.Int("rule_index", r.ID), zap.String("trace_id", traceID))
			continue
		}
		if fired[targetKey(r.Target)] {
			continue
		}
		ok, err := e.applyRule(r, value, chain, depth, traceID)
		if err != nil {
			e.setLastErr(err)
		}
		if ok {
			successes++
			fired[targetKey(r.Target)] = true
		}
	}

	return successes
}

// targetKey identifies a target interface (not a target slot) for the
// purpose of the fired-once guard above.
func targetKey(t rules.Target) string {
	return t.Plugin + "\x00" + t.Interface
}

// laterExactDuplicate reports whether any rule in rest targets the exact
// same (plugin, interface, param_index) as target.
func laterExactDuplicate(rest []rules.TransferRule, target rules.Target) bool {
	for _, r := range rest {
		if r.Target.Plugin == target.Plugin && r.Target.Interface == target.Interface && r.Target.ParamIndex == target.ParamIndex {
			return true
		}
	}
	return false
}

// applyRule implements spec §4.4.3 end to end for one matched rule: target
// resolution, slot write, constant-companion scan, and (via tryInvoke)
// readiness gating through cleanup. The returned error, when non-nil,
// wraps one of the sentinels in errors.go identifying why the target
// never fired (spec §7).
func (e *Engine) applyRule(r rules.TransferRule, value abi.Value, chain Chain, depth int, traceID string) (bool, error) {
	desc, iface, st, err := e.resolveTarget(r.Target)
	if err != nil {
		return false, err
	}
	if err := e.writeTargetSlot(r, value, iface, st); err != nil {
		return false, err
	}
	e.applyConstantCompanions(r.Target, iface, st)
	return e.tryInvoke(desc, iface, st, r.Target, chain, depth, traceID)
}
