package engine

import (
	"sort"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/ffi"
	"github.com/nexusplugins/ptengine/ptlog"
	"github.com/nexusplugins/ptengine/rules"
)

// fanout implements spec §4.4.4: it collects every rule whose source is
// "the interface that just returned" and handles SetGroup members as one
// atomic group, then the remaining rules through the ordinary two-pass
// dispatch algorithm.
func (e *Engine) fanout(returnedPlugin, returnedIface string, returnValue abi.Value, chain Chain, depth int, traceID string) {
	src := rules.Endpoint{Plugin: returnedPlugin, Interface: returnedIface, ParamIndex: rules.SourceReturnIndex}
	matched := e.Rules.LookupIndexed(src)
	if matched == nil {
		matched = e.Rules.LookupLinear(src)
	}
	if len(matched) == 0 {
		return
	}

	groups := make(map[string][]rules.TransferRule)
	var groupOrder []string
	var others []rules.TransferRule

	for _, r := range matched {
		if !r.Condition.Evaluate(returnValue) {
			continue
		}
		if r.SetGroup != "" {
			key := r.SetGroup + "\x00" + r.Target.Plugin + "\x00" + r.Target.Interface
			if _, seen := groups[key]; !seen {
				groupOrder = append(groupOrder, key)
			}
			groups[key] = append(groups[key], r)
		} else {
			others = append(others, r)
		}
	}

	for _, key := range groupOrder {
		e.applySetGroup(groups[key], returnedPlugin, returnedIface, returnValue, chain, depth, traceID)
	}

	e.applyMatchedRules(others, returnValue, chain, depth, traceID)
}

// applySetGroup implements the SetGroup branch of spec §4.4.4: members are
// sorted by target_param_index ascending, each re-invokes the source
// interface for a fresh return value before writing its own slot, and the
// target is actually invoked only once every member's slot is ready —
// which tryInvoke's ordinary readiness gate already guarantees, so no
// separate "fire once" bookkeeping is needed here. The group's target
// slots are explicitly cleared afterward (SetGroup atomic-commit
// discipline), whether or not the call fired.
func (e *Engine) applySetGroup(members []rules.TransferRule, srcPlugin, srcIface string, initial abi.Value, chain Chain, depth int, traceID string) {
	sort.SliceStable(members, func(i, j int) bool { return members[i].Target.ParamIndex < members[j].Target.ParamIndex })

	target := members[0].Target
	desc, iface, st, err := e.resolveTarget(rules.Target{Plugin: target.Plugin, Interface: target.Interface})
	if err != nil {
		e.setLastErr(err)
		return
	}

	for i, member := range members {
		if laterExactDuplicate(members[i+1:], member.Target) {
			continue
		}

		if st.LongestReadyPrefix() < member.Target.ParamIndex {
			ptlog.L().Warn("engine: setgroup member skipped, lower slots not ready",
				zap.String("target", target.Plugin+"."+target.Interface),
				zap.Int("param_index", member.Target.ParamIndex), zap.String("trace_id", traceID))
			continue
		}

		value := initial
		if fresh, ok := e.reinvokeSource(srcPlugin, srcIface); ok {
			value = fresh
		}

		if err := e.writeTargetSlot(member, value, iface, st); err != nil {
			e.setLastErr(err)
			continue
		}
		e.applyConstantCompanions(member.Target, iface, st)
		if _, err := e.tryInvoke(desc, iface, st, member.Target, chain, depth, traceID); err != nil {
			e.setLastErr(err)
		}
	}

	st.Reset()
}

// reinvokeSource calls plugin.iface again with its current ready
// parameter state, producing a fresh return value for the next SetGroup
// member (spec §4.4.4, "Re-invoke the source interface... so each slot
// may see its own fresh source value, not a cached one").
func (e *Engine) reinvokeSource(plugin, iface string) (abi.Value, bool) {
	st, ok := e.States.Find(plugin, iface)
	if !ok {
		return abi.Value{}, false
	}
	desc, ok := e.Plugins.Get(plugin)
	if !ok {
		return abi.Value{}, false
	}
	ifaceDesc, ok := desc.InterfaceByName(iface)
	if !ok {
		return abi.Value{}, false
	}

	shape := ffi.ReturnShape{
		Kind: abi.PromoteReturnKind(ifaceDesc.ReturnKind, ifaceDesc.ReturnSize, e.isWindows()),
		Size: ifaceDesc.ReturnSize,
	}
	result, err := e.caller.Invoke(st.FuncPtr, st.ReadyParams(), shape)
	if err != nil {
		ptlog.L().Warn("engine: setgroup source re-invoke failed", zap.String("plugin", plugin), zap.String("interface", iface), zap.Error(err))
		return abi.Value{}, false
	}
	return result.AsValue(), true
}
