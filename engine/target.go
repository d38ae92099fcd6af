package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/ffi"
	"github.com/nexusplugins/ptengine/pluginmodel"
	"github.com/nexusplugins/ptengine/ptlog"
	"github.com/nexusplugins/ptengine/rules"
	"github.com/nexusplugins/ptengine/state"
)

// resolveTarget locates (loading the plugin if necessary) the descriptor,
// interface, and runtime state for a rule's target (spec §4.4.3 steps 1-2).
// The returned error, when non-nil, wraps ErrPluginLoad or ErrUnknownTarget
// so callers can distinguish "the .so/.dll wouldn't load" from "no rule
// ever registered a plugin/interface by that name" (spec §7).
func (e *Engine) resolveTarget(t rules.Target) (*pluginmodel.PluginDescriptor, pluginmodel.InterfaceDescriptor, *state.InterfaceState, error) {
	desc, ok := e.Plugins.Get(t.Plugin)
	if !ok && t.PluginPath != "" {
		if _, err := e.Plugins.Load(t.PluginPath); err != nil {
			ptlog.L().Warn("engine: target plugin load failed", zap.String("plugin", t.Plugin), zap.String("path", t.PluginPath), zap.Error(err))
			return nil, pluginmodel.InterfaceDescriptor{}, nil, fmt.Errorf("%w: %s (%s): %v", ErrPluginLoad, t.Plugin, t.PluginPath, err)
		}
		desc, ok = e.Plugins.Get(t.Plugin)
	}
	if !ok {
		ptlog.L().Warn("engine: unknown target plugin", zap.String("plugin", t.Plugin))
		return nil, pluginmodel.InterfaceDescriptor{}, nil, fmt.Errorf("%w: plugin %s", ErrUnknownTarget, t.Plugin)
	}

	iface, ok := desc.InterfaceByName(t.Interface)
	if !ok {
		ptlog.L().Warn("engine: unknown target interface", zap.String("plugin", t.Plugin), zap.String("interface", t.Interface))
		return nil, pluginmodel.InterfaceDescriptor{}, nil, fmt.Errorf("%w: %s.%s", ErrUnknownTarget, t.Plugin, t.Interface)
	}

	st := e.States.FindOrCreate(t.Plugin, iface)
	return desc, iface, st, nil
}

// paramTag returns the declared type tag for slot index, falling back to
// TagAny when the interface doesn't describe that many parameters (e.g.
// an unbounded variadic tail).
func paramTag(iface pluginmodel.InterfaceDescriptor, index int) abi.ParamTag {
	if index >= 0 && index < len(iface.Params) {
		return iface.Params[index].Tag
	}
	return abi.TagAny
}

// writeTargetSlot performs spec §4.4.3 step 3: parse and write a literal
// target_param_value if the rule declares one, otherwise write the
// propagated value directly.
func (e *Engine) writeTargetSlot(r rules.TransferRule, value abi.Value, iface pluginmodel.InterfaceDescriptor, st *state.InterfaceState) error {
	idx := r.Target.ParamIndex
	if !st.InRange(idx) {
		ptlog.L().Warn("engine: target parameter index out of range",
			zap.String("plugin", r.Target.Plugin), zap.String("interface", r.Target.Interface), zap.Int("index", idx))
		return fmt.Errorf("%w: %s.%s[%d]", ErrInvalidTarget, r.Target.Plugin, r.Target.Interface, idx)
	}

	write := value
	if r.TargetParamValue != "" {
		v, err := parseLiteral(paramTag(iface, idx), r.TargetParamValue)
		if err != nil {
			ptlog.L().Warn("engine: literal parse failed", zap.String("literal", r.TargetParamValue), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		write = v
	}
	st.WriteSlot(idx, write)
	return nil
}

// applyConstantCompanions implements spec §4.4.3 step 4: every other rule
// targeting the same (plugin, interface) whose target_param_value is a
// literal, and whose slot is still unready, is written now too — letting
// one triggering source prepare several constant-valued slots of the
// target in a single pass.
func (e *Engine) applyConstantCompanions(target rules.Target, iface pluginmodel.InterfaceDescriptor, st *state.InterfaceState) {
	for _, cr := range e.Rules.All() {
		if cr.Target.Plugin != target.Plugin || cr.Target.Interface != target.Interface {
			continue
		}
		if cr.TargetParamValue == "" {
			continue
		}
		idx := cr.Target.ParamIndex
		if !st.InRange(idx) || st.Slots[idx].Ready {
			continue
		}
		v, err := parseLiteral(paramTag(iface, idx), cr.TargetParamValue)
		if err != nil {
			ptlog.L().Warn("engine: constant companion literal parse failed", zap.String("literal", cr.TargetParamValue), zap.Error(err))
			continue
		}
		st.WriteSlot(idx, v)
	}
}

// variadicEnvelope implements spec §4.4.3 step 6: scan every rule
// targeting this interface and take the widest referenced parameter
// index plus one, clamped to the interface's declared parameter count.
func (e *Engine) variadicEnvelope(target rules.Target, st *state.InterfaceState) int {
	envelope := st.MinParams
	for _, r := range e.Rules.All() {
		if r.Target.Plugin != target.Plugin || r.Target.Interface != target.Interface {
			continue
		}
		if r.Target.ParamIndex+1 > envelope {
			envelope = r.Target.ParamIndex + 1
		}
	}
	if envelope > st.MaxParams {
		envelope = st.MaxParams
	}
	return envelope
}

// tryInvoke implements spec §4.4.3 steps 5-10: readiness gate, variadic
// envelope, return-shape resolution, the dynamic call, return fan-out, and
// cleanup. It is shared by plain dispatch (applyRule) and by SetGroup
// member processing (fanout.go) — in both cases the actual FFI call only
// happens once every required slot is ready, which is what makes a
// multi-member SetGroup fire its target exactly once.
// tryInvoke's returned error, when non-nil, wraps one of ErrCycleDetected,
// ErrParameterGap, ErrEnvelopeTooLow, ErrReadinessMiss, or a raw error from
// the FFI caller (spec §7) — letting applyRule/applySetGroup's caller
// distinguish why a target never fired.
func (e *Engine) tryInvoke(desc *pluginmodel.PluginDescriptor, iface pluginmodel.InterfaceDescriptor, st *state.InterfaceState, target rules.Target, chain Chain, depth int, traceID string) (bool, error) {
	current := target.Plugin + "." + target.Interface
	if chain.Contains(current) {
		ptlog.L().Warn("engine: cycle rejected", zap.String("target", current), zap.String("trace_id", traceID))
		return false, fmt.Errorf("%w: %s", ErrCycleDetected, current)
	}
	if depth > e.recursionWarnThreshold() {
		ptlog.L().Warn("engine: recursion depth warning", zap.Int("depth", depth), zap.String("trace_id", traceID))
	}

	if st.HasGap() {
		ptlog.L().Warn("engine: parameter gap, aborting dispatch", zap.String("target", current), zap.String("trace_id", traceID))
		return false, fmt.Errorf("%w: %s", ErrParameterGap, current)
	}

	var ready bool
	if iface.Arity == pluginmodel.ArityVariadic {
		envelope := e.variadicEnvelope(target, st)
		if envelope < st.MinParams {
			ptlog.L().Warn("engine: variadic envelope below min_params, aborting", zap.String("target", current), zap.String("trace_id", traceID))
			return false, fmt.Errorf("%w: %s", ErrEnvelopeTooLow, current)
		}
		st.ActualParamCount = envelope
		ready = st.VariadicReady()
	} else {
		ready = st.FixedReady()
	}
	if !ready {
		ptlog.L().Debug("engine: readiness miss", zap.String("target", current), zap.String("trace_id", traceID))
		return false, fmt.Errorf("%w: %s", ErrReadinessMiss, current)
	}

	shape := ffi.ReturnShape{
		Kind: abi.PromoteReturnKind(iface.ReturnKind, iface.ReturnSize, e.isWindows()),
		Size: iface.ReturnSize,
	}
	params := st.ReadyParams()

	result, err := e.caller.Invoke(iface.FuncPtr, params, shape)
	if err != nil {
		ptlog.L().Warn("engine: ffi invoke failed", zap.String("target", current), zap.Error(err), zap.String("trace_id", traceID))
		return false, fmt.Errorf("engine: invoke %s: %w", current, err)
	}
	ptlog.L().Debug("engine: target invoked", zap.String("plugin", desc.Name), zap.String("interface", iface.Name), zap.String("trace_id", traceID))

	nextChain := chain.Append(current, e.chainCap())
	e.fanout(target.Plugin, target.Interface, result.AsValue(), nextChain, depth+1, traceID)

	st.Reset()
	return true, nil
}
