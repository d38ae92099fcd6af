// Package engine is the rule-matching and dispatch engine: the heart of
// the pointer-transfer orchestration system (spec §4.4). It owns the rule
// table, the per-interface runtime state, the plugin table, and drives
// dispatch, SetGroup fan-out, and recursive return propagation.
package engine

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/ffi"
	"github.com/nexusplugins/ptengine/pluginmodel"
	"github.com/nexusplugins/ptengine/platform"
	"github.com/nexusplugins/ptengine/ptconfig"
	"github.com/nexusplugins/ptengine/ptlog"
	"github.com/nexusplugins/ptengine/rules"
	"github.com/nexusplugins/ptengine/state"
)

// lastTransferred is the process-wide "last transferred pointer" slot
// (spec §5), folded into the engine instance rather than left as an
// ambient global (SPEC_FULL.md §9 design note).
type lastTransferred struct {
	valid    bool
	value    abi.Value
	typeName string
}

// Engine is the single owned instance holding every piece of engine
// mutable state: rule table, interface-state table, plugin table, and the
// last-transferred-pointer slot (spec §5). The engine exposes no internal
// locking of its own — a host embedding it in a multi-threaded process
// must serialize entry into TransferPointer/CallPlugin itself, matching
// the source's single-threaded cooperative scheduling assumption.
type Engine struct {
	Plugins *pluginmodel.Table
	States  *state.Table
	Rules   *rules.Table

	caller ffi.Caller
	lib    platform.Library
	cfg    ptconfig.Config

	last lastTransferred

	// statsMu guards only diagnostic counters, not engine semantics —
	// those remain single-threaded by contract.
	statsMu  sync.Mutex
	dispatch uint64

	// errMu guards lastErr, the most specific internal failure reason from
	// the most recent TransferPointer/CallPlugin call (spec §7 ambient
	// addition). Like statsMu, this is diagnostics, not engine semantics.
	errMu   sync.Mutex
	lastErr error
}

// New builds an Engine around the given platform library, plugin
// introspector, dynamic caller, and configuration. cfg.LogLevel is applied
// to ptlog's package-wide logger immediately (empty leaves whatever the
// host already installed via ptlog.SetLogger untouched); an unrecognized
// level is logged and otherwise ignored rather than failing construction.
func New(lib platform.Library, introspector pluginmodel.Introspector, caller ffi.Caller, cfg ptconfig.Config) *Engine {
	if err := ptlog.ConfigureLevel(cfg.LogLevel); err != nil {
		ptlog.L().Warn("engine: invalid log_level in config, leaving logger unchanged", zap.Error(err))
	}
	return &Engine{
		Plugins: pluginmodel.NewTable(lib, introspector),
		States:  state.NewTable(),
		Rules:   rules.NewTable(),
		caller:  caller,
		lib:     lib,
		cfg:     cfg,
	}
}

// chainCap returns the call chain's ring size, from
// ptconfig.Config.ChainRingSize when positive, falling back to
// ChainRingSize otherwise (e.g. an Engine built with a zero-value Config
// rather than ptconfig.Default()).
func (e *Engine) chainCap() int {
	if e.cfg.ChainRingSize > 0 {
		return e.cfg.ChainRingSize
	}
	return ChainRingSize
}

// recursionWarnThreshold returns the depth above which tryInvoke logs a
// recursion warning, from ptconfig.Config.MaxRecursionDepth when positive,
// falling back to RecursionWarnThreshold otherwise.
func (e *Engine) recursionWarnThreshold() int {
	if e.cfg.MaxRecursionDepth > 0 {
		return e.cfg.MaxRecursionDepth
	}
	return RecursionWarnThreshold
}

// setLastErr records err as the most recent internal dispatch failure.
// A nil err clears it.
func (e *Engine) setLastErr(err error) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
}

// LastError returns the most specific internal failure reason from the
// most recent TransferPointer/CallPlugin call, or nil if every matched
// rule applied cleanly. The public API collapses all of this to the
// spec-mandated 0/1/-1 return; LastError lets host code and tests
// errors.Is/errors.As against the sentinels in errors.go instead (spec §7
// ambient addition).
func (e *Engine) LastError() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

// AddRule registers a transfer rule and returns its assigned ID.
func (e *Engine) AddRule(rule rules.TransferRule) int {
	if rule.Condition == nil {
		rule.Condition = rules.AlwaysTrue{}
	}
	return e.Rules.Add(rule)
}

// PluginSnapshot is a read-only view of one loaded plugin, used by
// Engine.Snapshot (spec §6 ambient addition, "no rule-matching
// semantics").
type PluginSnapshot struct {
	Name       string
	Version    string
	Interfaces []string
}

// Snapshot returns every currently loaded plugin's name, version, and
// interface names, for host-side diagnostics and tests.
func (e *Engine) Snapshot() []PluginSnapshot {
	names := e.Plugins.Names()
	out := make([]PluginSnapshot, 0, len(names))
	for _, n := range names {
		desc, ok := e.Plugins.Get(n)
		if !ok {
			continue
		}
		ifaceNames := make([]string, 0, len(desc.Interfaces))
		for _, iface := range desc.Interfaces {
			ifaceNames = append(ifaceNames, iface.Name)
		}
		out = append(out, PluginSnapshot{Name: desc.Name, Version: desc.Version, Interfaces: ifaceNames})
	}
	return out
}

func (e *Engine) newTraceID() string {
	return uuid.NewString()
}

func (e *Engine) isWindows() bool {
	return platform.IsWindows()
}

func (e *Engine) recordDispatch() {
	e.statsMu.Lock()
	e.dispatch++
	e.statsMu.Unlock()
}

// DispatchCount returns the number of top-level TransferPointer/CallPlugin
// invocations served so far, for diagnostics.
func (e *Engine) DispatchCount() uint64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.dispatch
}

func logFields(traceID string, extra ...zap.Field) []zap.Field {
	fields := make([]zap.Field, 0, len(extra)+1)
	fields = append(fields, zap.String("trace_id", traceID))
	fields = append(fields, extra...)
	return fields
}
