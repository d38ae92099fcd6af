package engine

import "errors"

// Sentinel errors for internal failures that are not part of the public
// TransferPointer/CallPlugin 0/1/-1 contract (spec §7 ambient addition):
// host code and tests can errors.Is/errors.As against these, while the
// public API still collapses every internal failure to the spec-mandated
// integer return plus a structured log line.
var (
	ErrPluginLoad     = errors.New("engine: plugin load failed")
	ErrUnknownTarget  = errors.New("engine: unknown target plugin or interface")
	ErrCycleDetected  = errors.New("engine: cycle detected in call chain")
	ErrParameterGap   = errors.New("engine: parameter gap in target slots")
	ErrReadinessMiss  = errors.New("engine: required target slots not ready")
	ErrEnvelopeTooLow = errors.New("engine: variadic envelope below min_params")
	ErrInvalidTarget  = errors.New("engine: target parameter index out of range or literal unparsable")
)
