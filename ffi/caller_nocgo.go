//go:build !cgo

package ffi

import (
	"github.com/nexusplugins/ptengine/abi"
)

// noCgoCaller reports ErrUnavailable for every call: without cgo there is
// no ABI-correct way to invoke an arbitrary resolved symbol address.
type noCgoCaller struct{}

// NewCaller returns the platform's production Caller.
func NewCaller() Caller { return noCgoCaller{} }

func (noCgoCaller) Invoke(uintptr, []abi.Value, ReturnShape) (Result, error) {
	return Result{}, ErrUnavailable
}
