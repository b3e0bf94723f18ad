// Package atomicfloat provides a lock-free float64 cell, used by FedAvg
// aggregation to sum client tensors concurrently without a mutex per
// coordinate (adapted from the project's original grid-value accumulator).
package atomicfloat

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Float64 wraps a float64 for compare-and-swap based atomic updates.
// Must not be copied after first use.
type Float64 struct {
	val float64
}

// New returns a Float64 initialized to val.
func New(val float64) *Float64 {
	return &Float64{val: val}
}

// Read atomically loads the current value.
func (f *Float64) Read() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&f.val)))
	return math.Float64frombits(bits)
}

// Add attempts to add addend to the current value via compare-and-swap,
// returning the observed-old-plus-addend value and whether the swap
// succeeded. Callers that must not silently drop an update retry in a
// loop until ok is true.
func (f *Float64) Add(addend float64) (newVal float64, ok bool) {
	old := f.Read()
	newVal = old + addend
	ok = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&f.val)),
		math.Float64bits(old),
		math.Float64bits(newVal),
	)
	return
}

// Set atomically overwrites the value, returning false if a concurrent
// writer raced it.
func (f *Float64) Set(newVal float64) (ok bool) {
	old := f.Read()
	ok = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&f.val)),
		math.Float64bits(old),
		math.Float64bits(newVal),
	)
	return
}
