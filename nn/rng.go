// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nn

// LFSRMask is a LFSR mask with a maximum period
const LFSRMask = 0x80000057

// RNG is a random number generator
type RNG uint32

// NewRNG creates a random number generator. A zero seed would never leave
// zero so it is replaced with one.
func NewRNG(seed uint32) *RNG {
	if seed == 0 {
		seed = 1
	}
	r := RNG(seed)
	return &r
}

// Next returns the next random number
func (r *RNG) Next() uint32 {
	lfsr := *r
	lfsr = (lfsr >> 1) ^ (-(lfsr & 1) & LFSRMask)
	*r = lfsr
	return uint32(lfsr)
}

// Float64 returns a number in (0, 1) made from a fresh 32 bit word
func (r *RNG) Float64() float64 {
	for i := 0; i < 31; i++ {
		r.Next()
	}
	return float64(r.Next()) / (1 << 32)
}

// Uniform returns a number in (a, b)
func (r *RNG) Uniform(a, b float64) float64 {
	return (b-a)*r.Float64() + a
}
