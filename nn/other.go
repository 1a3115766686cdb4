// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

package nn

// preactivation computes w·x + b
func preactivation(w, x []float64, b float64) float64 {
	sum := b
	for i, v := range w {
		sum += v * x[i]
	}
	return sum
}
