// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64

package nn

import (
	"github.com/ziutek/blas"
)

// preactivation computes w·x + b
func preactivation(w, x []float64, b float64) float64 {
	return blas.Ddot(len(w), w, 1, x, 1) + b
}
