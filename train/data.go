// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"math"

	"github.com/pointlander/micrograd/nn"
)

// Dataset is a set of samples with one target each
type Dataset struct {
	Name    string
	Inputs  [][]float64
	Targets []float64
	// Min and Max are the range the targets were normalized from. When they
	// are equal the targets are not normalized.
	Min, Max float64
	// Raw are the targets before normalization
	Raw []float64
}

// Normalized is true if the targets were mapped into [-0.5, 0.5]
func (d *Dataset) Normalized() bool {
	return d.Min != d.Max
}

// Denormalize maps a prediction back into the range of the raw targets
func (d *Dataset) Denormalize(y float64) float64 {
	if !d.Normalized() {
		return y
	}
	return (y+.5)*(d.Max-d.Min) + d.Min
}

// Normalize maps x from [min, max] into [-0.5, 0.5], where tanh is quasi linear
func Normalize(x, min, max float64) float64 {
	return (x-min)/(max-min) - .5
}

// XOR is the exclusive or truth table
func XOR() *Dataset {
	targets := []float64{0, 1, 1, 0}
	return &Dataset{
		Name: TaskXOR,
		Inputs: [][]float64{
			{0, 0},
			{0, 1},
			{1, 0},
			{1, 1},
		},
		Targets: targets,
		Raw:     targets,
	}
}

// Linear samples f(x) = m*x + b at n points uniform in [lo, hi]. Both the
// inputs and targets are normalized.
func Linear(rng *nn.RNG, n int, m, b, lo, hi float64) *Dataset {
	f := func(x float64) float64 {
		return m*x + b
	}
	d := &Dataset{
		Name:    TaskLinear,
		Inputs:  make([][]float64, n),
		Targets: make([]float64, n),
		Raw:     make([]float64, n),
		Min:     math.Min(f(lo), f(hi)),
		Max:     math.Max(f(lo), f(hi)),
	}
	for i := 0; i < n; i++ {
		x := rng.Uniform(lo, hi)
		d.Inputs[i] = []float64{Normalize(x, lo, hi)}
		d.Raw[i] = f(x)
		d.Targets[i] = Normalize(d.Raw[i], d.Min, d.Max)
	}
	return d
}

// Load returns the dataset of the configured task
func Load(config Config) (*Dataset, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Task == TaskLinear {
		return Linear(nn.NewRNG(config.Seed), config.Samples, 4, 5, 3, 5), nil
	}
	return XOR(), nil
}
