// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointlander/micrograd/sf64"
)

func TestSGD(t *testing.T) {
	g := sf64.NewGraph()
	x := g.NewV(3)
	sgd, err := NewSGD([]sf64.V{x}, Config{LR: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.1, sgd.LR())

	// y = x**2, dy/dx = 2x
	require.NoError(t, x.Pow(2).Backward())
	sgd.Step()
	assert.InDelta(t, 3-0.1*6, x.Data(), 1e-12)
	assert.Equal(t, 6.0, x.Grad())
	sgd.ZeroGrad()
	assert.Equal(t, 0.0, x.Grad())
}

func TestSGDMomentum(t *testing.T) {
	g := sf64.NewGraph()
	x := g.NewV(1)
	sgd, err := NewSGD([]sf64.V{x}, Config{LR: 0.5, Momentum: 0.5})
	require.NoError(t, err)
	mark := g.Len()

	// y = 2x has a constant derivative of 2
	expected := []float64{0, -1.5, -3.25}
	for _, want := range expected {
		require.NoError(t, x.Mul(sf64.Scalar(2)).Backward())
		sgd.Step()
		sgd.ZeroGrad()
		g.Truncate(mark)
		assert.InDelta(t, want, x.Data(), 1e-12)
	}
}

func TestSGDConverges(t *testing.T) {
	g := sf64.NewGraph()
	x := g.NewV(-4)
	sgd, err := NewSGD([]sf64.V{x}, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLR, sgd.LR())
	sgd.SetLR(0.25)
	mark := g.Len()
	for i := 0; i < 100; i++ {
		require.NoError(t, x.Sub(sf64.Scalar(2)).Pow(2).Backward())
		sgd.Step()
		g.Truncate(mark)
	}
	assert.InDelta(t, 2.0, x.Data(), 1e-9)
}

func TestSGDConfig(t *testing.T) {
	_, err := NewSGD(nil, Config{LR: -1})
	assert.Error(t, err)
	_, err = NewSGD(nil, Config{Momentum: 1})
	assert.Error(t, err)
	_, err = NewSGD(nil, Config{Momentum: -0.1})
	assert.Error(t, err)
}
