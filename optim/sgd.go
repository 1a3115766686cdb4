// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optim updates sf64 parameters from their derivatives.
package optim

import (
	"fmt"

	"github.com/pointlander/micrograd/sf64"
)

// DefaultLR is the learning rate used when Config.LR is zero
const DefaultLR = 0.05

// Config configures SGD
type Config struct {
	LR       float64 // learning rate
	Momentum float64 // momentum factor in [0, 1)
}

// SGD is stochastic gradient descent with optional momentum.
//
//	velocity = momentum*velocity - lr*grad
//	param = param + velocity
//
// With no momentum this is param -= lr*grad.
type SGD struct {
	params   []sf64.V
	lr       float64
	momentum float64
	velocity []float64
}

// NewSGD creates an optimizer for params
func NewSGD(params []sf64.V, config Config) (*SGD, error) {
	if config.LR == 0 {
		config.LR = DefaultLR
	}
	if config.LR < 0 {
		return nil, fmt.Errorf("optim: negative learning rate %g", config.LR)
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, fmt.Errorf("optim: momentum %g not in [0, 1)", config.Momentum)
	}
	return &SGD{
		params:   params,
		lr:       config.LR,
		momentum: config.Momentum,
		velocity: make([]float64, len(params)),
	}, nil
}

// Step updates every parameter from its derivative. Derivatives are left
// in place; call ZeroGrad to clear them.
func (s *SGD) Step() {
	for i, p := range s.params {
		s.velocity[i] = s.momentum*s.velocity[i] - s.lr*p.Grad()
		p.SetData(p.Data() + s.velocity[i])
	}
}

// ZeroGrad zeros the derivative of every parameter
func (s *SGD) ZeroGrad() {
	for _, p := range s.params {
		p.Zero()
	}
}

// LR returns the learning rate
func (s *SGD) LR() float64 {
	return s.lr
}

// SetLR sets the learning rate
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
