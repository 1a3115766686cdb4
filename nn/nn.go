// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nn builds multi layer perceptrons out of sf64 values.
//
// Every parameter is a leaf in one sf64.Graph. Create the network first and
// remember g.Len(); each training step can then build its forward pass,
// call Backward and truncate the graph back to the parameters.
package nn

import (
	"fmt"
	"math"
	"strings"

	"github.com/pointlander/micrograd/sf64"
)

// Activation is the nonlinearity applied by a neuron
type Activation int

const (
	// Tanh the hyperbolic tangent
	Tanh Activation = iota
	// ReLU the rectified linear unit
	ReLU
	// Sigmoid the logistic function
	Sigmoid
	// Linear no activation
	Linear
)

var activations = [...]string{
	Tanh:    "tanh",
	ReLU:    "relu",
	Sigmoid: "sigmoid",
	Linear:  "linear",
}

func (a Activation) String() string {
	if a >= 0 && int(a) < len(activations) {
		return activations[a]
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// ParseActivation parses the name of an activation
func ParseActivation(name string) (Activation, error) {
	for a, n := range activations {
		if strings.EqualFold(name, n) {
			return Activation(a), nil
		}
	}
	return 0, fmt.Errorf("nn: unknown activation %q", name)
}

func (a Activation) apply(v sf64.V) sf64.V {
	switch a {
	case Tanh:
		return v.Tanh()
	case ReLU:
		return v.ReLU()
	case Sigmoid:
		return v.Sigmoid()
	}
	return v
}

func (a Activation) eval(x float64) float64 {
	switch a {
	case Tanh:
		return math.Tanh(x)
	case ReLU:
		return math.Max(0, x)
	case Sigmoid:
		return 1 / (1 + math.Exp(-x))
	}
	return x
}

// Neuron computes act(w·x + b)
type Neuron struct {
	W   []sf64.V
	B   sf64.V
	Act Activation
}

// NewNeuron creates a neuron with weights and bias uniform in (-1, 1)
func NewNeuron(g *sf64.Graph, rng *RNG, nin int, act Activation) *Neuron {
	n := &Neuron{
		W:   make([]sf64.V, nin),
		Act: act,
	}
	for i := range n.W {
		n.W[i] = g.NewV(rng.Uniform(-1, 1))
	}
	n.B = g.NewV(rng.Uniform(-1, 1))
	return n
}

// Forward builds the output of the neuron into the graph
func (n *Neuron) Forward(x []sf64.V) sf64.V {
	if len(x) != len(n.W) {
		panic(fmt.Sprintf("nn: neuron has %d inputs, got %d", len(n.W), len(x)))
	}
	terms := make([]sf64.V, 0, len(n.W)+1)
	terms = append(terms, n.B)
	for i, w := range n.W {
		terms = append(terms, w.Mul(x[i]))
	}
	return n.Act.apply(n.B.Graph().Sum(terms...))
}

// Predict computes the output of the neuron without building a graph
func (n *Neuron) Predict(x []float64) float64 {
	if len(x) != len(n.W) {
		panic(fmt.Sprintf("nn: neuron has %d inputs, got %d", len(n.W), len(x)))
	}
	w := make([]float64, len(n.W))
	for i, v := range n.W {
		w[i] = v.Data()
	}
	return n.Act.eval(preactivation(w, x, n.B.Data()))
}

// Parameters are the weights followed by the bias
func (n *Neuron) Parameters() []sf64.V {
	return append(append(make([]sf64.V, 0, len(n.W)+1), n.W...), n.B)
}

// Layer is a set of neurons sharing the same inputs
type Layer struct {
	Neurons []*Neuron
}

// NewLayer creates a layer of nout neurons
func NewLayer(g *sf64.Graph, rng *RNG, nin, nout int, act Activation) *Layer {
	l := &Layer{Neurons: make([]*Neuron, nout)}
	for i := range l.Neurons {
		l.Neurons[i] = NewNeuron(g, rng, nin, act)
	}
	return l
}

// Forward builds the outputs of the layer into the graph
func (l *Layer) Forward(x []sf64.V) []sf64.V {
	out := make([]sf64.V, len(l.Neurons))
	for i, n := range l.Neurons {
		out[i] = n.Forward(x)
	}
	return out
}

// Predict computes the outputs of the layer without building a graph
func (l *Layer) Predict(x []float64) []float64 {
	out := make([]float64, len(l.Neurons))
	for i, n := range l.Neurons {
		out[i] = n.Predict(x)
	}
	return out
}

// Parameters of every neuron in order
func (l *Layer) Parameters() []sf64.V {
	var p []sf64.V
	for _, n := range l.Neurons {
		p = append(p, n.Parameters()...)
	}
	return p
}

// MLP is a multi layer perceptron
type MLP struct {
	Layers []*Layer
}

// NewMLP creates a perceptron with nin inputs and a layer for each entry of nouts
func NewMLP(g *sf64.Graph, rng *RNG, nin int, nouts []int, act Activation) *MLP {
	sizes := append([]int{nin}, nouts...)
	m := &MLP{Layers: make([]*Layer, len(nouts))}
	for i := range m.Layers {
		m.Layers[i] = NewLayer(g, rng, sizes[i], sizes[i+1], act)
	}
	return m
}

// Forward builds the outputs of the perceptron into the graph
func (m *MLP) Forward(x []sf64.V) []sf64.V {
	for _, l := range m.Layers {
		x = l.Forward(x)
	}
	return x
}

// Predict computes the outputs of the perceptron without building a graph
func (m *MLP) Predict(x []float64) []float64 {
	for _, l := range m.Layers {
		x = l.Predict(x)
	}
	return x
}

// Parameters of every layer in order
func (m *MLP) Parameters() []sf64.V {
	var p []sf64.V
	for _, l := range m.Layers {
		p = append(p, l.Parameters()...)
	}
	return p
}

// Set returns the parameters grouped by neuron, named l{layer}.n{neuron}
func (m *MLP) Set() Set {
	s := NewSet()
	for i, l := range m.Layers {
		for j, n := range l.Neurons {
			s.Add(fmt.Sprintf("l%d.n%d", i, j), n.Parameters()...)
		}
	}
	return s
}

// Inputs creates a leaf for each input
func Inputs(g *sf64.Graph, x []float64) []sf64.V {
	return g.NewVs(x...)
}
