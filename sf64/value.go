// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sf64 implements reverse mode automatic differentiation over
// float64 scalars.
//
// Values are built into a Graph as a side effect of arithmetic:
//
//	g := sf64.NewGraph()
//	a, b := g.NewV(3), g.NewV(4)
//	z := a.Mul(b).Add(sf64.Scalar(1))
//	if err := z.Backward(); err != nil {
//		// a domain error happened while building z
//	}
//	fmt.Println(a.Grad(), b.Grad()) // 4 3
//
// An operation outside of its domain, such as the log of a negative number,
// yields NaN and records the first such error on the graph. Check g.Err()
// after building an expression; Backward returns the same error.
//
// A Graph is not safe for concurrent use. Disjoint graphs may be used from
// different goroutines.
package sf64

import (
	"fmt"
	"math"
)

// Op is the operation that produced a value
type Op uint8

const (
	// OpLeaf is a value supplied by the caller
	OpLeaf Op = iota
	// OpAdd is a + b
	OpAdd
	// OpMul is a * b
	OpMul
	// OpNeg is -a
	OpNeg
	// OpPow is a ** p for a fixed exponent p
	OpPow
	// OpExp is the base e exponential
	OpExp
	// OpLog is the natural logarithm
	OpLog
	// OpTanh is the hyperbolic tangent
	OpTanh
	// OpReLU is the rectified linear unit
	OpReLU
	// OpSigmoid is the logistic function
	OpSigmoid
)

var opNames = [...]string{
	OpLeaf:    "leaf",
	OpAdd:     "add",
	OpMul:     "mul",
	OpNeg:     "neg",
	OpPow:     "pow",
	OpExp:     "exp",
	OpLog:     "log",
	OpTanh:    "tanh",
	OpReLU:    "relu",
	OpSigmoid: "sigmoid",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// node is an entry in the arena
type node struct {
	x  float64 // the value
	d  float64 // the derivative
	p  float64 // the exponent of OpPow
	a  int32   // the first operand or -1
	b  int32   // the second operand or -1
	op Op
}

// Graph owns every value created through it
type Graph struct {
	nodes []node
	err   error
	errAt int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{errAt: -1}
}

// Len is the number of values in the graph
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Truncate drops every value with an index of n or above. A training loop
// creates its parameters, remembers Len and truncates back to it after each
// forward/backward pass, throwing the pass away as a unit. Handles to
// dropped values must not be used again.
func (g *Graph) Truncate(n int) {
	if n < 0 || n > len(g.nodes) {
		panic(fmt.Sprintf("sf64: truncate %d out of range [0, %d]", n, len(g.nodes)))
	}
	for i := n; i < len(g.nodes); i++ {
		g.nodes[i] = node{}
	}
	g.nodes = g.nodes[:n]
	if g.errAt >= n {
		g.err, g.errAt = nil, -1
	}
}

// Err returns the first error raised while building the graph
func (g *Graph) Err() error {
	return g.err
}

func (g *Graph) fail(at int32, err error) {
	if g.err == nil {
		g.err, g.errAt = err, int(at)
	}
}

func (g *Graph) push(n node) V {
	if len(g.nodes) >= math.MaxInt32 {
		panic("sf64: graph is full")
	}
	g.nodes = append(g.nodes, n)
	return V{g: g, n: int32(len(g.nodes) - 1)}
}

// NewV creates a leaf value
func (g *Graph) NewV(x float64) V {
	return g.push(node{x: x, a: -1, b: -1, op: OpLeaf})
}

// NewVs creates a leaf value for each x
func (g *Graph) NewVs(x ...float64) []V {
	values := make([]V, len(x))
	for i, v := range x {
		values[i] = g.NewV(v)
	}
	return values
}

// V is a handle to a value in a graph. The zero V is not usable.
type V struct {
	g *Graph
	n int32
}

func (a V) node() *node {
	return &a.g.nodes[a.n]
}

// Graph returns the graph that owns the value
func (a V) Graph() *Graph {
	return a.g
}

// ID is the index of the value in its graph
func (a V) ID() int {
	return int(a.n)
}

// Data is the value
func (a V) Data() float64 {
	return a.node().x
}

// Grad is the derivative of the last backward root with respect to the value
func (a V) Grad() float64 {
	return a.node().d
}

// Set sets the value and zeros the derivative
func (a V) Set(x float64) {
	n := a.node()
	n.x, n.d = x, 0
}

// SetData sets the value and leaves the derivative alone
func (a V) SetData(x float64) {
	a.node().x = x
}

// Zero zeros the derivative
func (a V) Zero() {
	a.node().d = 0
}

// Op is the operation that produced the value
func (a V) Op() Op {
	return a.node().op
}

// Exponent is the fixed exponent of an OpPow value
func (a V) Exponent() float64 {
	return a.node().p
}

// Args returns the operands of the operation in call order, repeats included
func (a V) Args() []V {
	n := a.node()
	switch {
	case n.a < 0:
		return nil
	case n.b < 0:
		return []V{{g: a.g, n: n.a}}
	}
	return []V{{g: a.g, n: n.a}, {g: a.g, n: n.b}}
}

// Prev returns the set of values that directly produced this one
func (a V) Prev() []V {
	n := a.node()
	switch {
	case n.a < 0:
		return nil
	case n.b < 0 || n.a == n.b:
		return []V{{g: a.g, n: n.a}}
	}
	return []V{{g: a.g, n: n.a}, {g: a.g, n: n.b}}
}

func (a V) String() string {
	n := a.node()
	return fmt.Sprintf("%s(data=%g, grad=%g)", n.op, n.x, n.d)
}

// Operand is a V or a Scalar
type Operand interface {
	value(g *Graph) V
}

// Scalar is a constant that is promoted to a leaf when used as an operand
type Scalar float64

func (s Scalar) value(g *Graph) V {
	return g.NewV(float64(s))
}

func (a V) value(g *Graph) V {
	return a
}
