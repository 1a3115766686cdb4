// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sf64

import (
	"fmt"
	"math"
)

var (
	exp  = math.Exp
	log  = math.Log
	tanh = math.Tanh
	pow  = math.Pow
)

// mismatch records an operand from another graph and returns a NaN leaf
func (g *Graph) mismatch(op Op) V {
	v := g.NewV(math.NaN())
	g.fail(v.n, fmt.Errorf("sf64: %s: %w", op, ErrGraph))
	return v
}

func (g *Graph) binary(op Op, a, b Operand) V {
	x, y := a.value(g), b.value(g)
	if x.g != g || y.g != g {
		return g.mismatch(op)
	}
	ax, bx := g.nodes[x.n].x, g.nodes[y.n].x
	var cx float64
	switch op {
	case OpAdd:
		cx = ax + bx
	case OpMul:
		cx = ax * bx
	default:
		panic("sf64: " + op.String() + " is not binary")
	}
	return g.push(node{x: cx, a: x.n, b: y.n, op: op})
}

func (g *Graph) unary(op Op, a Operand, p float64) V {
	x := a.value(g)
	if x.g != g {
		return g.mismatch(op)
	}
	ax := g.nodes[x.n].x
	var (
		cx  float64
		err error
	)
	switch op {
	case OpNeg:
		cx = -ax
	case OpPow:
		switch {
		case ax == 0 && p < 0:
			err = &DomainError{Op: op, X: ax, P: p, Err: ErrDivideByZero}
		case ax < 0 && p != math.Trunc(p):
			err = &DomainError{Op: op, X: ax, P: p, Err: ErrDomain}
		default:
			cx = pow(ax, p)
		}
	case OpExp:
		cx = exp(ax)
	case OpLog:
		if ax <= 0 {
			err = &DomainError{Op: op, X: ax, Err: ErrDomain}
		} else {
			cx = log(ax)
		}
	case OpTanh:
		cx = tanh(ax)
	case OpReLU:
		cx = math.Max(0, ax)
	case OpSigmoid:
		cx = 1 / (1 + exp(-ax))
	default:
		panic("sf64: " + op.String() + " is not unary")
	}
	c := g.push(node{x: cx, p: p, a: x.n, b: -1, op: op})
	if err != nil {
		g.nodes[c.n].x = math.NaN()
		g.fail(c.n, err)
	}
	return c
}

// Add adds two values
func (g *Graph) Add(a, b Operand) V {
	return g.binary(OpAdd, a, b)
}

// Sub subtracts b from a as a + (-b)
func (g *Graph) Sub(a, b Operand) V {
	return g.Add(a, g.Neg(b))
}

// Mul multiplies two values
func (g *Graph) Mul(a, b Operand) V {
	return g.binary(OpMul, a, b)
}

// Div divides a by b as a * b**-1
func (g *Graph) Div(a, b Operand) V {
	return g.Mul(a, g.Pow(b, -1))
}

// Neg negates a value
func (g *Graph) Neg(a Operand) V {
	return g.unary(OpNeg, a, 0)
}

// Pow raises a value to a fixed exponent
func (g *Graph) Pow(a Operand, p float64) V {
	return g.unary(OpPow, a, p)
}

// Exp the base e exponential
func (g *Graph) Exp(a Operand) V {
	return g.unary(OpExp, a, 0)
}

// Log the natural logarithm
func (g *Graph) Log(a Operand) V {
	return g.unary(OpLog, a, 0)
}

// Tanh the hyperbolic tangent
func (g *Graph) Tanh(a Operand) V {
	return g.unary(OpTanh, a, 0)
}

// ReLU the rectified linear unit
func (g *Graph) ReLU(a Operand) V {
	return g.unary(OpReLU, a, 0)
}

// Sigmoid the logistic function
func (g *Graph) Sigmoid(a Operand) V {
	return g.unary(OpSigmoid, a, 0)
}

// Sum adds up the values from left to right. The sum of nothing is a zero leaf.
func (g *Graph) Sum(values ...V) V {
	if len(values) == 0 {
		return g.NewV(0)
	}
	sum := values[0]
	for _, v := range values[1:] {
		sum = g.Add(sum, v)
	}
	return sum
}

// Add adds b to a
func (a V) Add(b Operand) V { return a.g.Add(a, b) }

// Sub subtracts b from a
func (a V) Sub(b Operand) V { return a.g.Sub(a, b) }

// Mul multiplies a by b
func (a V) Mul(b Operand) V { return a.g.Mul(a, b) }

// Div divides a by b
func (a V) Div(b Operand) V { return a.g.Div(a, b) }

// Neg negates a
func (a V) Neg() V { return a.g.Neg(a) }

// Pow raises a to the fixed exponent p
func (a V) Pow(p float64) V { return a.g.Pow(a, p) }

// Exp the base e exponential of a
func (a V) Exp() V { return a.g.Exp(a) }

// Log the natural logarithm of a
func (a V) Log() V { return a.g.Log(a) }

// Tanh the hyperbolic tangent of a
func (a V) Tanh() V { return a.g.Tanh(a) }

// ReLU the rectified linear unit of a
func (a V) ReLU() V { return a.g.ReLU(a) }

// Sigmoid the logistic function of a
func (a V) Sigmoid() V { return a.g.Sigmoid(a) }
