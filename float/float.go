// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package float replays sf64 graphs with arbitrary precision floating point
// numbers. It is used to check the float64 values and derivatives that sf64
// computes.
package float

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ALTree/bigfloat"

	"github.com/pointlander/micrograd/sf64"
)

// DefaultPrecision is the precision used when Context.Precision is zero
const DefaultPrecision = 256

// ErrNaN is a value that can't be represented as a big.Float
var ErrNaN = errors.New("float: not a number")

// Context is a function context
type Context struct {
	Precision uint
}

func (context *Context) prec() uint {
	if context.Precision == 0 {
		return DefaultPrecision
	}
	return context.Precision
}

func (context *Context) new() *big.Float {
	return new(big.Float).SetPrec(context.prec())
}

// Eval computes root with the context precision
func (context *Context) Eval(root sf64.V) (*big.Float, error) {
	return context.eval(root, -1, nil)
}

// eval computes root, replacing the value with id wrt by x
func (context *Context) eval(root sf64.V, wrt int, x *big.Float) (value *big.Float, err error) {
	g := root.Graph()
	if err := g.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if nan, ok := r.(big.ErrNaN); ok {
				value, err = nil, fmt.Errorf("%w: %s", ErrNaN, nan.Error())
				return
			}
			panic(r)
		}
	}()

	values := make(map[int]*big.Float)
	for _, v := range g.Order(root) {
		if v.ID() == wrt {
			values[v.ID()] = context.new().Set(x)
			continue
		}
		c, err := context.apply(v, values)
		if err != nil {
			return nil, err
		}
		values[v.ID()] = c
	}
	return values[root.ID()], nil
}

// apply computes v from the values of its operands
func (context *Context) apply(v sf64.V, values map[int]*big.Float) (*big.Float, error) {
	c, args := context.new(), v.Args()
	if v.Op() == sf64.OpLeaf {
		x := v.Data()
		if math.IsNaN(x) {
			return nil, fmt.Errorf("%w: leaf %d", ErrNaN, v.ID())
		}
		return c.SetFloat64(x), nil
	}
	a := values[args[0].ID()]
	switch v.Op() {
	case sf64.OpAdd:
		return c.Add(a, values[args[1].ID()]), nil
	case sf64.OpMul:
		return c.Mul(a, values[args[1].ID()]), nil
	case sf64.OpNeg:
		return c.Neg(a), nil
	case sf64.OpPow:
		return context.pow(a, v.Exponent())
	case sf64.OpExp:
		return bigfloat.Exp(a), nil
	case sf64.OpLog:
		if a.Sign() <= 0 {
			x, _ := a.Float64()
			return nil, &sf64.DomainError{Op: sf64.OpLog, X: x, Err: sf64.ErrDomain}
		}
		return bigfloat.Log(a), nil
	case sf64.OpTanh:
		// 1 - 2/(e**2x + 1) stays finite for infinite x
		e := bigfloat.Exp(context.new().Mul(a, big.NewFloat(2)))
		e.Add(e, big.NewFloat(1))
		return c.Sub(big.NewFloat(1), c.Quo(big.NewFloat(2), e)), nil
	case sf64.OpReLU:
		if a.Sign() > 0 {
			return c.Set(a), nil
		}
		return c, nil
	case sf64.OpSigmoid:
		e := bigfloat.Exp(context.new().Neg(a))
		e.Add(e, big.NewFloat(1))
		return c.Quo(big.NewFloat(1), e), nil
	}
	return nil, fmt.Errorf("float: unsupported op %s", v.Op())
}

func (context *Context) pow(a *big.Float, p float64) (*big.Float, error) {
	x, _ := a.Float64()
	w := context.new().SetFloat64(p)
	switch a.Sign() {
	case 0:
		switch {
		case p < 0:
			return nil, &sf64.DomainError{Op: sf64.OpPow, X: x, P: p, Err: sf64.ErrDivideByZero}
		case p == 0:
			return context.new().SetInt64(1), nil
		}
		return context.new(), nil
	case -1:
		if p != math.Trunc(p) {
			return nil, &sf64.DomainError{Op: sf64.OpPow, X: x, P: p, Err: sf64.ErrDomain}
		}
		c := bigfloat.Pow(context.new().Neg(a), w)
		if math.Mod(p, 2) != 0 {
			c.Neg(c)
		}
		return c, nil
	}
	return bigfloat.Pow(a, w), nil
}

// Derivative computes the derivative of root with respect to wrt with a
// central difference. The step is 2**-(precision/4), so at the default
// precision the result is exact to well beyond float64. At a kink, such as
// relu at zero, the result is the average of the one sided derivatives.
func (context *Context) Derivative(root, wrt sf64.V) (*big.Float, error) {
	if root.Graph() != wrt.Graph() {
		return nil, fmt.Errorf("float: derivative: %w", sf64.ErrGraph)
	}
	x, err := context.Eval(wrt)
	if err != nil {
		return nil, err
	}
	h := context.new().SetMantExp(big.NewFloat(1), -int(context.prec()/4))
	plus, err := context.eval(root, wrt.ID(), context.new().Add(x, h))
	if err != nil {
		return nil, err
	}
	minus, err := context.eval(root, wrt.ID(), context.new().Sub(x, h))
	if err != nil {
		return nil, err
	}
	d := context.new().Sub(plus, minus)
	return d.Quo(d, h.Mul(h, big.NewFloat(2))), nil
}

// MismatchError is a derivative from Backward that doesn't match the numeric one
type MismatchError struct {
	ID       int
	Backward float64
	Numeric  float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("float: value %d: backward derivative %g != numeric derivative %g",
		e.ID, e.Backward, e.Numeric)
}

// Check runs root.Backward and compares the derivatives of wrt with numeric
// ones. The tolerance is relative for derivatives larger than one.
func (context *Context) Check(root sf64.V, tolerance float64, wrt ...sf64.V) error {
	if err := root.Backward(); err != nil {
		return err
	}
	for _, w := range wrt {
		d, err := context.Derivative(root, w)
		if err != nil {
			return err
		}
		numeric, _ := d.Float64()
		if math.Abs(w.Grad()-numeric) > tolerance*math.Max(1, math.Abs(numeric)) {
			return &MismatchError{ID: w.ID(), Backward: w.Grad(), Numeric: numeric}
		}
	}
	return nil
}
