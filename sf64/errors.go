// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sf64

import (
	"errors"
	"fmt"
)

var (
	// ErrDomain is an operand outside of the domain of an operation
	ErrDomain = errors.New("sf64: domain error")
	// ErrDivideByZero is zero raised to a negative power, which is how
	// division by zero surfaces
	ErrDivideByZero = errors.New("sf64: division by zero")
	// ErrGraph is an operand that belongs to another graph
	ErrGraph = errors.New("sf64: operand belongs to another graph")
)

// DomainError is raised when the forward value of an operation can't be computed.
// It matches ErrDomain and its own Err with errors.Is.
type DomainError struct {
	Op  Op
	X   float64 // the operand
	P   float64 // the exponent of OpPow
	Err error
}

func (e *DomainError) Error() string {
	if e.Op == OpPow {
		return fmt.Sprintf("%s(%g, %g): %v", e.Op, e.X, e.P, e.Err)
	}
	return fmt.Sprintf("%s(%g): %v", e.Op, e.X, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports every DomainError as ErrDomain
func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}
