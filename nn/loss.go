// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pointlander/micrograd/sf64"
)

var (
	// ErrEmpty is a loss over no samples
	ErrEmpty = errors.New("nn: no samples")
	// ErrLength is a different number of targets and predictions
	ErrLength = errors.New("nn: targets and predictions differ in length")
)

// Loss computes a cost from targets and predictions
type Loss func(ys []float64, preds []sf64.V) (sf64.V, error)

// SSE is the sum of squared errors
func SSE(ys []float64, preds []sf64.V) (sf64.V, error) {
	if len(preds) == 0 {
		return sf64.V{}, ErrEmpty
	}
	if len(ys) != len(preds) {
		return sf64.V{}, fmt.Errorf("%w: %d != %d", ErrLength, len(ys), len(preds))
	}
	squares := make([]sf64.V, len(preds))
	for i, p := range preds {
		squares[i] = p.Sub(sf64.Scalar(ys[i])).Pow(2)
	}
	return preds[0].Graph().Sum(squares...), nil
}

// MSE is the mean of squared errors
func MSE(ys []float64, preds []sf64.V) (sf64.V, error) {
	sse, err := SSE(ys, preds)
	if err != nil {
		return sse, err
	}
	return sse.Div(sf64.Scalar(len(preds))), nil
}

// ParseLoss parses the name of a loss, "sse" or "mse"
func ParseLoss(name string) (Loss, error) {
	switch strings.ToLower(name) {
	case "sse":
		return SSE, nil
	case "mse":
		return MSE, nil
	}
	return nil, fmt.Errorf("nn: unknown loss %q", name)
}
