// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sf64

import "fmt"

// order returns the values reachable from root in post order: every value
// comes after all of the values it depends on, and root is last.
func (g *Graph) order(root int32) []int32 {
	type frame struct {
		n    int32
		done bool
	}
	visited := make([]bool, root+1)
	order := make([]int32, 0, 8)
	stack := []frame{{n: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.done {
			order = append(order, f.n)
			continue
		}
		if visited[f.n] {
			continue
		}
		visited[f.n] = true
		stack = append(stack, frame{n: f.n, done: true})
		n := &g.nodes[f.n]
		// b is pushed first so that a is walked first
		if n.b >= 0 && n.b != n.a && !visited[n.b] {
			stack = append(stack, frame{n: n.b})
		}
		if n.a >= 0 && !visited[n.a] {
			stack = append(stack, frame{n: n.a})
		}
	}
	return order
}

// Order returns the values that root depends on, root included, in
// topological order
func (g *Graph) Order(root V) []V {
	if root.g != g {
		panic(fmt.Errorf("sf64: order: %w", ErrGraph))
	}
	order := g.order(root.n)
	values := make([]V, len(order))
	for i, n := range order {
		values[i] = V{g: g, n: n}
	}
	return values
}

// Backward computes the derivative of root with respect to every value it
// depends on. Derivatives from an earlier call are discarded, not summed.
// It fails without touching any derivative if building the graph failed.
func (g *Graph) Backward(root V) error {
	if root.g != g {
		return fmt.Errorf("sf64: backward: %w", ErrGraph)
	}
	if g.err != nil {
		return g.err
	}
	order := g.order(root.n)
	for _, n := range order {
		g.nodes[n].d = 0
	}
	g.nodes[root.n].d = 1
	for i := len(order) - 1; i >= 0; i-- {
		g.backward(order[i])
	}
	return nil
}

// Backward computes the derivative of a with respect to every value it depends on
func (a V) Backward() error {
	return a.g.Backward(a)
}

// backward propagates the derivative of node c into its operands
func (g *Graph) backward(c int32) {
	n := &g.nodes[c]
	cd := n.d
	switch n.op {
	case OpLeaf:
	case OpAdd:
		g.nodes[n.a].d += cd
		g.nodes[n.b].d += cd
	case OpMul:
		a, b := &g.nodes[n.a], &g.nodes[n.b]
		a.d += b.x * cd
		b.d += a.x * cd
	case OpNeg:
		g.nodes[n.a].d -= cd
	case OpPow:
		if n.p == 0 {
			return
		}
		a := &g.nodes[n.a]
		a.d += n.p * pow(a.x, n.p-1) * cd
	case OpExp:
		g.nodes[n.a].d += n.x * cd
	case OpLog:
		a := &g.nodes[n.a]
		a.d += cd / a.x
	case OpTanh:
		g.nodes[n.a].d += (1 - n.x*n.x) * cd
	case OpReLU:
		if n.x > 0 {
			g.nodes[n.a].d += cd
		}
	case OpSigmoid:
		g.nodes[n.a].d += n.x * (1 - n.x) * cd
	default:
		panic("sf64: unknown op " + n.op.String())
	}
}
