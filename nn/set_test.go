// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nn

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pointlander/micrograd/sf64"
)

func TestSaveOpen(t *testing.T) {
	g := sf64.NewGraph()
	m := NewMLP(g, NewRNG(5), 2, []int{2, 1}, Tanh)
	m.Layers[0].Neurons[0].W[0].Set(math.Inf(-1))
	s := m.Set()
	run := uuid.New()
	file := filepath.Join(t.TempDir(), "set.w")
	require.NoError(t, s.Save(file, Checkpoint{Cost: 0.125, Epoch: 300, Run: run}))

	h := sf64.NewGraph()
	n := NewMLP(h, NewRNG(6), 2, []int{2, 1}, Tanh)
	for _, p := range n.Parameters() {
		p.Set(0)
	}
	loaded := n.Set()
	c, err := loaded.Open(file)
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{Cost: 0.125, Epoch: 300, Run: run}, c)

	want, got := m.Parameters(), n.Parameters()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Data(), got[i].Data(), "parameter %d", i)
	}
	assert.Equal(t, m.Predict([]float64{0.5, 0.25}), n.Predict([]float64{0.5, 0.25}))

	_, err = loaded.Open(filepath.Join(t.TempDir(), "missing.w"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnmarshalMismatch(t *testing.T) {
	g := sf64.NewGraph()
	small := NewMLP(g, NewRNG(5), 2, []int{2, 1}, Tanh).Set()
	wide := NewMLP(g, NewRNG(5), 3, []int{2, 1}, Tanh).Set()
	deep := NewMLP(g, NewRNG(5), 2, []int{2, 2, 1}, Tanh).Set()
	b := small.Marshal(Checkpoint{})

	_, err := wide.Unmarshal(b)
	assert.ErrorIs(t, err, ErrMismatch)
	_, err = deep.Unmarshal(b)
	assert.ErrorIs(t, err, ErrMismatch)

	_, err = small.Unmarshal(deep.Marshal(Checkpoint{}))
	assert.ErrorIs(t, err, ErrMismatch)

	before := small.Get("l0.n0")[0].Data()
	_, err = small.Unmarshal(b[:len(b)-3])
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, before, small.Get("l0.n0")[0].Data())
}

func TestUnmarshalUnpackedAndUnknownFields(t *testing.T) {
	g := sf64.NewGraph()
	s := NewSet()
	s.Add("w", g.NewV(0), g.NewV(0))

	var m []byte
	m = protowire.AppendTag(m, fieldName, protowire.BytesType)
	m = protowire.AppendString(m, "w")
	m = protowire.AppendTag(m, fieldShape, protowire.VarintType)
	m = protowire.AppendVarint(m, 2)
	for _, v := range []float64{1.5, -2.5} {
		m = protowire.AppendTag(m, fieldValues, protowire.Fixed64Type)
		m = protowire.AppendFixed64(m, math.Float64bits(v))
	}
	m = protowire.AppendTag(m, 9, protowire.VarintType)
	m = protowire.AppendVarint(m, 1)

	var b []byte
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, fieldWeights, protowire.BytesType)
	b = protowire.AppendBytes(b, m)
	b = protowire.AppendTag(b, fieldEpoch, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	c, err := s.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Epoch)
	assert.Equal(t, uuid.Nil, c.Run)
	assert.Equal(t, 1.5, s.Get("w")[0].Data())
	assert.Equal(t, -2.5, s.Get("w")[1].Data())

	bad := protowire.AppendTag(nil, fieldRun, protowire.BytesType)
	bad = protowire.AppendBytes(bad, []byte{1, 2, 3})
	_, err = s.Unmarshal(bad)
	assert.ErrorIs(t, err, ErrCorrupt)
}
