// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nn

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pointlander/micrograd/sf64"
)

// Field numbers of the checkpoint messages
//
//	message Set {
//	  double cost = 1;
//	  uint64 epoch = 2;
//	  repeated Weights weights = 3;
//	  bytes run = 4;
//	}
//	message Weights {
//	  string name = 1;
//	  repeated int64 shape = 2;
//	  repeated double values = 3;
//	}
const (
	fieldCost    protowire.Number = 1
	fieldEpoch   protowire.Number = 2
	fieldWeights protowire.Number = 3
	fieldRun     protowire.Number = 4

	fieldName   protowire.Number = 1
	fieldShape  protowire.Number = 2
	fieldValues protowire.Number = 3
)

var (
	// ErrCorrupt is a checkpoint that can't be decoded
	ErrCorrupt = errors.New("nn: corrupt checkpoint")
	// ErrMismatch is a checkpoint that doesn't fit the set
	ErrMismatch = errors.New("nn: checkpoint doesn't match the set")
)

// Weights is a named group of parameters
type Weights struct {
	N string // the name
	V []sf64.V
}

// Set is a set of weights
type Set struct {
	Weights []*Weights
	ByName  map[string]*Weights
}

// Checkpoint describes the training state a set was saved at
type Checkpoint struct {
	Cost  float64
	Epoch int
	Run   uuid.UUID
}

// NewSet creates a new weight set
func NewSet() Set {
	return Set{
		ByName: make(map[string]*Weights),
	}
}

// Add adds weights to a set
func (s *Set) Add(name string, values ...sf64.V) {
	w := &Weights{N: name, V: values}
	s.Weights = append(s.Weights, w)
	s.ByName[name] = w
}

// Get gets weights from the set by name
func (s *Set) Get(name string) []sf64.V {
	if w, ok := s.ByName[name]; ok {
		return w.V
	}
	return nil
}

// Zero zeros the partial derivatives
func (s *Set) Zero() {
	for _, w := range s.Weights {
		for _, v := range w.V {
			v.Zero()
		}
	}
}

// Marshal encodes the values of the set in the protocol buffer wire format
func (s *Set) Marshal(c Checkpoint) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCost, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(c.Cost))
	b = protowire.AppendTag(b, fieldEpoch, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Epoch))
	for _, w := range s.Weights {
		var m, values []byte
		m = protowire.AppendTag(m, fieldName, protowire.BytesType)
		m = protowire.AppendString(m, w.N)
		m = protowire.AppendTag(m, fieldShape, protowire.BytesType)
		m = protowire.AppendBytes(m, protowire.AppendVarint(nil, uint64(len(w.V))))
		for _, v := range w.V {
			values = protowire.AppendFixed64(values, math.Float64bits(v.Data()))
		}
		m = protowire.AppendTag(m, fieldValues, protowire.BytesType)
		m = protowire.AppendBytes(m, values)

		b = protowire.AppendTag(b, fieldWeights, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	if c.Run != uuid.Nil {
		b = protowire.AppendTag(b, fieldRun, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Run[:])
	}
	return b
}

type weights struct {
	name   string
	shape  []int64
	values []float64
}

func consume(n int) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
}

func unmarshalWeights(b []byte) (weights, error) {
	var w weights
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return w, consume(n)
		}
		b = b[n:]
		switch {
		case num == fieldName && typ == protowire.BytesType:
			w.name, n = protowire.ConsumeString(b)
		case num == fieldShape && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			w.shape = append(w.shape, int64(v))
		case num == fieldShape && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return w, consume(m)
				}
				w.shape, packed = append(w.shape, int64(v)), packed[m:]
			}
		case num == fieldValues && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			w.values = append(w.values, math.Float64frombits(v))
		case num == fieldValues && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					return w, consume(m)
				}
				w.values, packed = append(w.values, math.Float64frombits(v)), packed[m:]
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return w, consume(n)
		}
		b = b[n:]
	}
	return w, nil
}

// Unmarshal decodes values into the set. Every weights group of the set
// must be present with the same number of values.
func (s *Set) Unmarshal(b []byte) (Checkpoint, error) {
	var (
		c    Checkpoint
		read []weights
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, consume(n)
		}
		b = b[n:]
		switch {
		case num == fieldCost && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			c.Cost = math.Float64frombits(v)
		case num == fieldEpoch && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			c.Epoch = int(v)
		case num == fieldWeights && typ == protowire.BytesType:
			var m []byte
			m, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				w, err := unmarshalWeights(m)
				if err != nil {
					return c, err
				}
				read = append(read, w)
			}
		case num == fieldRun && typ == protowire.BytesType:
			var m []byte
			m, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				run, err := uuid.FromBytes(m)
				if err != nil {
					return c, fmt.Errorf("%w: run: %v", ErrCorrupt, err)
				}
				c.Run = run
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return c, consume(n)
		}
		b = b[n:]
	}

	seen := make(map[string]bool, len(read))
	for _, w := range read {
		target, ok := s.ByName[w.name]
		if !ok {
			return c, fmt.Errorf("%w: unknown weights %q", ErrMismatch, w.name)
		}
		if len(w.values) != len(target.V) {
			return c, fmt.Errorf("%w: %q has %d values, want %d", ErrMismatch, w.name, len(w.values), len(target.V))
		}
		seen[w.name] = true
	}
	for _, w := range s.Weights {
		if !seen[w.N] {
			return c, fmt.Errorf("%w: missing weights %q", ErrMismatch, w.N)
		}
	}
	for _, w := range read {
		for i, v := range s.ByName[w.name].V {
			v.Set(w.values[i])
		}
	}
	return c, nil
}

// Save saves a set of weights
func (s *Set) Save(file string, c Checkpoint) error {
	output, err := os.Create(file)
	if err != nil {
		return err
	}
	defer output.Close()
	_, err = output.Write(s.Marshal(c))
	if err != nil {
		return err
	}
	return output.Close()
}

// Open loads a set of weights saved by Save into s
func (s *Set) Open(file string) (Checkpoint, error) {
	in, err := os.ReadFile(file)
	if err != nil {
		return Checkpoint{}, err
	}
	c, err := s.Unmarshal(in)
	if err != nil {
		return c, fmt.Errorf("%s: %w", file, err)
	}
	return c, nil
}
