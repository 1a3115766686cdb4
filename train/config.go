// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pointlander/micrograd/nn"
	"github.com/pointlander/micrograd/optim"
	"github.com/pointlander/micrograd/sf64"
)

// Tasks that have a built in dataset
const (
	TaskXOR    = "xor"
	TaskLinear = "linear"
)

// ErrConfig is an invalid configuration
var ErrConfig = errors.New("train: invalid config")

// Config is a training configuration
type Config struct {
	Task       string  `yaml:"task"`
	Hidden     []int   `yaml:"hidden"`
	Activation string  `yaml:"activation"`
	Loss       string  `yaml:"loss"`
	LR         float64 `yaml:"learning_rate"`
	Momentum   float64 `yaml:"momentum"`
	Epochs     int     `yaml:"epochs"`
	// Target stops training once the loss is below it, zero never stops early
	Target   float64 `yaml:"target"`
	Seed     uint32  `yaml:"seed"`
	LogEvery int     `yaml:"log_every"`
	// Samples is the size of the linear dataset
	Samples int `yaml:"samples"`
}

// DefaultConfig returns the defaults of a task. An unknown task gets the
// xor defaults with the task name kept so that Validate can reject it.
func DefaultConfig(task string) Config {
	switch task {
	case TaskLinear:
		return Config{
			Task:       TaskLinear,
			Hidden:     []int{},
			Activation: nn.Tanh.String(),
			Loss:       "mse",
			LR:         optim.DefaultLR,
			Epochs:     1001,
			Seed:       1,
			LogEvery:   100,
			Samples:    4,
		}
	}
	return Config{
		Task:       task,
		Hidden:     []int{2},
		Activation: nn.Tanh.String(),
		Loss:       "sse",
		LR:         optim.DefaultLR,
		Epochs:     300,
		Seed:       1,
		LogEvery:   30,
	}
}

// LoadConfig reads a yaml config. Keys missing from the file keep the
// defaults of the task named in the file, xor if there is none.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	var probe struct {
		Task string `yaml:"task"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if probe.Task == "" {
		probe.Task = TaskXOR
	}
	config := DefaultConfig(probe.Task)
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.Task {
	case TaskXOR, TaskLinear:
	default:
		return fmt.Errorf("%w: unknown task %q", ErrConfig, c.Task)
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("%w: hidden layer of size %d", ErrConfig, h)
		}
	}
	if _, err := nn.ParseActivation(c.Activation); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if _, err := nn.ParseLoss(c.Loss); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if !(c.LR > 0) {
		return fmt.Errorf("%w: learning rate %g must be positive", ErrConfig, c.LR)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("%w: momentum %g must be in [0, 1)", ErrConfig, c.Momentum)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs %d must be positive", ErrConfig, c.Epochs)
	}
	if c.Target < 0 {
		return fmt.Errorf("%w: target %g is negative", ErrConfig, c.Target)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("%w: log_every %d is negative", ErrConfig, c.LogEvery)
	}
	if c.Task == TaskLinear && c.Samples <= 0 {
		return fmt.Errorf("%w: samples %d must be positive", ErrConfig, c.Samples)
	}
	return nil
}

// Network creates the perceptron described by the configuration. The output
// layer has a single neuron.
func (c *Config) Network(g *sf64.Graph, rng *nn.RNG, nin int) (*nn.MLP, error) {
	act, err := nn.ParseActivation(c.Activation)
	if err != nil {
		return nil, err
	}
	nouts := append(append(make([]int, 0, len(c.Hidden)+1), c.Hidden...), 1)
	return nn.NewMLP(g, rng, nin, nouts, act), nil
}
