// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package train fits perceptrons to small datasets with gradient descent.
//
// Each run owns one sf64.Graph. The parameters are created first and every
// epoch truncates the graph back to them, so memory stays flat no matter how
// many epochs are run. Runs with different seeds share nothing and RunSeeds
// trains them concurrently.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pointlander/micrograd/nn"
	"github.com/pointlander/micrograd/optim"
	"github.com/pointlander/micrograd/sf64"
)

// ErrDiverged is a loss that is no longer finite
var ErrDiverged = errors.New("train: loss diverged")

// Option configures a Trainer
type Option func(*Trainer)

// WithLogger sets the logger, slog.Default() is used otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger
	}
}

// WithMetrics records training metrics
func WithMetrics(metrics *Metrics) Option {
	return func(t *Trainer) {
		t.metrics = metrics
	}
}

// Trainer trains a perceptron
type Trainer struct {
	config  Config
	loss    nn.Loss
	logger  *slog.Logger
	metrics *Metrics
}

// New creates a trainer for a valid configuration
func New(config Config, opts ...Option) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	loss, err := nn.ParseLoss(config.Loss)
	if err != nil {
		return nil, err
	}
	t := &Trainer{
		config: config,
		loss:   loss,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Result is the outcome of a run
type Result struct {
	Run  uuid.UUID
	Seed uint32
	// Epochs is the number of epochs that were run
	Epochs int
	// Loss is the loss of the last forward pass
	Loss float64
	// Predictions are the outputs of the trained perceptron for each input
	Predictions []float64
	MLP         *nn.MLP
}

// Checkpoint describes the result for nn.Set.Save
func (r *Result) Checkpoint() nn.Checkpoint {
	return nn.Checkpoint{
		Cost:  r.Loss,
		Epoch: r.Epochs,
		Run:   r.Run,
	}
}

// Save saves the parameters of the trained perceptron
func (r *Result) Save(file string) error {
	set := r.MLP.Set()
	if err := set.Save(file, r.Checkpoint()); err != nil {
		return fmt.Errorf("save %s: %w", file, err)
	}
	return nil
}

// Run trains a new perceptron on data
func (t *Trainer) Run(ctx context.Context, data *Dataset) (*Result, error) {
	if len(data.Inputs) == 0 {
		return nil, fmt.Errorf("train: %s: %w", data.Name, nn.ErrEmpty)
	}
	if len(data.Inputs) != len(data.Targets) {
		return nil, fmt.Errorf("train: %s: %w", data.Name, nn.ErrLength)
	}

	g := sf64.NewGraph()
	mlp, err := t.config.Network(g, nn.NewRNG(t.config.Seed), len(data.Inputs[0]))
	if err != nil {
		return nil, err
	}
	sgd, err := optim.NewSGD(mlp.Parameters(), optim.Config{
		LR:       t.config.LR,
		Momentum: t.config.Momentum,
	})
	if err != nil {
		return nil, err
	}
	mark := g.Len()

	result := &Result{
		Run:  uuid.New(),
		Seed: t.config.Seed,
		MLP:  mlp,
	}
	logger := t.logger.With(
		slog.String("run_id", result.Run.String()),
		slog.String("task", data.Name),
		slog.Uint64("seed", uint64(t.config.Seed)),
	)
	logger.Info("training started",
		slog.Int("parameters", mark),
		slog.Int("samples", len(data.Inputs)),
		slog.Int("epochs", t.config.Epochs),
	)
	seed := strconv.FormatUint(uint64(t.config.Seed), 10)

	start := time.Now()
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("train: epoch %d: %w", epoch, err)
		}
		g.Truncate(mark)

		preds := make([]sf64.V, len(data.Inputs))
		for i, x := range data.Inputs {
			preds[i] = mlp.Forward(nn.Inputs(g, x))[0]
		}
		loss, err := t.loss(data.Targets, preds)
		if err != nil {
			return nil, fmt.Errorf("train: epoch %d: %w", epoch, err)
		}

		begin := time.Now()
		if err := loss.Backward(); err != nil {
			return nil, fmt.Errorf("train: epoch %d: %w", epoch, err)
		}
		cost := loss.Data()
		if t.metrics != nil {
			t.metrics.Backward.Observe(time.Since(begin).Seconds())
			t.metrics.Nodes.Set(float64(g.Len()))
			t.metrics.Loss.WithLabelValues(seed).Set(cost)
			t.metrics.Epochs.WithLabelValues(data.Name).Inc()
		}
		if math.IsNaN(cost) || math.IsInf(cost, 0) {
			return nil, fmt.Errorf("%w: epoch %d: loss %g", ErrDiverged, epoch, cost)
		}
		result.Epochs, result.Loss = epoch+1, cost

		if every := t.config.LogEvery; every > 0 && epoch%every == 0 {
			logger.Debug("epoch",
				slog.Int("epoch", epoch),
				slog.Float64("loss", cost),
				slog.Int("nodes", g.Len()),
			)
		}
		if cost < t.config.Target {
			break
		}
		sgd.Step()
	}
	g.Truncate(mark)

	result.Predictions = make([]float64, len(data.Inputs))
	for i, x := range data.Inputs {
		result.Predictions[i] = mlp.Predict(x)[0]
	}
	logger.Info("training finished",
		slog.Int("epochs", result.Epochs),
		slog.Float64("loss", result.Loss),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// RunSeeds trains one perceptron per seed concurrently. The results are in
// the order of the seeds. The first error cancels the other runs.
func RunSeeds(ctx context.Context, config Config, data *Dataset, seeds []uint32, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	for i, seed := range seeds {
		c := config
		c.Seed = seed
		trainer, err := New(c, opts...)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			result, err := trainer.Run(ctx, data)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Best returns the result with the lowest loss
func Best(results []*Result) *Result {
	var best *Result
	for _, r := range results {
		if r != nil && (best == nil || r.Loss < best.Loss) {
			best = r
		}
	}
	return best
}
