// Copyright 2019 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pointlander/micrograd/history"
	"github.com/pointlander/micrograd/nn"
	"github.com/pointlander/micrograd/sf64"
	"github.com/pointlander/micrograd/train"
)

type options struct {
	logLevel string
	logJSON  bool
	logger   *slog.Logger

	config      string
	epochs      int
	lr          float64
	momentum    float64
	seed        uint32
	hidden      []int
	activation  string
	loss        string
	target      float64
	runs        int
	save        string
	metricsFile string
	history     string
	db          string
	load        string
	limit       int
	start       uint32
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "micrograd",
		Short:         "Train small perceptrons with scalar reverse mode autodiff",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			handlerOptions := &slog.HandlerOptions{Level: level}
			var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOptions)
			if o.logJSON {
				handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOptions)
			}
			o.logger = slog.New(handler)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&o.logJSON, "log-json", false, "log json instead of text")

	trainCmd := &cobra.Command{
		Use:       "train [xor|linear]",
		Short:     "Train a perceptron on a built in dataset",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{train.TaskXOR, train.TaskLinear},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, o, args)
		},
	}
	flags := trainCmd.Flags()
	flags.StringVar(&o.config, "config", "", "yaml config file")
	flags.IntVar(&o.epochs, "epochs", 0, "number of epochs")
	flags.Float64Var(&o.lr, "lr", 0, "learning rate")
	flags.Float64Var(&o.momentum, "momentum", 0, "momentum")
	flags.Uint32Var(&o.seed, "seed", 1, "seed of the first run")
	flags.IntSliceVar(&o.hidden, "hidden", nil, "sizes of the hidden layers")
	flags.StringVar(&o.activation, "activation", "", "activation (tanh, relu, sigmoid, linear)")
	flags.StringVar(&o.loss, "loss", "", "loss (sse, mse)")
	flags.Float64Var(&o.target, "target", 0, "stop once the loss is below the target")
	flags.IntVar(&o.runs, "runs", 1, "number of concurrent runs with consecutive seeds")
	flags.StringVar(&o.save, "save", "", "save the weights of the best run")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write prometheus metrics to a file")
	flags.StringVar(&o.history, "history", "", "record runs in a sqlite database")

	predictCmd := &cobra.Command{
		Use:       "predict [xor|linear]",
		Short:     "Evaluate saved weights on a built in dataset",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{train.TaskXOR, train.TaskLinear},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, o, args)
		},
	}
	predictCmd.Flags().StringVar(&o.config, "config", "", "yaml config file")
	predictCmd.Flags().IntSliceVar(&o.hidden, "hidden", nil, "sizes of the hidden layers")
	predictCmd.Flags().StringVar(&o.activation, "activation", "", "activation (tanh, relu, sigmoid, linear)")
	predictCmd.Flags().Uint32Var(&o.seed, "seed", 1, "seed the dataset was generated with")
	predictCmd.Flags().StringVar(&o.load, "load", "", "weights saved by train --save")
	_ = predictCmd.MarkFlagRequired("load")

	historyCmd := &cobra.Command{
		Use:   "history [task]",
		Short: "List recorded runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, o, args)
		},
	}
	historyCmd.Flags().StringVar(&o.db, "db", "micrograd.db", "sqlite database")
	historyCmd.Flags().IntVar(&o.limit, "limit", 10, "maximum number of runs")

	lfsrCmd := &cobra.Command{
		Use:   "lfsr",
		Short: "Find a 32 bit LFSR polynomial with a maximum period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.start&0x80000000 == 0 {
				return fmt.Errorf("--start %x must have the top bit set", o.start)
			}
			polynomial, ok := searchLFSR(cmd, o.start)
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%x\n", polynomial)
			}
			return cmd.Context().Err()
		},
	}
	lfsrCmd.Flags().Uint32Var(&o.start, "start", 0x80000000, "first polynomial to try")

	root.AddCommand(trainCmd, predictCmd, historyCmd, lfsrCmd)
	return root
}

// configure builds the configuration of a command from the config file, the task
// argument and the flags that were set
func (o *options) configure(cmd *cobra.Command, args []string) (train.Config, error) {
	task := train.TaskXOR
	if len(args) > 0 {
		task = args[0]
	}
	config := train.DefaultConfig(task)
	if o.config != "" {
		loaded, err := train.LoadConfig(o.config)
		if err != nil {
			return config, err
		}
		if len(args) > 0 && loaded.Task != task {
			return config, fmt.Errorf("%s is a %s config, not %s", o.config, loaded.Task, task)
		}
		config = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("epochs") {
		config.Epochs = o.epochs
	}
	if flags.Changed("lr") {
		config.LR = o.lr
	}
	if flags.Changed("momentum") {
		config.Momentum = o.momentum
	}
	if flags.Changed("seed") {
		config.Seed = o.seed
	}
	if flags.Changed("hidden") {
		config.Hidden = o.hidden
	}
	if flags.Changed("activation") {
		config.Activation = o.activation
	}
	if flags.Changed("loss") {
		config.Loss = o.loss
	}
	if flags.Changed("target") {
		config.Target = o.target
	}
	return config, config.Validate()
}

func runTrain(cmd *cobra.Command, o *options, args []string) error {
	config, err := o.configure(cmd, args)
	if err != nil {
		return err
	}
	if o.runs <= 0 {
		return fmt.Errorf("--runs %d must be positive", o.runs)
	}
	data, err := train.Load(config)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	seeds := make([]uint32, o.runs)
	for i := range seeds {
		seeds[i] = config.Seed + uint32(i)
	}
	results, err := train.RunSeeds(cmd.Context(), config, data, seeds,
		train.WithLogger(o.logger), train.WithMetrics(train.NewMetrics(reg)))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "seed=%d run=%s epochs=%d loss=%g\n", r.Seed, r.Run, r.Epochs, r.Loss)
	}
	best := train.Best(results)
	printPredictions(out, data, best.Predictions)

	if o.save != "" {
		if err := best.Save(o.save); err != nil {
			return err
		}
		o.logger.Info("weights saved", slog.String("file", o.save), slog.String("run_id", best.Run.String()))
	}
	if o.metricsFile != "" {
		if err := prometheus.WriteToTextfile(o.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if o.history != "" {
		store, err := history.Open(cmd.Context(), o.history)
		if err != nil {
			return err
		}
		defer store.Close()
		finished := time.Now()
		for _, r := range results {
			run := history.Run{
				ID:         r.Run,
				Task:       config.Task,
				Seed:       r.Seed,
				Activation: config.Activation,
				Hidden:     formatHidden(config.Hidden),
				Epochs:     r.Epochs,
				Loss:       r.Loss,
				Finished:   finished,
			}
			if r == best {
				run.Checkpoint = o.save
			}
			if err := store.Add(cmd.Context(), run); err != nil {
				return err
			}
		}
	}
	return nil
}

func runPredict(cmd *cobra.Command, o *options, args []string) error {
	config, err := o.configure(cmd, args)
	if err != nil {
		return err
	}
	data, err := train.Load(config)
	if err != nil {
		return err
	}
	g := sf64.NewGraph()
	mlp, err := config.Network(g, nn.NewRNG(config.Seed), len(data.Inputs[0]))
	if err != nil {
		return err
	}
	set := mlp.Set()
	checkpoint, err := set.Open(o.load)
	if err != nil {
		return err
	}
	o.logger.Info("weights loaded",
		slog.String("file", o.load),
		slog.String("run_id", checkpoint.Run.String()),
		slog.Int("epoch", checkpoint.Epoch),
		slog.Float64("cost", checkpoint.Cost),
	)
	predictions := make([]float64, len(data.Inputs))
	for i, x := range data.Inputs {
		predictions[i] = mlp.Predict(x)[0]
	}
	printPredictions(cmd.OutOrStdout(), data, predictions)
	return nil
}

func runHistory(cmd *cobra.Command, o *options, args []string) error {
	task := ""
	if len(args) > 0 {
		task = args[0]
	}
	if _, err := os.Stat(o.db); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	store, err := history.Open(cmd.Context(), o.db)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.List(cmd.Context(), task, o.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, run := range runs {
		fmt.Fprintf(out, "%s %s seed=%d %s hidden=[%s] epochs=%d loss=%g %s\n",
			run.Finished.Format(time.RFC3339), run.Task, run.Seed, run.Activation, run.Hidden,
			run.Epochs, run.Loss, run.ID)
	}
	return nil
}

func printPredictions(out io.Writer, data *train.Dataset, predictions []float64) {
	for i, x := range data.Inputs {
		if data.Normalized() {
			fmt.Fprintf(out, "%v -> %.4f (want %.4f)\n", x, data.Denormalize(predictions[i]), data.Raw[i])
			continue
		}
		class := 0
		if predictions[i] > .5 {
			class = 1
		}
		fmt.Fprintf(out, "%v -> %d (%.4f, want %g)\n", x, class, predictions[i], data.Targets[i])
	}
}

func formatHidden(hidden []int) string {
	sizes := make([]string, len(hidden))
	for i, h := range hidden {
		sizes[i] = strconv.Itoa(h)
	}
	return strings.Join(sizes, ",")
}

// searchLFSR finds the first polynomial from start with a maximal period
func searchLFSR(cmd *cobra.Command, start uint32) (uint32, bool) {
	// https://en.wikipedia.org/wiki/Linear-feedback_shift_register
	// https://users.ece.cmu.edu/~koopman/lfsr/index.html
	count, polynomial := 0, start
	for polynomial != 0 {
		if cmd.Context().Err() != nil {
			return 0, false
		}
		lfsr, period := uint32(1), 0
		for {
			lfsr = (lfsr >> 1) ^ (-(lfsr & 1) & polynomial)
			period++
			if lfsr == 1 {
				break
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v period=%v\n", count, period)
		if period == math.MaxUint32 {
			return polynomial, true
		}
		count++
		polynomial++
	}
	return 0, false
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "micrograd:", err)
		os.Exit(1)
	}
}
