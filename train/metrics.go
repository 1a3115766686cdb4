// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the training metrics
type Metrics struct {
	// Epochs counts finished epochs by task
	Epochs *prometheus.CounterVec
	// Loss is the latest loss of each seed
	Loss *prometheus.GaugeVec
	// Nodes is the size of the last graph that was differentiated
	Nodes prometheus.Gauge
	// Backward tracks the duration of Backward
	Backward prometheus.Histogram
}

// NewMetrics registers the training metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Epochs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micrograd_epochs_total",
			Help: "Total training epochs by task",
		}, []string{"task"}),
		Loss: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "micrograd_loss",
			Help: "Latest training loss by seed",
		}, []string{"seed"}),
		Nodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "micrograd_graph_nodes",
			Help: "Number of values in the last differentiated graph",
		}),
		Backward: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "micrograd_backward_duration_seconds",
			Help:    "Backward pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1us to ~260ms
		}),
	}
}
