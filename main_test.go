// Copyright 2019 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestTrainPredict(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "xor.w")
	metrics := filepath.Join(dir, "metrics.prom")
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, "train", "xor", "--epochs", "20", "--runs", "2", "--hidden", "3",
		"--save", weights, "--metrics-file", metrics, "--history", db)
	require.NoError(t, err)
	assert.Contains(t, out, "seed=1 ")
	assert.Contains(t, out, "seed=2 ")
	assert.Contains(t, out, "[1 1] -> ")

	text, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(text), `micrograd_epochs_total{task="xor"} 40`)

	out, err = execute(t, "predict", "xor", "--hidden", "3", "--load", weights)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)

	_, err = execute(t, "predict", "xor", "--load", weights)
	assert.Error(t, err, "the default network has a different shape")

	out, err = execute(t, "history", "xor", "--db", db)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestTrainLinear(t *testing.T) {
	config := filepath.Join(t.TempDir(), "linear.yaml")
	require.NoError(t, os.WriteFile(config, []byte("task: linear\nepochs: 50\nlearning_rate: 0.5\n"), 0o644))
	out, err := execute(t, "train", "--config", config, "--epochs", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "epochs=10 ")
	assert.Contains(t, out, "want ")
}

func TestTrainWithoutHistory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	_, err := execute(t, "train", "xor", "--epochs", "2")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "micrograd.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestErrors(t *testing.T) {
	_, err := execute(t, "train", "mnist")
	assert.Error(t, err)
	_, err = execute(t, "train", "--lr", "-1")
	assert.Error(t, err)
	_, err = execute(t, "train", "--runs", "0")
	assert.Error(t, err)
	_, err = execute(t, "predict", "xor")
	assert.Error(t, err)
	_, err = execute(t, "--log-level", "loud", "train")
	assert.Error(t, err)
	_, err = execute(t, "lfsr", "--start", "1")
	assert.Error(t, err)
	_, err = execute(t, "history", "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
