// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	now := time.UnixMilli(time.Now().UnixMilli())
	runs := []Run{
		{ID: uuid.New(), Task: "xor", Seed: 1, Activation: "tanh", Hidden: "2", Epochs: 300, Loss: .4, Finished: now},
		{ID: uuid.New(), Task: "xor", Seed: 2, Activation: "tanh", Hidden: "2", Epochs: 120, Loss: .01,
			Checkpoint: "xor.w", Finished: now.Add(time.Second)},
		{ID: uuid.New(), Task: "linear", Seed: 4294967295, Activation: "tanh", Epochs: 1001, Loss: .001,
			Finished: now.Add(2 * time.Second)},
	}
	for _, run := range runs {
		require.NoError(t, store.Add(ctx, run))
	}
	assert.Error(t, store.Add(ctx, runs[0]))

	run, err := store.Get(ctx, runs[2].ID)
	require.NoError(t, err)
	assert.Equal(t, runs[2].Seed, run.Seed)
	assert.True(t, runs[2].Finished.Equal(run.Finished))

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := store.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, runs[2].ID, all[0].ID)

	xor, err := store.List(ctx, "xor", 1)
	require.NoError(t, err)
	require.Len(t, xor, 1)
	assert.Equal(t, runs[1].ID, xor[0].ID)
	assert.Equal(t, "xor.w", xor[0].Checkpoint)

	best, err := store.Best(ctx, "xor")
	require.NoError(t, err)
	assert.Equal(t, runs[1].ID, best.ID)

	_, err = store.Best(ctx, "mnist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(ctx, path)
	require.NoError(t, err)
	run := Run{ID: uuid.New(), Task: "xor", Epochs: 1, Loss: 1, Finished: time.UnixMilli(1000)}
	require.NoError(t, store.Add(ctx, run))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Task, got.Task)
	assert.Equal(t, run.Epochs, got.Epochs)
}
