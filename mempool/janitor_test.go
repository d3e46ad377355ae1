/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/types"
)

func TestJanitorRunOnceDumpsAndKeepsLatestSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mem_blocks")
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)

	j := NewJanitor(f.pool, dir, time.Hour)
	j.runOnce()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestJanitorRunOnceCleansStaleSnapshotsAfterRepeatedDumps(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mem_blocks")
	f := newPoolFixture(t)

	j := NewJanitor(f.pool, dir, 0)
	j.runOnce()
	time.Sleep(2 * time.Millisecond)
	j.runOnce()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestJanitorStartAndStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mem_blocks")
	f := newPoolFixture(t)

	j := NewJanitor(f.pool, dir, time.Hour)
	stop := j.Start(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
