/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package overlay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/store/kv"
)

func TestStoreReadsThroughToBase(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	require.NoError(t, db.Put(kv.ColMeta, []byte("a"), []byte("base")))

	s := New(db)
	v, err := s.Get(kv.ColMeta, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), v)
}

func TestStoreLocalWriteShadowsBase(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	require.NoError(t, db.Put(kv.ColMeta, []byte("a"), []byte("base")))

	s := New(db)
	s.Put(kv.ColMeta, []byte("a"), []byte("overlay"))

	v, err := s.Get(kv.ColMeta, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("overlay"), v)

	// The durable base is untouched.
	v, err = db.Get(kv.ColMeta, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), v)
}

func TestStoreDeleteShadowsBase(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	require.NoError(t, db.Put(kv.ColMeta, []byte("a"), []byte("base")))

	s := New(db)
	s.Delete(kv.ColMeta, []byte("a"))

	_, err := s.Get(kv.ColMeta, []byte("a"))
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCloneIsIndependentOfParentAndSibling(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	s := New(db)
	s.Put(kv.ColMeta, []byte("k"), []byte("v1"))

	clone := s.Clone()

	// Clone sees the frozen state at clone time.
	v, err := clone.Get(kv.ColMeta, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	// Mutating the original after cloning must not appear in the clone.
	s.Put(kv.ColMeta, []byte("k"), []byte("v2"))
	v, err = clone.Get(kv.ColMeta, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v, "clone must not observe original's post-clone mutation")

	// Mutating the clone after cloning must not appear in the original.
	clone.Put(kv.ColMeta, []byte("k2"), []byte("only-in-clone"))
	_, err = s.Get(kv.ColMeta, []byte("k2"))
	require.ErrorIs(t, err, kv.ErrNotFound, "original must not observe clone's mutation")
}
