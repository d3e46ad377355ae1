/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package statetree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

func h(b byte) types.Hash {
	var out types.Hash
	out[31] = b
	return out
}

func TestLiveTreeRejectsWrites(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	tr := Live(db, AccountColumns, types.ZeroHash)
	err := tr.Update(h(1), h(2))
	require.Error(t, err)
}

func TestAttachRecordsHistoryForAccountColumns(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	txn := journal.New(db)
	tr := Attach(txn, AccountColumns, types.ZeroHash, 1)
	require.NoError(t, tr.Update(h(1), h(11)))
	root1 := tr.Root()
	require.NoError(t, txn.Commit())

	got, err := tr.Get(h(1))
	require.NoError(t, err)
	require.Equal(t, h(11), got)

	hist := Historic(db, 1)
	got, err = hist.Get(h(1))
	require.NoError(t, err)
	require.Equal(t, h(11), got)

	require.False(t, root1.IsZero())
}

func TestDetachDoesNotRecordHistory(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	// attach block 1: write key -> 11
	txn1 := journal.New(db)
	tr1 := Attach(txn1, AccountColumns, types.ZeroHash, 1)
	require.NoError(t, tr1.Update(h(1), h(11)))
	root1 := tr1.Root()
	require.NoError(t, txn1.Commit())

	// attach block 2: write key -> 22
	txn2 := journal.New(db)
	tr2 := Attach(txn2, AccountColumns, root1, 2)
	require.NoError(t, tr2.Update(h(1), h(22)))
	require.NoError(t, txn2.Commit())

	// detach block 2: replay key back to its block-1 value, using the live
	// root after block 2 as the starting point.
	txn3 := journal.New(db)
	detach := Detach(txn3, AccountColumns, tr2.Root(), 2)
	require.NoError(t, detach.Update(h(1), h(11)))
	restoredRoot := detach.Root()
	require.NoError(t, txn3.Commit())

	require.Equal(t, root1, restoredRoot, "round-trip: detaching block 2 restores block 1's root")

	// Detach must not have extended the history index at block 2's position
	// beyond what attach(2) wrote — historic(2) still reflects attach's
	// own record, since detach never calls history.Record.
	got, err := Historic(db, 2).Get(h(1))
	require.NoError(t, err)
	require.Equal(t, h(22), got, "historic read reflects attach's record, unaffected by detach")
}

func TestOverlayTreeWritesDoNotTouchJournal(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	mem := newFakeOverlay()
	tr := Overlay(mem, AccountColumns, types.ZeroHash)
	require.NoError(t, tr.Update(h(5), h(50)))

	got, err := tr.Get(h(5))
	require.NoError(t, err)
	require.Equal(t, h(50), got)

	// Nothing was written to the durable db.
	_, err = db.Get(kv.ColAccountSMTLeaf, h(5).Bytes())
	require.ErrorIs(t, err, kv.ErrNotFound)
}

// fakeOverlay is a minimal in-memory ReadWriter for exercising ModeOverlay
// without pulling in the full store/overlay package.
type fakeOverlay struct {
	data map[string][]byte
}

func newFakeOverlay() *fakeOverlay { return &fakeOverlay{data: make(map[string][]byte)} }

func k(col kv.Column, key []byte) string { return string(append([]byte{byte(col)}, key...)) }

func (f *fakeOverlay) Get(col kv.Column, key []byte) ([]byte, error) {
	v, ok := f.data[k(col, key)]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return v, nil
}

func (f *fakeOverlay) Put(col kv.Column, key, value []byte) {
	f.data[k(col, key)] = append([]byte(nil), value...)
}

func (f *fakeOverlay) Delete(col kv.Column, key []byte) {
	delete(f.data, k(col, key))
}
