/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package smt implements the sparse Merkle tree described in spec §3 ("SMT
// state") and §4.1 ("SMT store"): a single tree mapping 32-byte keys to
// 32-byte values, zero denoting absence, backed by a two-column physical
// layout (leaves, branches) with a four-case compact branch encoding.
package smt

import (
	"encoding/binary"

	"github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Depth is the number of bits in a key, i.e. the tree height at the root.
const Depth = 256

// zeroHashes[h] is the digest of an entirely empty subtree of height h.
// zeroHashes[0] is the zero value itself.
var zeroHashes [Depth + 1]types.Hash

func init() {
	zeroHashes[0] = types.ZeroHash
	for h := 1; h <= Depth; h++ {
		zeroHashes[h] = nodeHash(h, zeroHashes[h-1], zeroHashes[h-1])
	}
}

func nodeHash(height int, left, right types.Hash) types.Hash {
	// two empty children merge to zero, so an empty tree's root is ZeroHash.
	if left.IsZero() && right.IsZero() {
		return types.ZeroHash
	}
	return types.CkbHash(left[:], right[:], []byte{byte(height), byte(height >> 8)})
}

// LeafDigest is the value committed at height 0 for a given key/value pair.
// Hashing key into the leaf digest (rather than committing the raw value)
// makes every leaf's position self-certifying under a merkle proof.
func LeafDigest(key, value types.Hash) types.Hash {
	if value.IsZero() {
		return types.ZeroHash
	}
	return types.CkbHash(key[:], value[:])
}

// childTag is the one-byte discriminant spec §4.1 describes: whether a
// branch's child is a merge-with-zero subtree or carries an explicit value.
type childTag byte

const (
	tagZero  childTag = 0
	tagValue childTag = 1
)

// branchRecord is the physical encoding of one internal node: two
// (tag, optional hash) pairs plus the height they were written at. Exactly
// the four cases spec §4.1 names are representable: ZZ, ZV, VZ, VV.
type branchRecord struct {
	height     int
	leftTag    childTag
	leftHash   types.Hash
	rightTag   childTag
	rightHash  types.Hash
}

func encodeBranch(b branchRecord) []byte {
	out := make([]byte, 0, 1+1+2*types.HashSize)
	out = append(out, byte(b.leftTag)<<1|byte(b.rightTag))
	out = append(out, byte(b.height), byte(b.height>>8))
	if b.leftTag == tagValue {
		out = append(out, b.leftHash[:]...)
	}
	if b.rightTag == tagValue {
		out = append(out, b.rightHash[:]...)
	}
	return out
}

func decodeBranch(buf []byte) (branchRecord, error) {
	if len(buf) < 3 {
		return branchRecord{}, errors.New(errors.StorageCorruption, "smt: truncated branch record")
	}
	tagByte := buf[0]
	b := branchRecord{
		leftTag:  childTag((tagByte >> 1) & 1),
		rightTag: childTag(tagByte & 1),
		height:   int(buf[1]) | int(buf[2])<<8,
	}
	off := 3
	if b.leftTag == tagValue {
		if len(buf) < off+types.HashSize {
			return branchRecord{}, errors.New(errors.StorageCorruption, "smt: truncated left hash")
		}
		b.leftHash = types.HashFromBytes(buf[off : off+types.HashSize])
		off += types.HashSize
	} else {
		b.leftHash = zeroHashes[b.height-1]
	}
	if b.rightTag == tagValue {
		if len(buf) < off+types.HashSize {
			return branchRecord{}, errors.New(errors.StorageCorruption, "smt: truncated right hash")
		}
		b.rightHash = types.HashFromBytes(buf[off : off+types.HashSize])
	} else {
		b.rightHash = zeroHashes[b.height-1]
	}
	return b, nil
}

func bitAt(key types.Hash, height int) int {
	// height ranges 1..Depth; bit index counted from the most significant
	// bit of the key so traversal starts at the root (height=Depth).
	bitIndex := Depth - height
	byteIdx := bitIndex / 8
	bitIdx := 7 - uint(bitIndex%8)
	return int((key[byteIdx] >> bitIdx) & 1)
}

// Reader is the read capability a Tree needs: either the durable kv.DB
// directly (live reads) or a store/journal.Txn (so a tree being written
// within an attach can see its own not-yet-committed writes).
type Reader interface {
	Get(col kv.Column, key []byte) ([]byte, error)
}

// Writer is the write capability Update stages into: either a kv.WriteBatch
// or a store/journal.Txn.
type Writer interface {
	Put(col kv.Column, key, value []byte)
	Delete(col kv.Column, key []byte)
}

// Tree is a sparse Merkle tree over one (leaves, branches) column pair. The
// same type backs both the account SMT and the block SMT (spec §3), the
// caller picking the column pair.
type Tree struct {
	db          Reader
	leafCol     kv.Column
	branchCol   kv.Column
	root        types.Hash
}

func Open(db Reader, leafCol, branchCol kv.Column, root types.Hash) *Tree {
	return &Tree{db: db, leafCol: leafCol, branchCol: branchCol, root: root}
}

func (t *Tree) Root() types.Hash { return t.root }

func (t *Tree) readBranch(h types.Hash) (branchRecord, error) {
	raw, err := t.db.Get(t.branchCol, h[:])
	if err != nil {
		return branchRecord{}, err
	}
	return decodeBranch(raw)
}

// Get returns the value stored at key, or ZeroHash if absent.
func (t *Tree) Get(key types.Hash) (types.Hash, error) {
	raw, err := t.db.Get(t.leafCol, key[:])
	if err == kv.ErrNotFound {
		return types.ZeroHash, nil
	}
	if err != nil {
		return types.ZeroHash, err
	}
	return types.HashFromBytes(raw), nil
}

// Update writes value at key (ZeroHash deletes it), returning the new root.
// It mutates the tree's in-memory root and stages writes into batch so the
// caller's journal controls when they become durable (spec §4.1 uses this
// from within a store transaction, never directly against the engine).
func (t *Tree) Update(batch Writer, key, value types.Hash) (types.Hash, error) {
	leaf := LeafDigest(key, value)
	newRoot, err := t.updateRecursive(batch, t.root, Depth, key, leaf)
	if err != nil {
		return types.ZeroHash, err
	}
	if value.IsZero() {
		batch.Delete(t.leafCol, key[:])
	} else {
		batch.Put(t.leafCol, key[:], value[:])
	}
	t.root = newRoot
	return newRoot, nil
}

func (t *Tree) updateRecursive(batch Writer, cur types.Hash, height int, key, leaf types.Hash) (types.Hash, error) {
	if height == 0 {
		return leaf, nil
	}
	var left, right types.Hash
	if cur == zeroHashes[height] {
		left, right = zeroHashes[height-1], zeroHashes[height-1]
	} else {
		b, err := t.readBranch(cur)
		if err != nil {
			return types.ZeroHash, err
		}
		left, right = b.leftHash, b.rightHash
	}

	bit := bitAt(key, height)
	var newLeft, newRight types.Hash
	var err error
	if bit == 0 {
		newLeft, err = t.updateRecursive(batch, left, height-1, key, leaf)
		newRight = right
	} else {
		newRight, err = t.updateRecursive(batch, right, height-1, key, leaf)
		newLeft = left
	}
	if err != nil {
		return types.ZeroHash, err
	}

	newHash := nodeHash(height, newLeft, newRight)
	if newHash == zeroHashes[height] {
		return newHash, nil
	}
	rec := branchRecord{height: height}
	if newLeft == zeroHashes[height-1] {
		rec.leftTag = tagZero
	} else {
		rec.leftTag = tagValue
		rec.leftHash = newLeft
	}
	if newRight == zeroHashes[height-1] {
		rec.rightTag = tagZero
	} else {
		rec.rightTag = tagValue
		rec.rightHash = newRight
	}
	batch.Put(t.branchCol, newHash[:], encodeBranch(rec))
	return newHash, nil
}

// MerkleProof returns the sibling hashes on the path from key's leaf to the
// root, ordered root-first (the sibling at height Depth comes first),
// sufficient for Verify.
func (t *Tree) MerkleProof(key types.Hash) (types.SMTBranchProof, error) {
	siblings := make([]byte, 0, Depth*types.HashSize)
	cur := t.root
	for height := Depth; height > 0; height-- {
		var left, right types.Hash
		if cur == zeroHashes[height] {
			left, right = zeroHashes[height-1], zeroHashes[height-1]
		} else {
			b, err := t.readBranch(cur)
			if err != nil {
				return types.SMTBranchProof{}, err
			}
			left, right = b.leftHash, b.rightHash
		}
		bit := bitAt(key, height)
		if bit == 0 {
			siblings = append(siblings, right[:]...)
			cur = left
		} else {
			siblings = append(siblings, left[:]...)
			cur = right
		}
	}
	return types.SMTBranchProof{Proof: siblings}, nil
}

// Verify checks that a single (key, value) leaf is consistent with root
// under proof, without touching storage (spec §3 "verify(root, leaves,
// proof)").
func Verify(root types.Hash, key, value types.Hash, proof types.SMTBranchProof) (bool, error) {
	if len(proof.Proof) != Depth*types.HashSize {
		return false, errors.New(errors.MerkleProof, "smt: malformed proof length %d", len(proof.Proof))
	}
	cur := LeafDigest(key, value)
	for height := 1; height <= Depth; height++ {
		offset := (Depth - height) * types.HashSize
		sibling := types.HashFromBytes(proof.Proof[offset : offset+types.HashSize])
		bit := bitAt(key, height)
		if bit == 0 {
			cur = nodeHash(height, cur, sibling)
		} else {
			cur = nodeHash(height, sibling, cur)
		}
	}
	return cur == root, nil
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
