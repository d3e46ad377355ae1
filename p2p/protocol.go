/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package p2p implements spec §6.4's L2 sync protocol: a subscriber names a
// (block_number, block_hash) it already has, and the server either replays
// everything after that point from its buffered window or tells the
// subscriber to come back later. It is deliberately not a transport: dialing
// peers, framing bytes on a socket and retry/backoff are out of scope (see
// spec.md's Overview "Out of scope" list) the same way RPC's HTTP framing
// is — this package only owns the message shapes, the buffered broadcast
// and the streaming wire codec that sit behind that transport.
//
// The interface shape is grounded on the teacher's p2pserver/net/protocol.P2P
// (Xmit/Send/GetMsgChan) collapsed down to the one thing this node's sync
// layer actually needs: a fan-out broadcast with a bounded replay window.
package p2p

import "github.com/godwokenrises/godwoken-sub004/types"

// SyncRequest is P2PSyncRequest from spec §6.4.
type SyncRequest struct {
	BlockNumber uint64
	BlockHash   types.Hash
}

// ResponseKind is the server's immediate reply to a SyncRequest.
type ResponseKind byte

const (
	// Found means the requested point is inside the buffered window; a
	// BlockSync stream starting immediately after it follows.
	Found ResponseKind = iota + 1
	// TryAgain means the requested point fell out of the buffer_capacity
	// window; the subscriber must resubscribe once it has caught up some
	// other way (spec §5 "Backpressure").
	TryAgain
)

// Kind discriminates the BlockSync union (spec §6.4: "LocalBlock |
// NextMemBlock | PushTransaction | Submitted | Confirmed | Revert").
type Kind byte

const (
	KindLocalBlock Kind = iota + 1
	KindNextMemBlock
	KindPushTransaction
	KindSubmitted
	KindConfirmed
	KindRevert
)

func (k Kind) String() string {
	switch k {
	case KindLocalBlock:
		return "LocalBlock"
	case KindNextMemBlock:
		return "NextMemBlock"
	case KindPushTransaction:
		return "PushTransaction"
	case KindSubmitted:
		return "Submitted"
	case KindConfirmed:
		return "Confirmed"
	case KindRevert:
		return "Revert"
	default:
		return "Unknown"
	}
}

// Message is one entry in a BlockSync stream. Exactly one payload field is
// populated, selected by Kind; keeping it a flat struct rather than an
// interface lets Broadcaster buffer values without an allocation per
// variant and keeps the wire codec in pb.go a single switch.
type Message struct {
	Kind Kind

	// KindLocalBlock: a block this node just attached locally.
	LocalBlock *types.Block

	// KindNextMemBlock: the mem-block the producer just opened, so
	// followers can start speculatively executing against it.
	MemBlock *types.MemBlock

	// KindPushTransaction: a transaction newly admitted to the mempool.
	Transaction *types.L2Transaction

	// KindSubmitted / KindConfirmed: a block's submission transaction
	// reached the stage named by Kind.
	BlockNumber   uint64
	BlockHash     types.Hash
	CommittedInfo types.CommittedInfo

	// KindRevert: local state unwound back to RevertToNumber (spec §4.4).
	RevertToNumber uint64
	RevertToHash   types.Hash
}

func LocalBlockMessage(b *types.Block) *Message {
	return &Message{Kind: KindLocalBlock, LocalBlock: b}
}

func NextMemBlockMessage(m *types.MemBlock) *Message {
	return &Message{Kind: KindNextMemBlock, MemBlock: m}
}

func PushTransactionMessage(tx *types.L2Transaction) *Message {
	return &Message{Kind: KindPushTransaction, Transaction: tx}
}

func SubmittedMessage(number uint64, hash types.Hash, info types.CommittedInfo) *Message {
	return &Message{Kind: KindSubmitted, BlockNumber: number, BlockHash: hash, CommittedInfo: info}
}

func ConfirmedMessage(number uint64, hash types.Hash, info types.CommittedInfo) *Message {
	return &Message{Kind: KindConfirmed, BlockNumber: number, BlockHash: hash, CommittedInfo: info}
}

func RevertMessage(toNumber uint64, toHash types.Hash) *Message {
	return &Message{Kind: KindRevert, RevertToNumber: toNumber, RevertToHash: toHash}
}
