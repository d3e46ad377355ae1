/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package p2p

import (
	"sync"

	"github.com/godwokenrises/godwoken-sub004/types"
)

// subscriberBuffer is how many pending live messages one subscriber channel
// tolerates, on top of its initial replay, before it is dropped (spec §5 "the P2P sync broadcast channel
// drops slow subscribers"). It is independent of buffer_capacity, which
// bounds the server's own replay window.
const subscriberBuffer = 64

type entry struct {
	number uint64
	hash   types.Hash
	msg    *Message
}

// Broadcaster is the server side of spec §6.4: it keeps the last
// buffer_capacity messages so a SyncRequest naming a recent point can be
// answered with Found and a replay, and fans out every new message to live
// subscribers. A subscriber whose channel fills is dropped outright; on its
// next SyncRequest it either lands back inside the window (Found) or
// outside it (TryAgain) depending on how far it fell behind.
type Broadcaster struct {
	capacity int

	mu   sync.Mutex
	ring []entry
	subs map[chan *Message]struct{}
	closed bool
}

func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = 1
	}
	return &Broadcaster{capacity: capacity, subs: make(map[chan *Message]struct{})}
}

// Publish appends msg to the replay window and fans it out to every live
// subscriber, associating it with the (number, hash) a later SyncRequest
// would name to resume from.
func (b *Broadcaster) Publish(number uint64, hash types.Hash, msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.ring = append(b.ring, entry{number: number, hash: hash, msg: msg})
	if len(b.ring) > b.capacity {
		b.ring = b.ring[len(b.ring)-b.capacity:]
	}
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			// slow subscriber: drop it rather than block the publisher
			// (spec §5 backpressure). It learns to resubscribe the next
			// time it sends a SyncRequest and the channel comes back
			// closed/unreadable.
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Subscribe answers one SyncRequest (spec §6.4). A Found response carries
// the live channel to read subsequent BlockSync messages from, already
// seeded with everything buffered strictly after the requested point. A
// TryAgain response means the requested point fell out of the window; the
// returned channel is nil.
func (b *Broadcaster) Subscribe(req SyncRequest) (kind ResponseKind, ch <-chan *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, e := range b.ring {
		if e.number == req.BlockNumber && e.hash == req.BlockHash {
			idx = i
			break
		}
	}
	// block 0 / an empty window both mean "start from the beginning".
	if idx == -1 && !(req.BlockNumber == 0 && req.BlockHash == types.ZeroHash) {
		return TryAgain, nil
	}

	out := make(chan *Message, subscriberBuffer+len(b.ring)-(idx+1))
	for _, e := range b.ring[idx+1:] {
		out <- e.msg
	}
	if !b.closed {
		b.subs[out] = struct{}{}
	}
	return Found, out
}

// Unsubscribe stops delivering to a channel returned by Subscribe. Callers
// that stop reading without calling this would otherwise only be noticed
// (and dropped) on the next Publish.
func (b *Broadcaster) Unsubscribe(ch <-chan *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.subs {
		if c == ch {
			delete(b.subs, c)
			close(c)
			return
		}
	}
}

// PublishLocalBlock, PublishMemBlock, PublishTransaction, PublishSubmitted,
// PublishConfirmed and PublishRevert are thin constructors over Publish,
// one per BlockSync variant (spec §6.4); chain, mempool and sync each only
// need the subset relevant to them and pick it up structurally (a
// *Broadcaster satisfies each package's small Publisher interface without
// either side importing the other's concrete type).
func (b *Broadcaster) PublishLocalBlock(blk *types.Block) {
	b.Publish(blk.Header.Number, blk.Hash(), LocalBlockMessage(blk))
}

func (b *Broadcaster) PublishMemBlock(mb *types.MemBlock) {
	b.Publish(mb.Block.Number, types.ZeroHash, NextMemBlockMessage(mb))
}

func (b *Broadcaster) PublishTransaction(tx *types.L2Transaction) {
	b.Publish(0, tx.Hash(), PushTransactionMessage(tx))
}

func (b *Broadcaster) PublishSubmitted(number uint64, hash types.Hash, info types.CommittedInfo) {
	b.Publish(number, hash, SubmittedMessage(number, hash, info))
}

func (b *Broadcaster) PublishConfirmed(number uint64, hash types.Hash, info types.CommittedInfo) {
	b.Publish(number, hash, ConfirmedMessage(number, hash, info))
}

func (b *Broadcaster) PublishRevert(toNumber uint64, toHash types.Hash) {
	b.Publish(toNumber, toHash, RevertMessage(toNumber, toHash))
}

// Close stops accepting new publishes and closes every live subscriber
// channel, signalling end-of-stream.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
