/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package sync implements the base-chain poll loop of spec §4.6: it
// dispatches confirmed L1Actions into package chain's attach/detach and
// package challenge's status machine, and bumps a liveness tick the
// supervisory layer watches. The base-chain client's own HTTP wire format
// is out of scope (spec §1) — this package only depends on the narrow
// L1Client capability interface below, grounded on the teacher's
// p2pserver/net/protocol.P2P capability-interface-over-a-transport shape.
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/godwokenrises/godwoken-sub004/challenge"
	"github.com/godwokenrises/godwoken-sub004/chain"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// ActionContext discriminates what an L1Action represents (spec §4.6
// "context is one of SubmitBlock, Challenge, CancelChallenge, Revert").
type ActionContext interface{ isActionContext() }

type SubmitBlockContext struct {
	Block           *types.Block
	PostGlobalState *types.GlobalState
}

type ChallengeContext struct {
	Cell       challenge.Cell
	BlockProof types.SMTBranchProof
}

type CancelChallengeContext struct {
	BurnedCapacity uint64
}

type RevertContext struct {
	Headers []*types.RawHeader
}

func (SubmitBlockContext) isActionContext()     {}
func (ChallengeContext) isActionContext()       {}
func (CancelChallengeContext) isActionContext() {}
func (RevertContext) isActionContext()          {}

// CommittedInfo locates the L1 transaction an action was observed in.
type CommittedInfo struct {
	L1BlockNumber uint64
	TxIndex       uint32
	TxHash        types.Hash
}

// L1Action is a single confirmed base-chain transaction that advances
// rollup state (spec §4.6).
type L1Action struct {
	PrevGlobalState *types.GlobalState
	CommittedInfo   CommittedInfo
	Context         ActionContext
}

// L1Client is the capability the driver needs from the base-chain client;
// its wire format is an external collaborator (spec §1 "named interfaces
// only").
type L1Client interface {
	// PollActions returns, in base-chain order, every new confirmed action
	// carrying the rollup type script after afterL1Block.
	PollActions(ctx context.Context, afterL1Block uint64) ([]*L1Action, error)
	// SubmissionTxPresent reports whether blockNumber's submission tx is
	// still present on the base chain's current view (spec §4.2 "L1 reorg
	// recovery").
	SubmissionTxPresent(ctx context.Context, blockNumber uint64) (bool, error)
}

const (
	defaultPollInterval = 3 * time.Second
	defaultMinBackoff   = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
)

// Driver polls the base chain and dispatches confirmed actions (spec §4.6).
type Driver struct {
	client    L1Client
	chain     *chain.Chain
	challenge *challenge.Protocol

	pollInterval time.Duration
	minBackoff   time.Duration
	maxBackoff   time.Duration

	lastTick int64 // unix nanos, atomic
}

func New(client L1Client, c *chain.Chain, ch *challenge.Protocol) *Driver {
	return &Driver{
		client:       client,
		chain:        c,
		challenge:    ch,
		pollInterval: defaultPollInterval,
		minBackoff:   defaultMinBackoff,
		maxBackoff:   defaultMaxBackoff,
	}
}

// LastTick reports when the driver last successfully processed an action;
// the supervisory layer aborts the process if this stalls (spec §4.6
// "watchdog timestamp").
func (d *Driver) LastTick() time.Time {
	return time.Unix(0, atomic.LoadInt64(&d.lastTick))
}

func (d *Driver) bumpTick() {
	atomic.StoreInt64(&d.lastTick, time.Now().UnixNano())
}

// Run polls indefinitely until ctx is cancelled, applying exponential
// backoff to PollActions failures (spec §5 "suspends... on each retry
// backoff").
func (d *Driver) Run(ctx context.Context, startAfterL1Block uint64) error {
	d.bumpTick()
	afterL1Block := startAfterL1Block
	backoff := d.minBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		actions, err := d.client.PollActions(ctx, afterL1Block)
		if err != nil {
			log.Warnf("sync: poll actions: %v (retry in %s)", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff *= 2
			if backoff > d.maxBackoff {
				backoff = d.maxBackoff
			}
			continue
		}
		backoff = d.minBackoff

		for _, a := range actions {
			if err := d.dispatch(ctx, a); err != nil {
				log.Errorf("sync: dispatch action at l1 block %d: %v", a.CommittedInfo.L1BlockNumber, err)
				return err
			}
			afterL1Block = a.CommittedInfo.L1BlockNumber
			d.bumpTick()
		}

		if !sleep(ctx, d.pollInterval) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// dispatch applies one L1Action (spec §4.6 "On each action the driver...").
func (d *Driver) dispatch(ctx context.Context, a *L1Action) error {
	switch c := a.Context.(type) {
	case SubmitBlockContext:
		err := d.chain.Attach(c.Block, c.PostGlobalState)
		if err != nil && rerrors.Is(err, rerrors.BadParent) {
			log.Warnf("sync: unexpected parent at block %d, entering reorg recovery", c.Block.Header.Number)
			if rerr := d.recoverReorg(ctx); rerr != nil {
				return rerr
			}
			return d.chain.Attach(c.Block, c.PostGlobalState)
		}
		if err != nil {
			return err
		}
		return d.chain.MarkConfirmed(c.Block.Header.Number, c.Block.Hash())

	case ChallengeContext:
		_, err := d.challenge.EnterChallenge(c.Cell, c.BlockProof)
		return err

	case CancelChallengeContext:
		_, err := d.challenge.CancelChallenge(c.BurnedCapacity)
		return err

	case RevertContext:
		_, err := d.challenge.RevertRange(d.chain, c.Headers)
		if err != nil {
			return err
		}
		return d.recoverReorg(ctx)

	default:
		return rerrors.New(rerrors.Unknown, "sync: unknown L1Action context %T", a.Context)
	}
}

// recoverReorg walks last_confirmed downward until a submission tx is still
// present, detaching every block above that point (spec §4.2 "L1 reorg
// recovery").
func (d *Driver) recoverReorg(ctx context.Context) error {
	return d.chain.Reorg(func(blockNumber uint64) (bool, error) {
		return d.client.SubmissionTxPresent(ctx, blockNumber)
	})
}
