/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package proc wraps mempool.Pool in an actor mailbox, the way chain.Actor
// wraps chain.Chain and the teacher's TxPoolServer wraps its pool — every
// submission, reset, and snapshot request serializes through one inbox
// rather than calling the pool's (already mutex-guarded) methods directly
// from arbitrary goroutines.
package proc

import (
	"reflect"

	"github.com/ontio/ontology-eventbus/actor"

	"github.com/godwokenrises/godwoken-sub004/mempool"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/types"
)

type SubmitTransactionReq struct{ Tx *types.L2Transaction }
type SubmitTransactionRsp struct {
	Hash types.Hash
	Err  error
}

type SubmitWithdrawalReq struct{ Withdrawal *types.WithdrawalRequest }
type SubmitWithdrawalRsp struct {
	Hash types.Hash
	Err  error
}

type NewTipReq struct {
	Tip       *types.GlobalState
	BlockInfo types.BlockInfo
}
type NewTipRsp struct{}

type OutputMemBlockReq struct{ Param mempool.OutputParam }
type OutputMemBlockRsp struct {
	MemBlock    *types.MemBlock
	PostAccount types.AccountMerkleState
	Err         error
}

// Actor is the mempool's actor wrapper.
type Actor struct {
	pool *mempool.Pool
}

// NewActor spawns the mempool actor and returns its PID.
func NewActor(p *mempool.Pool) (*actor.PID, error) {
	props := actor.FromProducer(func() actor.Actor {
		return &Actor{pool: p}
	})
	return actor.SpawnNamed(props, "mempool")
}

func (a *Actor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.pool.Start()
		log.Info("mempool actor started")
	case *actor.Stopping:
		a.pool.Stop()
		log.Info("mempool actor stopping")
	case *SubmitTransactionReq:
		hash, err := a.pool.SubmitTransaction(msg.Tx)
		context.Sender().Tell(&SubmitTransactionRsp{Hash: hash, Err: err})
	case *SubmitWithdrawalReq:
		hash, err := a.pool.SubmitWithdrawal(msg.Withdrawal)
		context.Sender().Tell(&SubmitWithdrawalRsp{Hash: hash, Err: err})
	case *NewTipReq:
		a.pool.Reset(msg.Tip, msg.BlockInfo)
		context.Sender().Tell(&NewTipRsp{})
	case *OutputMemBlockReq:
		mb, post, err := a.pool.OutputMemBlock(msg.Param)
		context.Sender().Tell(&OutputMemBlockRsp{MemBlock: mb, PostAccount: post, Err: err})
	default:
		log.Infof("mempool actor: unknown message %v type %s", msg, reflect.TypeOf(msg))
	}
}
