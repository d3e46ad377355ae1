/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package chain

import (
	"reflect"

	"github.com/ontio/ontology-eventbus/actor"

	"github.com/godwokenrises/godwoken-sub004/rollup/log"
)

// Actor serializes every mutation of the chain's watermarks and state
// trees through one mailbox, the way the teacher's ChainManager/TxPoolServer
// serialize ledger/pool mutation through their own actors.
type Actor struct {
	chain *Chain
}

// NewActor spawns the chain actor and returns its PID.
func NewActor(c *Chain) (*actor.PID, error) {
	props := actor.FromProducer(func() actor.Actor {
		return &Actor{chain: c}
	})
	return actor.SpawnNamed(props, "chain")
}

func (a *Actor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Info("chain actor started")
	case *actor.Stopping:
		log.Info("chain actor stopping")
	case *AttachReq:
		err := a.chain.Attach(msg.Block, msg.PostGS)
		context.Sender().Tell(&AttachRsp{Err: err})
	case *DetachReq:
		err := a.chain.Detach()
		context.Sender().Tell(&DetachRsp{Err: err})
	case *GetLastValidReq:
		wm, err := a.chain.LastValid()
		context.Sender().Tell(&GetLastValidRsp{Watermark: wm, Err: err})
	default:
		log.Infof("chain actor: unknown message %v type %s", msg, reflect.TypeOf(msg))
	}
}
