/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package challenge

import (
	"reflect"

	"github.com/ontio/ontology-eventbus/actor"

	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
)

// Actor serializes every status transition through one mailbox, the same
// shape chain.Actor gives Attach/Detach (DESIGN NOTES §9 "Cyclic
// ownership" — identity stays a plain field, the mailbox protects mutation).
type Actor struct {
	protocol *Protocol
	chain    *chain.Chain
}

func NewActor(p *Protocol, c *chain.Chain) (*actor.PID, error) {
	props := actor.FromProducer(func() actor.Actor {
		return &Actor{protocol: p, chain: c}
	})
	return actor.SpawnNamed(props, "challenge")
}

func (a *Actor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Info("challenge actor started")
	case *actor.Stopping:
		log.Info("challenge actor stopping")
	case *EnterChallengeReq:
		gs, err := a.protocol.EnterChallenge(msg.Cell, msg.BlockProof)
		context.Sender().Tell(&EnterChallengeRsp{GlobalState: gs, Err: err})
	case *CancelChallengeReq:
		gs, err := a.protocol.CancelChallenge(msg.BurnedCapacity)
		context.Sender().Tell(&CancelChallengeRsp{GlobalState: gs, Err: err})
	case *RevertRangeReq:
		gs, err := a.protocol.RevertRange(a.chain, msg.Headers)
		context.Sender().Tell(&RevertRangeRsp{GlobalState: gs, Err: err})
	default:
		log.Infof("challenge actor: unknown message %v type %s", msg, reflect.TypeOf(msg))
	}
}
