/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"reflect"

	"github.com/ontio/ontology-eventbus/actor"

	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// DebugExecuteReq/Rsp let the RPC layer run debug_l2transaction through the
// actor mailbox instead of calling into the generator directly, the same
// boundary the teacher crosses for every ledger query (spec §5 "actors are
// the only cross-package call surface for consensus-relevant work").
type DebugExecuteReq struct {
	BlockNumber uint64
	BlockInfo   types.BlockInfo
	Tx          *types.L2Transaction
	CyclesLimit uint64
}

type DebugExecuteRsp struct {
	Result *types.RunResult
	Err    error
}

// Actor wraps a Generator plus the store it dry-runs against.
type Actor struct {
	gen *Generator
	st  *store.Store
}

func NewActor(gen *Generator, st *store.Store) (*actor.PID, error) {
	props := actor.FromProducer(func() actor.Actor {
		return &Actor{gen: gen, st: st}
	})
	return actor.SpawnNamed(props, "generator")
}

func (a *Actor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Infof("generator actor started")
	case *actor.Stopping:
		log.Infof("generator actor stopping")
	case *DebugExecuteReq:
		rr, err := a.gen.DebugExecute(a.st, msg.BlockNumber, msg.BlockInfo, msg.Tx, msg.CyclesLimit)
		context.Sender().Tell(&DebugExecuteRsp{Result: rr, Err: err})
	default:
		log.Infof("generator actor: unknown message %v type %s", msg, reflect.TypeOf(msg))
	}
}
