/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package chain

import "github.com/godwokenrises/godwoken-sub004/types"

// AttachReq/AttachRsp, DetachReq/DetachRsp are the actor mailbox messages
// for Chain's two mutating operations, mirroring the teacher's
// txnpool/proc request/response message pairs.
type AttachReq struct {
	Block  *types.Block
	PostGS *types.GlobalState
}

type AttachRsp struct {
	Err error
}

type DetachReq struct{}

type DetachRsp struct {
	Err error
}

type GetLastValidReq struct{}

type GetLastValidRsp struct {
	Watermark Watermark
	Err       error
}
