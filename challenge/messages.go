/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package challenge

import "github.com/godwokenrises/godwoken-sub004/types"

type EnterChallengeReq struct {
	Cell       Cell
	BlockProof types.SMTBranchProof
}

type EnterChallengeRsp struct {
	GlobalState *types.GlobalState
	Err         error
}

type CancelChallengeReq struct {
	BurnedCapacity uint64
}

type CancelChallengeRsp struct {
	GlobalState *types.GlobalState
	Err         error
}

type RevertRangeReq struct {
	Headers []*types.RawHeader
}

type RevertRangeRsp struct {
	GlobalState *types.GlobalState
	Err         error
}
