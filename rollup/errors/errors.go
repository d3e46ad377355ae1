/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 *
 * godwoken-sub004 is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package errors defines the consensus-facing error kinds (spec §7) and a
// small wrapper type that callers inspect with errors.Is/errors.As instead
// of string matching.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type Kind int

const (
	Unknown Kind = iota
	BadParent
	PrevStateCheckpointMismatch
	PostAccountRootMismatch
	InvalidChallengeTarget
	InvalidChallengeReward
	MerkleProof
	WithdrawalOverdraft
	DepositFakedCKB
	InvalidStatus
	InvalidNonce
	InsufficientBalance
	DuplicatedScriptHash
	StorageCorruption
	CommitFailed
)

func (k Kind) String() string {
	switch k {
	case BadParent:
		return "BadParent"
	case PrevStateCheckpointMismatch:
		return "PrevStateCheckpointMismatch"
	case PostAccountRootMismatch:
		return "PostAccountRootMismatch"
	case InvalidChallengeTarget:
		return "InvalidChallengeTarget"
	case InvalidChallengeReward:
		return "InvalidChallengeReward"
	case MerkleProof:
		return "MerkleProof"
	case WithdrawalOverdraft:
		return "WithdrawalOverdraft"
	case DepositFakedCKB:
		return "DepositFakedCKB"
	case InvalidStatus:
		return "InvalidStatus"
	case InvalidNonce:
		return "InvalidNonce"
	case InsufficientBalance:
		return "InsufficientBalance"
	case DuplicatedScriptHash:
		return "DuplicatedScriptHash"
	case StorageCorruption:
		return "StorageCorruption"
	case CommitFailed:
		return "CommitFailed"
	default:
		return "Unknown"
	}
}

// Err is the error type surfaced across package boundaries in this node. It
// carries a Kind so callers can branch with errors.As, plus an optional
// wrapped cause.
type Err struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Err) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
}

func (e *Err) Unwrap() error { return e.Cause }

// New builds an Err of the given kind, formatting msg like fmt.Sprintf.
func New(kind Kind, format string, args ...interface{}) *Err {
	return &Err{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Err {
	return &Err{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Fatal wraps a CommitFailed-class error with a stack trace: the process is
// expected to crash shortly after this is logged, so the trace is the only
// chance to diagnose it post-mortem.
func Fatal(cause error, format string, args ...interface{}) *Err {
	return &Err{Kind: CommitFailed, Msg: fmt.Sprintf(format, args...), Cause: pkgerrors.WithStack(cause)}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Err
	for err != nil {
		if as, ok := err.(*Err); ok {
			e = as
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		break
	}
	return false
}
