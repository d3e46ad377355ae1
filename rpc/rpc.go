/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package rpc implements the handler behavior behind spec §6.3's JSON-RPC
// surface. The wire framing (HTTP, JSON-RPC envelope, websocket) is out of
// scope (spec §1 "named interfaces only"); what is grounded here is the
// teacher's http/base/rpc/interfaces.go handler shape: a function taking
// already-decoded params and returning a response map, built with
// responseSuccess/responsePack over a small error-code table.
package rpc

import (
	"encoding/hex"

	"github.com/godwokenrises/godwoken-sub004/account"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/generator"
	"github.com/godwokenrises/godwoken-sub004/mempool"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Code is the small response error-code table, parallel to the teacher's
// http/base/error package.
type Code int64

const (
	CodeSuccess            Code = 0
	CodeInvalidParams      Code = 44001
	CodeUnknownBlock       Code = 44002
	CodeUnknownTransaction Code = 44003
	CodeInternalError      Code = 44004
)

func responseSuccess(result interface{}) map[string]interface{} {
	return map[string]interface{}{"error": CodeSuccess, "desc": "SUCCESS", "result": result}
}

func responsePack(code Code, desc string, result interface{}) map[string]interface{} {
	return map[string]interface{}{"error": code, "desc": desc, "result": result}
}

func fromKind(err error) Code {
	switch {
	case rerrors.Is(err, rerrors.InvalidNonce), rerrors.Is(err, rerrors.InsufficientBalance),
		rerrors.Is(err, rerrors.DuplicatedScriptHash), rerrors.Is(err, rerrors.InvalidChallengeTarget):
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}

// Server wires the mempool, store, generator and chain a node's RPC surface
// reads and writes against (spec §6.3). It holds no transport of its own.
type Server struct {
	pool  *mempool.Pool
	st    *store.Store
	gen   *generator.Generator
	chain *chain.Chain
}

func New(pool *mempool.Pool, st *store.Store, gen *generator.Generator, c *chain.Chain) *Server {
	return &Server{pool: pool, st: st, gen: gen, chain: c}
}

// SubmitL2Transaction implements spec §6.3 submit_l2transaction: admits a
// signed, already-decoded transaction into the mempool and returns its hash.
func (s *Server) SubmitL2Transaction(tx *types.L2Transaction) map[string]interface{} {
	hash, err := s.pool.SubmitTransaction(tx)
	if err != nil {
		return responsePack(fromKind(err), err.Error(), nil)
	}
	return responseSuccess(hash.String())
}

// SubmitWithdrawalRequest implements spec §6.3 submit_withdrawal_request.
func (s *Server) SubmitWithdrawalRequest(w *types.WithdrawalRequest) map[string]interface{} {
	hash, err := s.pool.SubmitWithdrawal(w)
	if err != nil {
		return responsePack(fromKind(err), err.Error(), nil)
	}
	return responseSuccess(hash.String())
}

// ExecuteL2Transaction implements spec §6.3 execute_l2transaction: a
// read-only dry run of an already-admitted-shaped transaction against the
// current tip, returning its run result without touching the mempool or
// chain (grounded on generator.DebugExecute).
func (s *Server) ExecuteL2Transaction(tx *types.L2Transaction) map[string]interface{} {
	tip, err := s.st.GetTipGlobalState()
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	blockInfo := types.BlockInfo{Number: tip.Block.Count}
	rr, err := s.gen.DebugExecute(s.st, tip.Block.Count, blockInfo, tx, tx.CyclesLimit)
	if err != nil {
		return responsePack(fromKind(err), err.Error(), nil)
	}
	return responseSuccess(runResultJSON(rr))
}

// ExecuteRawL2Transaction implements spec §6.3 execute_raw_l2transaction,
// the same dry run but against a caller-supplied block number rather than
// the tip, so a client can replay a transaction as of a past block.
func (s *Server) ExecuteRawL2Transaction(tx *types.L2Transaction, blockNumber uint64) map[string]interface{} {
	blockInfo := types.BlockInfo{Number: blockNumber}
	rr, err := s.gen.DebugExecute(s.st, blockNumber, blockInfo, tx, tx.CyclesLimit)
	if err == kv.ErrNotFound {
		return responsePack(CodeUnknownBlock, "unknown block", nil)
	}
	if err != nil {
		return responsePack(fromKind(err), err.Error(), nil)
	}
	return responseSuccess(runResultJSON(rr))
}

func runResultJSON(rr *types.RunResult) map[string]interface{} {
	return map[string]interface{}{
		"return_data": hex.EncodeToString(rr.ReturnData),
		"exit_code":   rr.ExitCode,
		"cycles_used": rr.CyclesUsed,
	}
}

// GetBalance implements spec §6.3 get_balance against the tip account tree.
func (s *Server) GetBalance(accountID uint32, sudtScriptHash types.Hash) map[string]interface{} {
	tip, err := s.st.GetTipGlobalState()
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	tree := statetree.Live(s.st.DB(), statetree.AccountColumns, tip.Account.Root)
	balance, err := store.GetBalance(tree, accountID, sudtScriptHash)
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	return responseSuccess(balance.String())
}

// GetNonce implements spec §6.3 get_nonce.
func (s *Server) GetNonce(accountID uint32) map[string]interface{} {
	tip, err := s.st.GetTipGlobalState()
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	tree := statetree.Live(s.st.DB(), statetree.AccountColumns, tip.Account.Root)
	nonce, err := store.GetNonce(tree, accountID)
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	return responseSuccess(nonce)
}

// GetScriptHash implements spec §6.3 get_script_hash.
func (s *Server) GetScriptHash(accountID uint32) map[string]interface{} {
	tip, err := s.st.GetTipGlobalState()
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	tree := statetree.Live(s.st.DB(), statetree.AccountColumns, tip.Account.Root)
	hash, err := store.GetScriptHash(tree, accountID)
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	return responseSuccess(hash.String())
}

// GetAccountIDByScriptHash implements spec §6.3 get_account_id_by_script_hash.
func (s *Server) GetAccountIDByScriptHash(scriptHash types.Hash) map[string]interface{} {
	id, ok, err := store.GetAccountIDByScriptHash(s.st, scriptHash)
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	if !ok {
		return responsePack(CodeUnknownTransaction, "no account bound to script hash", nil)
	}
	return responseSuccess(id)
}

// GetScript implements spec §6.3's script lookup, returning the registered
// script by its own hash.
func (s *Server) GetScript(scriptHash types.Hash) map[string]interface{} {
	script, err := store.GetScript(s.st, scriptHash)
	if err != nil {
		return responsePack(CodeUnknownTransaction, err.Error(), nil)
	}
	return responseSuccess(map[string]interface{}{
		"code_hash": script.CodeHash.String(),
		"hash_type": script.HashType,
		"args":      hex.EncodeToString(script.Args),
	})
}

// GetBlockHash implements spec §6.3 get_block_hash: resolves a finalized
// block number to the hash it attached with.
func (s *Server) GetBlockHash(blockNumber uint64) map[string]interface{} {
	hash, err := s.st.GetBlockHashByNumber(blockNumber)
	if err != nil {
		return responsePack(CodeUnknownBlock, err.Error(), nil)
	}
	return responseSuccess(hash.String())
}

// GetTipBlockHash implements spec §6.3 get_tip_block_hash.
func (s *Server) GetTipBlockHash() map[string]interface{} {
	wm, err := s.chain.LastValid()
	if err != nil {
		return responsePack(CodeInternalError, err.Error(), nil)
	}
	return responseSuccess(wm.Hash.String())
}

// GetBlock implements spec §6.3 get_block: returns the stored header for a
// block hash (the full body is not retained past finalization, spec §4.2
// pruning).
func (s *Server) GetBlock(blockHash types.Hash) map[string]interface{} {
	header, err := s.st.GetBlockHeader(blockHash)
	if err != nil {
		return responsePack(CodeUnknownBlock, err.Error(), nil)
	}
	return responseSuccess(headerJSON(header))
}

func headerJSON(h *types.RawHeader) map[string]interface{} {
	return map[string]interface{}{
		"parent_hash":        h.ParentHash.String(),
		"number":             h.Number,
		"producer_address":   hex.EncodeToString(h.ProducerAddress.Address[:]),
		"timestamp":          h.Timestamp,
		"tx_count":           h.TxCount,
		"withdrawal_count":   h.WithdrawalCount,
		"post_account_root":  h.PostAccount.Root.String(),
	}
}

// GetTransactionReceipt implements spec §6.3 get_transaction_receipt.
func (s *Server) GetTransactionReceipt(txHash types.Hash) map[string]interface{} {
	r, err := s.st.GetTxReceipt(txHash)
	if err != nil {
		return responsePack(CodeUnknownTransaction, err.Error(), nil)
	}
	return responseSuccess(map[string]interface{}{
		"tx_hash":         r.TxHash.String(),
		"block_number":    r.BlockNumber,
		"return_data":     hex.EncodeToString(r.ReturnData),
		"exit_code":       r.ExitCode,
		"post_checkpoint": r.PostCheckpoint.String(),
	})
}

// GetWithdrawalReceipt implements the withdrawal analogue of
// get_transaction_receipt (spec §8 scenario 1).
func (s *Server) GetWithdrawalReceipt(withdrawalHash types.Hash) map[string]interface{} {
	r, err := s.st.GetWithdrawalReceipt(withdrawalHash)
	if err != nil {
		return responsePack(CodeUnknownTransaction, err.Error(), nil)
	}
	return responseSuccess(map[string]interface{}{
		"withdrawal_hash": r.WithdrawalHash.String(),
		"block_number":    r.BlockNumber,
		"account_id":      r.AccountID,
		"post_checkpoint": r.PostCheckpoint.String(),
	})
}

// VerifySignature exposes account.Verify as a read-only RPC helper (spec
// §6.3's lock-algorithm verification surface), letting a client check a
// signature before it bothers submitting a transaction or withdrawal.
func VerifySignature(pub []byte, messageHash types.Hash, sig []byte) (bool, error) {
	return account.VerifyRaw(pub, messageHash, sig)
}
