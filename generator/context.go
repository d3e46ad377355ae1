/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package generator implements the deterministic transaction executor of
// spec §4.5: a syscall surface over a mutable state tree, backend dispatch
// by code hash, and gas accounting. It plays the role the teacher's
// smartcontract/service/neovm package plays for NeoVM contracts, generalized
// to the rollup's four backend kinds instead of one bytecode VM.
package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// MaxReturnData bounds set_return_data the way spec §4.5 requires ("capped
// at a fixed maximum").
const MaxReturnData = 8192

// errOutOfCycles is a single shared instance so callers can recognize it
// with errors.Is instead of string matching (there is no dedicated rerrors
// Kind for it: running out of cycles is a generator-local concern, not a
// consensus-checked one).
var errOutOfCycles = rerrors.New(rerrors.Unknown, "generator: out of cycles")

// Context is the per-transaction syscall surface a backend executes
// against. It buffers writes and newly registered scripts/data locally so
// a failed or out-of-cycles transaction's effects can be discarded wholesale
// by the caller without having touched the underlying tree.
type Context struct {
	tree      *statetree.Tree
	store     store.Reader
	blockInfo types.BlockInfo
	tx        *types.L2Transaction
	senderID  uint32

	writeBuf    map[types.Hash]types.Hash
	readSet     map[types.Hash]struct{}
	newScripts  map[types.Hash]*types.Script
	newData     map[types.Hash][]byte
	newBindings map[types.Hash]types.Hash
	logs        []types.LogItem
	returnData  []byte

	cyclesLimit uint64
	cyclesUsed  uint64
}

func newContext(tree *statetree.Tree, r store.Reader, blockInfo types.BlockInfo, tx *types.L2Transaction, senderID uint32, cyclesLimit uint64) *Context {
	return &Context{
		tree: tree, store: r, blockInfo: blockInfo, tx: tx, senderID: senderID,
		writeBuf:    make(map[types.Hash]types.Hash),
		readSet:     make(map[types.Hash]struct{}),
		newScripts:  make(map[types.Hash]*types.Script),
		newData:     make(map[types.Hash][]byte),
		newBindings: make(map[types.Hash]types.Hash),
		cyclesLimit: cyclesLimit,
	}
}

// charge deducts n cycles, returning ExitOutOfCycles once the limit is
// exceeded (spec §4.5 "Gas accounting").
func (c *Context) charge(n uint64) error {
	c.cyclesUsed += n
	if c.cyclesUsed > c.cyclesLimit {
		return errOutOfCycles
	}
	return nil
}

// Store adds key/value to the write set (spec §4.5 "store(key, value)").
func (c *Context) Store(key, value types.Hash) error {
	if err := c.charge(1); err != nil {
		return err
	}
	c.writeBuf[key] = value
	return nil
}

// Load reads key from the write set, falling back to state, and records it
// in the read set for the determinism audit (spec §4.5 "load(key)").
func (c *Context) Load(key types.Hash) (types.Hash, error) {
	if err := c.charge(1); err != nil {
		return types.ZeroHash, err
	}
	c.readSet[key] = struct{}{}
	if v, ok := c.writeBuf[key]; ok {
		return v, nil
	}
	return c.tree.Get(key)
}

// SetReturnData caps and stores the transaction's return payload.
func (c *Context) SetReturnData(data []byte) error {
	if len(data) > MaxReturnData {
		return rerrors.New(rerrors.Unknown, "generator: return data exceeds max %d", MaxReturnData)
	}
	c.returnData = append([]byte(nil), data...)
	return nil
}

func (c *Context) LoadBlockInfo() types.BlockInfo { return c.blockInfo }

func (c *Context) LoadTxContext() *types.L2Transaction { return c.tx }

func (c *Context) SenderID() uint32 { return c.senderID }

func (c *Context) LoadAccountScript(accountID uint32) (*types.Script, error) {
	hash, err := store.GetScriptHash(c.tree, accountID)
	if err != nil {
		return nil, err
	}
	return store.GetScript(c.store, hash)
}

func (c *Context) LoadData(hash types.Hash) ([]byte, error) {
	if d, ok := c.newData[hash]; ok {
		return d, nil
	}
	return store.GetData(c.store, hash)
}

func (c *Context) LoadCode(hash types.Hash) ([]byte, error) { return c.LoadData(hash) }

// Log appends a log item (spec §4.5 "log(service_flag, data)").
func (c *Context) Log(accountID uint32, flag types.LogServiceFlag, data []byte) {
	c.logs = append(c.logs, types.LogItem{AccountID: accountID, ServiceFlag: flag, Data: data})
}

// CreateAccount assigns the next account id to script, rejecting a
// duplicate script hash (spec §4.5 "create_account(script)").
func (c *Context) CreateAccount(count *uint32, script *types.Script) (uint32, error) {
	hash := script.Hash()
	if _, ok, err := store.GetAccountIDByScriptHash(c.store, hash); err != nil {
		return 0, err
	} else if ok {
		return 0, rerrors.New(rerrors.DuplicatedScriptHash, "generator: duplicate script hash on create_account")
	}
	if _, ok := c.newScripts[hash]; ok {
		return 0, rerrors.New(rerrors.DuplicatedScriptHash, "generator: duplicate script hash on create_account")
	}
	id := *count
	c.newScripts[hash] = script
	c.writeBuf[types.ScriptHashKey(id)] = hash
	c.writeBuf[types.NonceKey(id)] = types.ZeroHash
	*count = id + 1
	return id, nil
}

func (c *Context) GetBalance(accountID uint32, sudtScriptHash types.Hash) (types.Amount, error) {
	key := types.BalanceKey(accountID, sudtScriptHash)
	v, err := c.Load(key)
	if err != nil {
		return types.Amount{}, err
	}
	return types.AmountFromBytes32(v), nil
}

func (c *Context) SetBalance(accountID uint32, sudtScriptHash types.Hash, amount types.Amount) error {
	return c.Store(types.BalanceKey(accountID, sudtScriptHash), types.Hash(amount.Bytes32()))
}

func (c *Context) RegisterData(data []byte) types.Hash {
	hash := types.CkbHash(data)
	c.newData[hash] = data
	return hash
}

// BindRegistryAddress binds addr to scriptHash, buffered until the run
// result is applied (spec §4.3 "registry binding"), checked against both
// the buffer and persisted state for a colliding prior binding.
func (c *Context) BindRegistryAddress(addr types.RegistryAddress, scriptHash types.Hash) error {
	key := addr.Key()
	existing, ok, err := c.ResolveRegistryAddress(addr)
	if err != nil {
		return err
	}
	if ok {
		if existing != scriptHash {
			return rerrors.New(rerrors.Unknown, "generator: registry address already bound to a different script hash")
		}
		return nil
	}
	c.newBindings[key] = scriptHash
	return nil
}

func (c *Context) ResolveRegistryAddress(addr types.RegistryAddress) (types.Hash, bool, error) {
	key := addr.Key()
	if h, ok := c.newBindings[key]; ok {
		return h, true, nil
	}
	return store.ResolveRegistryAddressKey(c.store, key)
}

func (c *Context) result(exitCode types.ExitCode) *types.RunResult {
	rr := types.NewRunResult()
	for k, v := range c.writeBuf {
		rr.WriteSet[k] = v
	}
	for h, s := range c.newScripts {
		rr.NewScripts[h] = s
	}
	for h, d := range c.newData {
		rr.NewData[h] = d
	}
	for k, h := range c.newBindings {
		rr.NewRegistryBindings[k] = h
	}
	rr.Logs = c.logs
	rr.ReturnData = c.returnData
	rr.CyclesUsed = c.cyclesUsed
	rr.ExitCode = exitCode
	return rr
}
