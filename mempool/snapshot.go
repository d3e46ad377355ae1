/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/types"
)

const snapshotPrefix = "mem_block_timestamp_"

const (
	recordDeposit byte = iota
	recordWithdrawal
	recordTx
)

// Dump writes the pool's currently queued (not yet applied into a
// submitted block) items to dir under a filename ordered by wall-clock
// time, so a later restart can find the newest snapshot by suffix (spec
// §4.3 "Restart recovery" — "mem_block_timestamp_<ms>").
func (p *Pool) Dump(dir string) error {
	p.mu.Lock()
	deposits := append([]*types.DepositRequest(nil), p.depositQ.items...)
	withdrawals := make([]*types.WithdrawalRequest, len(p.withdrawals.items))
	for i, it := range p.withdrawals.items {
		withdrawals[i] = it.w
	}
	txs := make([]*types.L2Transaction, len(p.txs.items))
	for i, it := range p.txs.items {
		txs[i] = it.tx
	}
	p.mu.Unlock()

	var buf []byte
	for _, d := range deposits {
		buf = appendRecord(buf, recordDeposit, store.EncodeDepositRequest(d))
	}
	for _, w := range withdrawals {
		buf = appendRecord(buf, recordWithdrawal, store.EncodeWithdrawalRequest(w))
	}
	for _, tx := range txs {
		buf = appendRecord(buf, recordTx, store.EncodeL2Transaction(tx))
	}

	name := filepath.Join(dir, snapshotPrefix+strconv.FormatInt(time.Now().UnixMilli(), 10))
	return os.WriteFile(name, buf, 0o644)
}

func appendRecord(buf []byte, tag byte, payload []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, tag)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)
	return buf
}

// Restore loads the newest snapshot under dir (ignoring files older than
// maxAge) and re-admits every item against the pool's current live state,
// silently discarding anything that no longer verifies (spec §4.3 "Restart
// recovery... items are re-verified against current state; stale ones are
// discarded").
func (p *Pool) Restore(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return 0, nil
	}
	sort.Slice(names, func(i, j int) bool { return snapshotTime(names[i]) > snapshotTime(names[j]) })
	latest := names[0]
	if maxAge > 0 && time.Since(time.UnixMilli(snapshotTime(latest))) > maxAge {
		return 0, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, latest))
	if err != nil {
		return 0, err
	}

	restored := 0
	off := 0
	for off < len(data) {
		if off+5 > len(data) {
			return restored, rerrors.New(rerrors.StorageCorruption, "mempool: truncated snapshot record header")
		}
		tag := data[off]
		n := binary.BigEndian.Uint32(data[off+1 : off+5])
		off += 5
		if off+int(n) > len(data) {
			return restored, rerrors.New(rerrors.StorageCorruption, "mempool: truncated snapshot record body")
		}
		payload := data[off : off+int(n)]
		off += int(n)

		var restoreErr error
		switch tag {
		case recordDeposit:
			d, err := store.DecodeDepositRequest(payload)
			if err != nil {
				return restored, err
			}
			restoreErr = p.admitAndQueueDeposit(d)
		case recordWithdrawal:
			w, err := store.DecodeWithdrawalRequest(payload)
			if err != nil {
				return restored, err
			}
			_, restoreErr = p.SubmitWithdrawal(w)
		case recordTx:
			tx, err := store.DecodeL2Transaction(payload)
			if err != nil {
				return restored, err
			}
			_, restoreErr = p.SubmitTransaction(tx)
		default:
			return restored, rerrors.New(rerrors.StorageCorruption, "mempool: unknown snapshot record tag %d", tag)
		}
		if restoreErr != nil {
			log.Infof("mempool: restore: discarding stale item: %v", restoreErr)
			continue
		}
		restored++
	}
	return restored, nil
}

func snapshotTime(name string) int64 {
	ms, _ := strconv.ParseInt(strings.TrimPrefix(name, snapshotPrefix), 10, 64)
	return ms
}

// CleanOldSnapshots deletes every dumped mem-block file under dir older
// than maxAge (spec §6.2 "files older than one hour are eligible for
// deletion"), keeping the most recent file regardless of age so a crash
// right after cleanup never leaves the directory empty.
func CleanOldSnapshots(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= 1 {
		return 0, nil
	}
	sort.Slice(names, func(i, j int) bool { return snapshotTime(names[i]) > snapshotTime(names[j]) })

	deleted := 0
	cutoff := time.Now().Add(-maxAge)
	for _, name := range names[1:] {
		if time.UnixMilli(snapshotTime(name)).After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
