/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"os"
	"time"

	"github.com/godwokenrises/godwoken-sub004/rollup/log"
)

// Janitor is the background housekeeping loop named by SPEC_FULL.md's
// "Cleaner task" supplement: it periodically dumps the pool's current
// mem-block (so a crash never loses more than one period's worth of
// pending items) and deletes snapshot files older than maxAge (spec §6.2).
// History-index pruning (spec §4.1 "Pruning") happens inline as each block
// attaches (see chain.Attach -> store.Store.PruneIfFinalized) and is not
// this loop's concern.
type Janitor struct {
	pool   *Pool
	dir    string
	maxAge time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewJanitor(pool *Pool, dir string, maxAge time.Duration) *Janitor {
	return &Janitor{pool: pool, dir: dir, maxAge: maxAge}
}

// Start runs the janitor loop on interval and returns a function that
// stops it and waits for the current pass to finish.
func (j *Janitor) Start(interval time.Duration) (stop func()) {
	j.stop = make(chan struct{})
	j.done = make(chan struct{})
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				j.runOnce()
			}
		}
	}()
	return func() {
		close(j.stop)
		<-j.done
	}
}

func (j *Janitor) runOnce() {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		log.Warnf("mempool: janitor: mkdir %s: %s", j.dir, err)
		return
	}
	if err := j.pool.Dump(j.dir); err != nil {
		log.Warnf("mempool: janitor: dump: %s", err)
	}
	if n, err := CleanOldSnapshots(j.dir, j.maxAge); err != nil {
		log.Warnf("mempool: janitor: clean: %s", err)
	} else if n > 0 {
		log.Infof("mempool: janitor: removed %d stale snapshot(s)", n)
	}
}
