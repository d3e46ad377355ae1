/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package kv

import "github.com/syndtr/goleveldb/leveldb/storage"

// newMemStorage backs OpenInMemory, used by tests that do not want a temp
// directory.
func newMemStorage() storage.Storage {
	return storage.NewMemStorage()
}
