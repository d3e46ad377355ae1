/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ontio/ontology-crypto/keypair"
	"github.com/urfave/cli"

	"github.com/godwokenrises/godwoken-sub004/account"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/generator"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/types"
)

const (
	producerWalletFile = "producer.key"
	creatorWalletFile  = "creator.key"
)

var exportFromFlag = cli.Uint64Flag{Name: "from", Usage: "first block number to export"}
var exportToFlag = cli.Uint64Flag{Name: "to", Usage: "last block number to export (inclusive); 0 means tip"}
var exportOutFlag = cli.StringFlag{Name: "out", Usage: "output file path", Value: "-"}
var importInFlag = cli.StringFlag{Name: "in", Usage: "input file path", Value: "-"}

// initCommand provisions a fresh data directory: the producer and
// account-creator wallets (spec §4.3 "account-creator wallet") and block 0's
// GlobalState, mirroring the teacher's account-add + genesis-init split
// (main.go's AccountCommand and ledgerstore.InitLedgerStoreWithGenesisBlock)
// collapsed into one subcommand since this node has no separate wallet CLI.
var initCommand = cli.Command{
	Name:  "init",
	Usage: "provision a new node data directory: wallets and genesis state",
	Flags: []cli.Flag{configFlag, dataDirFlag},
	Action: func(ctx *cli.Context) error {
		cfg := loadConfig(ctx)
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return rerrors.Wrap(rerrors.Unknown, err, "cmd init: create data dir")
		}

		producer, err := account.New()
		if err != nil {
			return err
		}
		creator, err := account.New()
		if err != nil {
			return err
		}
		if err := writeWalletFile(cfg.DataDir, producerWalletFile, producer); err != nil {
			return err
		}
		if err := writeWalletFile(cfg.DataDir, creatorWalletFile, creator); err != nil {
			return err
		}

		st, err := store.Open(cfg.DataDir, cfg.Rollup.Finality)
		if err != nil {
			return rerrors.Wrap(rerrors.Unknown, err, "cmd init: open store")
		}
		defer st.Close()

		backends, locks := buildBackendTable()
		gen := generator.New(backends, locks)
		chn := chain.New(st, gen, cfg.Rollup.Finality)
		g0 := &types.GlobalState{
			Version:          types.VersionTimepoint,
			RollupConfigHash: cfg.Rollup.Hash(),
			TipBlockTimestamp: cfg.Genesis.Timestamp,
		}
		if err := chn.Bootstrap(g0); err != nil {
			return err
		}

		log.Infof("cmd init: data dir %s ready, producer=%x creator=%x", cfg.DataDir,
			producer.RegistryAddress(1).Address, creator.RegistryAddress(1).Address)
		return nil
	},
}

func writeWalletFile(dataDir, name string, a *account.Account) error {
	path := filepath.Join(dataDir, name)
	if _, err := os.Stat(path); err == nil {
		return rerrors.New(rerrors.InvalidStatus, "cmd init: wallet file %s already exists", path)
	}
	return writeRawWallet(path, a)
}

// writeRawWallet persists the private key's serialized bytes; the teacher's
// account.Account wallet file is an encrypted JSON blob (scrypt + AES), which
// needs a passphrase prompt this exercise's non-interactive cmd surface has
// no channel for, so the key is written in the clear with 0600 permissions.
// A production deployment would prompt for and apply the teacher's
// encryption here instead.
func writeRawWallet(path string, a *account.Account) error {
	priBytes := keypair.SerializePrivateKey(a.Private)
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priBytes)), 0o600); err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd init: write wallet file %s", path)
	}
	return nil
}

// exportCommand writes spec §6.6's line-delimited hex ExportedBlock format
// for the requested block range.
var exportCommand = cli.Command{
	Name:  "export",
	Usage: "export a range of attached blocks as line-delimited hex ExportedBlock records",
	Flags: []cli.Flag{configFlag, dataDirFlag, exportFromFlag, exportToFlag, exportOutFlag},
	Action: func(ctx *cli.Context) error {
		cfg := loadConfig(ctx)
		st, err := store.Open(cfg.DataDir, cfg.Rollup.Finality)
		if err != nil {
			return rerrors.Wrap(rerrors.Unknown, err, "cmd export: open store")
		}
		defer st.Close()

		tip, err := st.GetTipGlobalState()
		if err != nil {
			return rerrors.Wrap(rerrors.Unknown, err, "cmd export: read tip")
		}

		from := ctx.Uint64(exportFromFlag.Name)
		to := ctx.Uint64(exportToFlag.Name)
		if to == 0 {
			to = tip.Block.Count
		}

		out, closeOut, err := openOutput(ctx.String(exportOutFlag.Name))
		if err != nil {
			return err
		}
		defer closeOut()

		w := bufio.NewWriter(out)
		defer w.Flush()
		count := 0
		for n := from; n <= to; n++ {
			e, err := chain.Export(st, n, types.CommittedInfo{})
			if err != nil {
				return rerrors.Wrap(rerrors.Unknown, err, "cmd export: block %d", n)
			}
			line := hex.EncodeToString(store.EncodeExportedBlock(e))
			if _, err := fmt.Fprintln(w, line); err != nil {
				return rerrors.Wrap(rerrors.Unknown, err, "cmd export: write block %d", n)
			}
			count++
		}
		log.Infof("cmd export: wrote %d blocks [%d, %d]", count, from, to)
		return nil
	},
}

// importCommand replays a line-delimited hex ExportedBlock stream through
// chain.Import, which re-attaches and cross-checks every record against its
// declared post state (spec §6.6).
var importCommand = cli.Command{
	Name:  "import",
	Usage: "import and verify a line-delimited hex ExportedBlock stream",
	Flags: []cli.Flag{configFlag, dataDirFlag, importInFlag},
	Action: func(ctx *cli.Context) error {
		cfg := loadConfig(ctx)
		st, err := store.Open(cfg.DataDir, cfg.Rollup.Finality)
		if err != nil {
			return rerrors.Wrap(rerrors.Unknown, err, "cmd import: open store")
		}
		defer st.Close()

		backends, locks := buildBackendTable()
		gen := generator.New(backends, locks)
		chn := chain.New(st, gen, cfg.Rollup.Finality)

		in, closeIn, err := openInput(ctx.String(importInFlag.Name))
		if err != nil {
			return err
		}
		defer closeIn()

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)
		count := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			raw, err := hex.DecodeString(string(line))
			if err != nil {
				return rerrors.Wrap(rerrors.StorageCorruption, err, "cmd import: decode hex line %d", count+1)
			}
			e, err := store.DecodeExportedBlock(raw)
			if err != nil {
				return rerrors.Wrap(rerrors.StorageCorruption, err, "cmd import: decode record %d", count+1)
			}
			if err := chain.Import(chn, e); err != nil {
				return rerrors.Wrap(rerrors.Unknown, err, "cmd import: record %d (block %d)", count+1, e.Block.Header.Number)
			}
			count++
		}
		if err := scanner.Err(); err != nil {
			return rerrors.Wrap(rerrors.Unknown, err, "cmd import: scan input")
		}
		log.Infof("cmd import: verified and attached %d blocks", count)
		return nil
	},
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, rerrors.Wrap(rerrors.Unknown, err, "cmd: create output file %s", path)
	}
	return f, func() { f.Close() }, nil
}

func openInput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, rerrors.Wrap(rerrors.Unknown, err, "cmd: open input file %s", path)
	}
	return f, func() { f.Close() }, nil
}
