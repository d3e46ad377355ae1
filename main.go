/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// main.go wires spec.md's subsystems into one process, the way the
// teacher's main.go wires chainmgr/txnpool/p2pserver together: parse flags,
// load config, open the store, construct chain/mempool/challenge/generator,
// spawn their actors, start the sync driver and mempool batcher, then block
// until a signal arrives. Transport framing for RPC/P2P (spec.md §1,
// "named interfaces only") is not dialed up here beyond constructing the
// handler objects themselves.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/godwokenrises/godwoken-sub004/account"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/challenge"
	"github.com/godwokenrises/godwoken-sub004/generator"
	"github.com/godwokenrises/godwoken-sub004/mempool"
	mempoolproc "github.com/godwokenrises/godwoken-sub004/mempool/proc"
	"github.com/godwokenrises/godwoken-sub004/p2p"
	"github.com/godwokenrises/godwoken-sub004/rollup/config"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/rpc"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/sync"
	"github.com/godwokenrises/godwoken-sub004/types"
)

var (
	configFlag = cli.StringFlag{Name: "config", Usage: "path to node TOML config", Value: "./config.toml"}
	dataDirFlag = cli.StringFlag{Name: "datadir", Usage: "override rollup.data_dir"}
	logLevelFlag = cli.IntFlag{Name: "loglevel", Usage: "0=fatal..5=trace", Value: int(log.InfoLog)}
	p2pBufferFlag = cli.IntFlag{Name: "p2p.buffer", Usage: "P2P sync broadcast buffer capacity (spec §6.4)", Value: 256}
)

func setupAPP() *cli.App {
	app := cli.NewApp()
	app.Name = "godwoken-sub004"
	app.Usage = "optimistic-rollup off-chain node"
	app.Version = "0.1.0"
	app.Action = runNode
	app.Commands = []cli.Command{initCommand, exportCommand, importCommand}
	app.Flags = []cli.Flag{configFlag, dataDirFlag, logLevelFlag, p2pBufferFlag}
	app.Before = func(ctx *cli.Context) error {
		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}
	return app
}

func main() {
	if err := setupAPP().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) *config.NodeConfig {
	cfg := config.Default()
	if path := ctx.GlobalString(configFlag.Name); path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := config.Load(path)
			if err != nil {
				log.Fatalf("config: %s", err)
			}
			cfg = loaded
		}
	}
	if dd := ctx.GlobalString(dataDirFlag.Name); dd != "" {
		cfg.DataDir = dd
	}
	return cfg
}

// runNode is the default action: bring up storage, the block lifecycle,
// mempool, challenge protocol, generator host and sync driver, then serve
// until signaled, mirroring the teacher's startOntology/startMainChain
// split but over this node's own subsystems.
func runNode(ctx *cli.Context) error {
	log.InitLog(log.Level(ctx.GlobalInt(logLevelFlag.Name)))
	cfg := loadConfig(ctx)
	log.Infof("godwoken-sub004 starting, data_dir=%s", cfg.DataDir)

	params, err := mempool.NewRollupParams(&cfg.Rollup, cfg.MemPool.Fee)
	if err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: parse rollup config")
	}

	st, err := store.Open(cfg.DataDir, cfg.Rollup.Finality)
	if err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: open store at %s", cfg.DataDir)
	}
	defer st.Close()

	backends, locks := buildBackendTable()
	gen := generator.New(backends, locks)

	chn := chain.New(st, gen, cfg.Rollup.Finality)
	if _, err := chain.NewActor(chn); err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: spawn chain actor")
	}

	chal := challenge.New(st, &cfg.Rollup)
	if _, err := challenge.NewActor(chal, chn); err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: spawn challenge actor")
	}

	producer, creatorAcc, err := loadWallets(cfg.DataDir)
	if err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: load wallets")
	}
	creator := &mempool.AccountCreator{AccountID: 0, Sign: creatorAcc.Sign}

	pool, err := mempool.New(st, gen, backends, locks, params, creator, noopDepositProvider{},
		cfg.MemPool.BatchSize, cfg.MemPool.MaxQueueSize)
	if err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: construct mempool")
	}
	if n, err := pool.Restore(cfg.MemPool.RestoreDir, restoreMaxAge(cfg)); err != nil {
		log.Warnf("mempool: restore failed: %s", err)
	} else if n > 0 {
		log.Infof("mempool: restored %d items from %s", n, cfg.MemPool.RestoreDir)
	}
	pool.Start()
	defer pool.Stop()
	if _, err := mempoolproc.NewActor(pool); err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "cmd: spawn mempool actor")
	}

	server := rpc.New(pool, st, gen, chn)
	_ = server // the RPC transport itself is out of scope (spec.md §1); handlers are ready to be mounted by an external framing layer.

	broadcaster := p2p.NewBroadcaster(ctx.GlobalInt(p2pBufferFlag.Name))
	defer broadcaster.Close()

	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	driver := sync.New(noopL1Client{}, chn, chal)
	go func() {
		if err := driver.Run(syncCtx, 0); err != nil && syncCtx.Err() == nil {
			log.Errorf("sync driver: %s", err)
		}
	}()

	janitor := mempool.NewJanitor(pool, cfg.MemPool.RestoreDir, restoreMaxAge(cfg))
	stopJanitor := janitor.Start(5 * time.Minute)
	defer stopJanitor()

	log.Infof("producer %x ready", producer.RegistryAddress(1).Address)
	waitToExit()
	return nil
}

// devnetCodeHash derives a placeholder backend code hash for local runs;
// a real deployment reads these from the rollup config's genesis scripts
// instead (spec §4.5 "Backend dispatch" names the four backend kinds but
// not their code-hash values, which are deployment parameters).
func devnetCodeHash(label string) types.Hash { return types.CkbHash([]byte(label)) }

// buildBackendTable constructs the generator's fixed {meta, sUDT, EVM-like,
// registry} backend set (spec §4.5 "Backend dispatch") keyed by code hash.
func buildBackendTable() (generator.BackendTable, *generator.AccountLockRegistry) {
	locks := generator.NewAccountLockRegistry()
	locks.Register(devnetCodeHash("eth-eoa-lock"), generator.EthEOAVerifier)
	table := generator.BackendTable{
		devnetCodeHash("meta-contract"):     generator.MetaBackend{},
		devnetCodeHash("sudt"):              generator.SudtBackend{},
		devnetCodeHash("registry-contract"): generator.RegistryBackend{},
		devnetCodeHash("evm-like"):          generator.NewEVMBackend(locks),
	}
	return table, locks
}

func restoreMaxAge(cfg *config.NodeConfig) time.Duration {
	d, err := time.ParseDuration(cfg.MemPool.RestoreMaxAge)
	if err != nil {
		return time.Hour
	}
	return d
}

// loadWallets reads the wallet files `init` wrote to dataDir; a data
// directory that was never initialized falls back to fresh, unsaved
// identities so a bare `runNode` still comes up for local experimentation.
func loadWallets(dataDir string) (producer *account.Account, creator *account.Account, err error) {
	producer, err = loadOrGenerateWallet(filepath.Join(dataDir, producerWalletFile))
	if err != nil {
		return nil, nil, err
	}
	creator, err = loadOrGenerateWallet(filepath.Join(dataDir, creatorWalletFile))
	if err != nil {
		return nil, nil, err
	}
	return producer, creator, nil
}

func loadOrGenerateWallet(path string) (*account.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("wallet file %s not found, using an ephemeral identity (run `init` to persist one)", path)
			return account.New()
		}
		return nil, rerrors.Wrap(rerrors.Unknown, err, "cmd: read wallet file %s", path)
	}
	priBytes, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, rerrors.Wrap(rerrors.StorageCorruption, err, "cmd: decode wallet file %s", path)
	}
	return account.FromPrivateKeyBytes(priBytes)
}

type noopDepositProvider struct{}

func (noopDepositProvider) PendingDeposits() []*types.DepositRequest { return nil }

// noopL1Client is the placeholder sync.L1Client used until a concrete
// base-chain client is wired in; the base-chain HTTP wire format is out of
// scope (spec.md §1 "named interfaces only").
type noopL1Client struct{}

func (noopL1Client) PollActions(_ context.Context, _ uint64) ([]*sync.L1Action, error) {
	return nil, nil
}

func (noopL1Client) SubmissionTxPresent(_ context.Context, _ uint64) (bool, error) {
	return true, nil
}

func waitToExit() {
	exit := make(chan bool, 0)
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sc {
			log.Infof("godwoken-sub004 received exit signal: %v", sig.String())
			close(exit)
			break
		}
	}()
	<-exit
}
