// Package app wires configuration into the running services shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/config"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/db"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/lock"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/realtime"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/lifecycle"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/matching"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

type Components struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Store       *store.GormStore
	Ledger      *ledger.EthGateway
	Wallets     *wallet.WalletService
	Accounts    *accounts.Service
	Projects    *lifecycle.Service
	Journal     *lifecycle.RedisJournal
	Hub         *realtime.Hub
	Broadcaster *realtime.Broadcaster
}

// openDatabase connects and migrates the configured database.
var openDatabase = func(cfg config.Config) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		closeDB(gdb)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

// Build connects every backing service named in cfg. The caller owns Close.
// On error everything opened so far is closed again.
func Build(ctx context.Context, cfg config.Config, log logger.Logger) (_ *Components, err error) {
	gdb, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			closeDB(gdb)
		}
	}()

	rdb, err := realtime.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err != nil {
			_ = rdb.Close()
		}
	}()

	artifact, err := ledger.LoadArtifact(cfg.LedgerContractArtifact)
	if err != nil {
		return nil, fmt.Errorf("load contract artifact: %w", err)
	}
	gw, err := ledger.Dial(ctx, cfg.LedgerRPCURL, cfg.LedgerChainID, artifact, cfg.LedgerGasLimit, log)
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}

	sealer, err := utils.NewSealer(cfg.CredentialKey)
	if err != nil {
		return nil, err
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.LockBackend == "redis" {
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
	}

	st := store.NewGormStore(gdb)
	wallets := wallet.NewWalletService(st, gw, sealer)
	hub := realtime.NewHub(log)
	broadcaster := realtime.NewBroadcaster(rdb, hub, log)
	journal := lifecycle.NewRedisJournal(rdb)

	projects := lifecycle.New(lifecycle.Deps{
		Store:    st,
		Users:    st,
		Ledger:   gw,
		Signer:   wallets,
		Locker:   locker,
		Matcher:  matching.NewMatcher(st, log),
		Notifier: broadcaster,
		Journal:  journal,
		Log:      log,
	}, lifecycle.Config{LedgerTimeout: cfg.LedgerTimeout})

	log.Info("services wired", map[string]interface{}{
		"dbDriver": cfg.DBDriver, "lockBackend": cfg.LockBackend, "ledgerRpc": cfg.LedgerRPCURL,
	})

	return &Components{
		DB:          gdb,
		Redis:       rdb,
		Store:       st,
		Ledger:      gw,
		Wallets:     wallets,
		Accounts:    accounts.NewService(st, wallets, log),
		Projects:    projects,
		Journal:     journal,
		Hub:         hub,
		Broadcaster: broadcaster,
	}, nil
}

func (c *Components) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	closeDB(c.DB)
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
