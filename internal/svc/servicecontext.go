package svc

import (
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"otakuverse/internal/catalog"
	"otakuverse/internal/chain"
	"otakuverse/internal/config"
	"otakuverse/internal/logic/mint"
	"otakuverse/internal/logic/reward"
	"otakuverse/internal/logic/wallet"
	"otakuverse/internal/model"
	"otakuverse/internal/provider"
)

type ServiceContext struct {
	Config config.Config
	DB     *gorm.DB

	Sessions model.SessionsDao
	Watches  model.WatchSessionsDao

	Node     chain.NodeClient
	Provider provider.Provider
	Catalog  catalog.Client

	Wallet   *wallet.Manager
	Reward   *reward.Engine
	Composer *mint.Composer
	Minter   mint.Backend
}

func NewServiceContext(c config.Config) *ServiceContext {
	db, err := initDB(c.Storage.Driver, c.Storage.DSN)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate db: %v", err)
	}

	node, err := chain.NewAlgodNode(c.Algod)
	if err != nil {
		log.Fatalf("failed to init algod client: %v", err)
	}

	sessions := model.NewSessionsDao(db)
	watches := model.NewWatchSessionsDao(db)
	prov := provider.NewBridge(c.WalletBridge)

	svcCtx := &ServiceContext{
		Config:   c,
		DB:       db,
		Sessions: sessions,
		Watches:  watches,
		Node:     node,
		Provider: prov,
		Catalog:  catalog.New(c.Catalog),
		Wallet:   wallet.NewManager(c.Wallet, prov, node, sessions),
		Reward:   reward.NewEngine(c.Reward, watches),
		Composer: mint.NewComposer(),
		Minter:   mint.NewBackend(c.Mint),
	}
	svcCtx.Wallet.Start()
	return svcCtx
}

// Stop tears down the long-lived components: the session manager (which
// closes the provider bridge) and the reward engine's timers.
func (s *ServiceContext) Stop() {
	s.Wallet.Stop()
	s.Reward.Stop()
}

func initDB(driver, dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	var dialector gorm.Dialector
	if driver == "postgres" {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}
