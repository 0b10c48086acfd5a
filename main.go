package main

import (
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/hongbao/config"
	"github.com/cppla/hongbao/identity"
	"github.com/cppla/hongbao/routes"
	"github.com/cppla/hongbao/store"
	"github.com/cppla/hongbao/utils"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger early
	logger, err := utils.InitLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	deps := routes.Deps{Config: cfg, Now: time.Now}

	// Redis is required by the local profile and optional elsewhere
	// (token blacklist and leaderboard cache fall back to memory / no cache).
	rc, err := utils.NewRedis(cfg)
	if err != nil {
		if cfg.Profile == config.ProfileLocal {
			log.Fatalf("redis unavailable: %v", err)
		}
		log.Warnw("redis unavailable, continuing without cache", zap.Error(err))
		_ = rc.Close()
		rc = nil
	}
	deps.Cache = utils.NewCache(rc, log)

	switch cfg.Profile {
	case config.ProfileLocal:
		deps.Records = store.NewRedisStore(rc, store.WithKeyPrefix(cfg.RedisKeyPrefix))
		deps.Gate = identity.LocalGate{}
	default:
		db, err := config.OpenDatabase(cfg)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		sqlStore := store.NewSQLStore(db)
		deps.Records = sqlStore

		if cfg.Profile == config.ProfileMulti {
			signer := utils.NewTokenSigner(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour, nil)
			accounts := identity.NewJWTGate(store.NewUserStore(db), signer, utils.BcryptHasher{}, utils.NewBlacklist(rc, nil))
			deps.Gate = accounts
			deps.Accounts = accounts
			deps.Leaderboard = sqlStore
		} else {
			deps.Gate = identity.LocalGate{}
		}
	}

	r := routes.SetupRouter(deps)

	log.Infof("Starting server on port %s (profile %s, graceful)", cfg.AppPort, cfg.Profile)
	if err := utils.GraceServer(":"+cfg.AppPort, r, log); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}
