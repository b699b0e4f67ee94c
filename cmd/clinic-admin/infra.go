package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/target/clinic-portal/config"
	redisadapter "github.com/target/clinic-portal/internal/adapters/redis"
	"github.com/target/clinic-portal/internal/bootstrap"
)

var errSessionStoreNotShared = errors.New(
	"session commands need SESSION_STORE=redis; in-memory sessions live only inside the portal process",
)

func connectDB(cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeDB(cmdCtx *commandContext, db *sql.DB) {
	if closeErr := db.Close(); closeErr != nil {
		cmdCtx.Logger.Warn("db close failed", "error", closeErr)
	}
}

// openSessionStore connects to the Redis session store shared with the portal.
// The caller closes the returned client.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func openSessionStore(cmdCtx *commandContext) (*redisadapter.SessionStore, redis.UniversalClient, error) {
	if cmdCtx.Config.Session.Store != config.SessionStoreRedis {
		return nil, nil, errSessionStoreNotShared
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis, Logger: cmdCtx.Logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return redisadapter.NewSessionStoreWithPrefix(client, cmdCtx.Config.Session.KeyPrefix), client, nil
}

func closeRedis(cmdCtx *commandContext, client redis.UniversalClient) {
	if closeErr := client.Close(); closeErr != nil {
		cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
	}
}
