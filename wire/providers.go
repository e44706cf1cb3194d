package wire

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/config"
	"github.com/UnKnowSoDev/pianissimo-gacha/db/docstore"
	"github.com/UnKnowSoDev/pianissimo-gacha/db/redis"
	"github.com/UnKnowSoDev/pianissimo-gacha/logging"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/userlock"
	"github.com/UnKnowSoDev/pianissimo-gacha/server"
)

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideStore provides the document store
func ProvideStore(cfg *config.Config, logger zerolog.Logger) (*docstore.Store, error) {
	return docstore.Open(cfg.Store.Path, logger)
}

// ProvideRedisClient provides a Redis client
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	return redis.New(cfg.Redis)
}

// ProvideRedisLocker provides a Redis-backed per-user locker
func ProvideRedisLocker(client *redis.Client, logger zerolog.Logger) userlock.Locker {
	return userlock.NewRedisLocker(client, logger)
}

// ProvideServerOptions provides server options with the default in-process
// locker
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger, store *docstore.Store) server.Options {
	return server.Options{
		Config: cfg,
		Logger: logger,
		Store:  store,
	}
}

// ProvideApp provides the main application
func ProvideApp(opts server.Options) *server.App {
	return server.New(opts)
}

// ConfigSet is the wire provider set for configuration
var ConfigSet = wire.NewSet(
	config.Load,
)

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// StoreSet is the wire provider set for the document store
var StoreSet = wire.NewSet(
	ProvideStore,
)

// RedisSet is the wire provider set for Redis and the distributed locker
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideRedisLocker,
)

// ServerSet is the wire provider set for server
var ServerSet = wire.NewSet(
	ProvideServerOptions,
	ProvideApp,
)

// DefaultSet is the default wire provider set including all common providers
var DefaultSet = wire.NewSet(
	LoggingSet,
	StoreSet,
	ServerSet,
)

// FullSet includes all providers including Redis
var FullSet = wire.NewSet(
	DefaultSet,
	RedisSet,
)
