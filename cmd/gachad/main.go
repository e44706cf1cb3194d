package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/UnKnowSoDev/pianissimo-gacha/auth"
	"github.com/UnKnowSoDev/pianissimo-gacha/config"
	"github.com/UnKnowSoDev/pianissimo-gacha/db/redis"
	"github.com/UnKnowSoDev/pianissimo-gacha/events/kafka"
	"github.com/UnKnowSoDev/pianissimo-gacha/provider"
	"github.com/UnKnowSoDev/pianissimo-gacha/server"
	appwire "github.com/UnKnowSoDev/pianissimo-gacha/wire"
)

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:     "gachad",
		Short:   "Pianissimo gacha service",
		Version: getVersion(),
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gacha HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile)
		},
	}

	var tokenUserID, tokenUsername string
	var tokenAdmin bool
	var tokenTTL time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(configFile, tokenUserID, tokenUsername, tokenAdmin, tokenTTL)
		},
	}
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "User ID claim")
	tokenCmd.Flags().StringVar(&tokenUsername, "name", "", "Username claim")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Grant the admin role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := appwire.ProvideLogger(cfg)

	store, err := appwire.ProvideStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	opts := appwire.ProvideServerOptions(cfg, logger, store)

	// Redis is optional: without it spins are serialized in process only.
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		opts.Locker = appwire.ProvideRedisLocker(redisClient, logger)
		defer redisClient.Close() //nolint:errcheck
	}

	app := appwire.ProvideApp(opts)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	app.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing Kafka producer")
		}
	})

	app.SetBalanceProvider(provider.NewBalanceProvider(cfg, logger))
	app.SetNotifyProvider(provider.NewNotifyProvider(cfg, producer, logger))

	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterGachaRoutes()
	app.RegisterSwagger(server.SwaggerInfo{
		Title:       "Pianissimo Gacha API",
		Description: "Point-based gacha service",
		Version:     getVersion(),
	}, nil)

	// Out-of-band label edits arrive through the member update topic.
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topics["member_updates"],
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		Logger:        logger,
	}, app.Hub())
	if err := consumer.Start(); err != nil {
		return fmt.Errorf("failed to start Kafka consumer: %w", err)
	}
	app.OnShutdown(func() {
		if err := consumer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Kafka consumer")
		}
	})

	return app.Run()
}

func runToken(configFile, userID, username string, admin bool, ttl time.Duration) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token, err := auth.GenerateToken(cfg.JWT.Secret, userID, username, admin, ttl)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
