package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"helpdesk/accounts"
	"helpdesk/config"
	supportControllers "helpdesk/controllers/support"
	"helpdesk/database"
	"helpdesk/middleware"
	"helpdesk/notify"
	"helpdesk/realtime"
	supportRoutes "helpdesk/routers/supportRoutes"
	"helpdesk/services"
	"helpdesk/utils"
)

func main() {
	cfg := config.LoadConfig()
	database.ConnectDb(cfg)
	db := database.Database.Db

	ctx, shutdown := utils.NewShutdownManager(context.Background(), 15*time.Second)
	shutdown.Register("database", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	var directory accounts.Directory = accounts.NewGormDirectory(db)
	if cfg.AccountServiceURL != "" {
		directory = accounts.NewRemoteDirectory(cfg.AccountServiceURL, cfg.AccountServiceToken)
		log.Printf("Using account service at %s", cfg.AccountServiceURL)
	}

	heartbeat := time.Duration(cfg.StreamHeartbeatSeconds) * time.Second
	local := realtime.NewLocalRegistry()
	var registry realtime.Registry = local
	closeStreams := func() { local.CloseAll() }
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		shared := realtime.NewRedisRegistry(rdb, 2*heartbeat)
		go shared.Run(ctx)
		registry = shared
		closeStreams = shared.CloseAll
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
		log.Printf("Connected to redis at %s (node %s)", cfg.RedisAddr, shared.NodeID())
	}

	var opts []notify.Option
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Failed to create kafka producer: %v", err)
		}
		opts = append(opts, notify.WithSink(sink))
		shutdown.Register("kafka", func(context.Context) error { return sink.Close() })
		log.Printf("Exporting support events to kafka topic %s", cfg.KafkaTopic)
	}
	if cfg.SendGridApiKey != "" {
		opts = append(opts, notify.WithMailer(notify.NewSendGridMailer(cfg.SendGridApiKey, cfg.EmailSender, cfg.EmailFromName)))
	} else {
		log.Println("Warning: SENDGRID_API_KEY not set. Offline ticket emails are disabled.")
	}

	fanout := notify.NewFanout(registry, directory, opts...)
	rooms := services.NewRoomService(db, fanout)
	tickets := services.NewTicketService(db, fanout)

	scheduler, err := utils.InitializeTicketScheduler(ctx, tickets, cfg.TicketAutoCloseCron, cfg.TicketAutoCloseDays)
	if err != nil {
		log.Fatalf("Failed to start ticket scheduler: %v", err)
	}
	if scheduler != nil {
		shutdown.Register("scheduler", func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	app := fiber.New(fiber.Config{
		// event streams stay open far longer than any request timeout
		IdleTimeout: 2 * heartbeat,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsOrigins,
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	limiter := middleware.NewRateLimiter(rdb, cfg.MessageRateLimit, time.Duration(cfg.MessageRateWindow)*time.Second)
	handler := supportControllers.NewHandler(rooms, tickets, registry, heartbeat)
	supportRoutes.SetupSupportRoutes(app, handler, directory, limiter)

	shutdown.Register("http", app.ShutdownWithContext)
	// runs before "http": open event streams would hold the server open
	shutdown.Register("streams", func(context.Context) error {
		closeStreams()
		return nil
	})
	shutdown.StartListening()

	log.Printf("Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
	<-shutdown.Done()
}
