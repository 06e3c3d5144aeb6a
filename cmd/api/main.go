package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/config"
	"github.com/gchat-dev/gchat-api/internal/database"
	"github.com/gchat-dev/gchat-api/internal/handler"
	"github.com/gchat-dev/gchat-api/internal/middleware"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/observability"
	"github.com/gchat-dev/gchat-api/internal/repository"
	"github.com/gchat-dev/gchat-api/internal/router"
	"github.com/gchat-dev/gchat-api/internal/service"
	cloud "github.com/gchat-dev/gchat-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Friendship{},
		&models.FriendRequest{},
		&models.BlockedUser{},
		&models.MusicHistoryEntry{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.Notification{},
		&models.Gift{},
		&models.UserGift{},
		&models.GiftTransaction{},
		&models.CallLog{},
		&models.UploadRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional. A single node works without either;
	// they only matter for fan-out across multiple instances.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, running without redis fan-out")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not configured, running without nats fan-out")
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	observability.RegisterMetrics()

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	giftRepo := repository.NewGiftRepository(db)
	callRepo := repository.NewCallRepository(db)
	musicRepo := repository.NewMusicHistoryRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	hub := service.NewHub(logger)
	relay := service.NewRelay(redisClient, natsConn, cfg.EventChannelBase, hub, logger)

	notificationService := service.NewNotificationService(notificationRepo, hub, logger)
	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.JWTTokenTTL, cfg.StartingStarsBalance, logger)
	userService := service.NewUserService(userRepo, musicRepo, notificationService, hub, validate, logger)
	roomService := service.NewRoomService(roomRepo, userRepo, notificationService, validate, logger)
	messageService := service.NewMessageService(messageRepo, roomRepo, roomService, validate, logger)
	giftService := service.NewGiftService(giftRepo, userRepo, notificationService, hub, validate, logger)
	callService := service.NewCallService(callRepo, userRepo, notificationService, hub, logger)
	uploadService := service.NewUploadService(uploader, uploadRepo, 10, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay.Start(ctx)

	if err := giftService.Seed(ctx); err != nil {
		log.Fatalf("failed to seed gift catalog: %v", err)
	}

	dispatcher := service.NewDispatcher(hub, userRepo, roomService, messageService, userService, notificationService, callService, redisClient, cfg.EventChannelBase, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	wsHandler := handler.NewWSHandler(dispatcher, logger)
	profileHandler := handler.NewProfileHandler(userService, hub, logger)
	roomHandler := handler.NewRoomHandler(roomService, hub, logger)
	giftHandler := handler.NewGiftHandler(giftService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         authHandler,
		WSHandler:           wsHandler,
		ProfileHandler:      profileHandler,
		RoomHandler:         roomHandler,
		GiftHandler:         giftHandler,
		NotificationHandler: notificationHandler,
		UploadHandler:       uploadHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, timeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
