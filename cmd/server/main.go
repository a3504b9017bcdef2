package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/auth"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/broker"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/bus"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/handler"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/hub"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/notify"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/presence"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/repository"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/service"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/database"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting chat server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := db.AutoMigrate(&domain.RoomModel{}, &domain.MessageModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	roomRepo := repository.NewGormRoomRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	presenceStore, err := presence.NewRedisStore(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis presence store")
	}
	defer presenceStore.Close()
	tracker := presence.NewTracker(presenceStore, cfg.Redis.PresenceTTL, cfg.Redis.HeartbeatInterval)
	tracker.StartHeartbeat(ctx)

	eventBus, err := bus.NewRedisBus(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis event bus")
	}
	defer eventBus.Close()

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Kafka.Enabled {
		producer, err := notify.NewConfluentProducer(cfg.Kafka)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		notifier = producer
	}
	defer notifier.Close()

	store, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	msgBroker := broker.NewBroker(eventBus, wsHub)

	uploadSvc := service.NewUploadService(store, cfg.Storage.URLTTL)
	chatSvc := service.NewChatService(wsHub, msgBroker, tracker, roomRepo, messageRepo, notifier, uploadSvc)
	roomSvc := service.NewRoomService(roomRepo, messageRepo, chatSvc, uploadSvc)

	if err := chatSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start chat service")
	}
	defer chatSvc.Stop()

	resolver := auth.NewResolver(cfg.Auth)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), log.GinMiddleware(logger))

	handler.NewHTTPHandler(roomSvc, uploadSvc, resolver).RegisterRoutes(engine)
	handler.NewWSHandler(wsHub, chatSvc, resolver, cfg.WebSocket).RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("chat server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("chat server stopped")
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case "s3":
		return storage.NewS3Storage(ctx, cfg.S3)
	default:
		return storage.NewLocalStorage(cfg.Local)
	}
}
