package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"marketplace_messaging_service/internal/messaging/app"
	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/internal/messaging/repository"
	"marketplace_messaging_service/internal/messaging/router"
	"marketplace_messaging_service/pkg/config"
	"marketplace_messaging_service/pkg/database"
	"marketplace_messaging_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceLogPath)
	cfg := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceYAMLPath)

	// 1. PostgreSQL, the durable message store
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Database)
	db, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    dsn,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}
	if err := db.AutoMigrate(&domain.Thread{}, &domain.Message{}, &domain.Attachment{}, &domain.ProviderStaff{}); err != nil {
		logger.Log.Fatal(fmt.Sprintf("auto migrate err : %v", err))
	}

	// 2. Redis, the event fan-out fabric and typing TTL store
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. MinIO, attachment blob storage
	blob, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect minio err : %v", err))
	}

	// 4. Kafka offline-notification sink, optional
	notifyRepo := repository.NewNopNotifyRepository()
	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval) * time.Second,
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect kafka err : %v", err))
		}
		defer writer.Close()
		notifyRepo = repository.NewKafkaNotifyRepository(writer)
	}

	// 5. Repositories
	threadRepo := repository.NewThreadRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	typingStore := database.NewRedisRepository[domain.TypingEvent](redisClient)
	typingRepo := repository.NewTypingRepository(typingStore, cfg.Typing.TTL)
	pubsub := repository.NewRedisPubSub(redisClient)

	// 6. UseCases
	threadUC := app.NewThreadUseCase(threadRepo, msgRepo, staffRepo, typingRepo, pubsub)
	sendUC := app.NewSendMessageUseCase(threadRepo, msgRepo, staffRepo, typingRepo, pubsub, notifyRepo)

	// 7. Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.MessagingServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	handler := app.NewMessagingHandler(threadUC, sendUC, blob)
	wsHandler := app.NewMessagingWebsocketHandler(threadUC, sendUC, pubsub)
	router.RegisterRoutes(r, handler, wsHandler)

	// Listen
	port := ":" + cfg.Port
	log.Printf("Messaging Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
