package bootstrap

import (
	"context"
	"log"

	"codeassist-be/internal/config"
	"codeassist-be/internal/controller"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/repository/implementation"
	"codeassist-be/internal/repository/memory"
	"codeassist-be/internal/router"
	"codeassist-be/internal/service"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/embedding"
	embeddingGemini "codeassist-be/pkg/embedding/gemini"
	embeddingOllama "codeassist-be/pkg/embedding/ollama"
	"codeassist-be/pkg/llm/factory"
	pkgNats "codeassist-be/pkg/nats"
	"codeassist-be/pkg/ratelimit"
	"codeassist-be/pkg/relay"
	"codeassist-be/pkg/search"
	"codeassist-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController controller.IAuthController

	// Message routing
	Router *router.Router

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	NotifierService service.INotifierService

	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize Embedding Provider based on Config
	var embeddingProvider embedding.Provider
	if cfg.Embedding.Provider == "ollama" {
		embeddingProvider = embeddingOllama.NewProvider(
			cfg.Embedding.OllamaBaseURL,
			cfg.Embedding.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Embedding.OllamaModel)
	} else {
		embeddingProvider = embeddingGemini.NewProvider(cfg.Embedding.GeminiKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// LLM backend registry
	registry := factory.NewRegistry(cfg.Backends)

	// In-memory turn state
	turnStore := memory.NewTurnContextStore(cfg.Session.TurnTTL, cfg.Session.TurnSweep)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pkgNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// Vector storage
	vectorRepo := implementation.NewVectorRepository(db)
	store := vectorstore.NewStore(
		vectorRepo,
		sysLogger,
		cfg.Embedding.Dimensions,
		cfg.Index.UpsertMaxBytes,
		cfg.Index.UpsertMaxCount,
	)
	hybrid := search.NewHybrid(store, sysLogger)

	// Embedding admission control
	limiter := ratelimit.NewSlidingWindowLimiter(cfg.Embedding.RateQuota, cfg.Embedding.RateWindow)

	// 3. Services
	streamRelay := relay.NewRelay(sysLogger)

	authService := service.NewAuthService(&cfg.Auth, wsHub, natsPub, sysLogger)
	completionService := service.NewCompletionService(registry, streamRelay, turnStore, sysLogger)
	indexingService := service.NewIndexingService(
		&cfg.Index,
		embeddingProvider,
		limiter,
		store,
		pubSub,
		natsPub,
		sysLogger,
	)
	searchService := service.NewSearchService(hybrid, store, embeddingProvider, limiter, natsPub, sysLogger)

	consumerService := service.NewConsumerService(pubSub, cfg.Index.EmbedJobTopic, store, sysLogger)
	notifierService := service.NewNotifierService(natsSub, wsHub, wsLogger)

	// 4. Message routing
	msgRouter := router.NewRouter(cfg.Auth.Enabled, sysLogger)
	wsController := controller.NewWsController(authService, completionService, indexingService, searchService)
	wsController.RegisterHandlers(msgRouter)
	wsHub.SetHandler(msgRouter)

	return &Container{
		AuthController:  controller.NewAuthController(authService),
		Router:          msgRouter,
		ConsumerService: consumerService,
		NotifierService: notifierService,
		WebSocketHub:    wsHub,
	}
}
