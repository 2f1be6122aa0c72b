package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"docubot-be/internal/config"
	"docubot-be/internal/controller"
	"docubot-be/internal/handler"
	"docubot-be/internal/pkg/logger"
	"docubot-be/internal/pkg/serverutils"
	"docubot-be/internal/repository/memory"
	"docubot-be/internal/service"
	"docubot-be/internal/websocket"
	"docubot-be/pkg/database"
	"docubot-be/pkg/embedding"
	"docubot-be/pkg/events"
	"docubot-be/pkg/extractor"
	"docubot-be/pkg/listening"
	"docubot-be/pkg/llm/factory"
	pktNats "docubot-be/pkg/nats"
	"docubot-be/pkg/rag/session"
	"docubot-be/pkg/utils"
	"docubot-be/pkg/vectorstore"
	"docubot-be/pkg/vectorstore/pgstore"
	"docubot-be/pkg/vectorstore/sqlitestore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Core pipeline
	Extractor *extractor.Extractor
	Embedder  *embedding.Strategy
	Stores    *vectorstore.Manager
	Session   *session.Session
	Listener  *listening.Controller

	// Services
	DocumentService     service.IDocumentService
	ChatService         service.IChatService
	ConversationService service.IConversationService
	ConsumerService     service.IConsumerService

	// HTTP
	Auth                   fiber.Handler
	DocumentController     controller.IDocumentController
	ChatController         controller.IChatController
	ConversationController controller.IConversationController
	CaptureHandler         *handler.CaptureHandler
	WebSocketHub           *websocket.Hub

	captureLogger logger.ILogger
	pubSub        *gochannel.GoChannel
	natsPub       *pktNats.Publisher
	rdb           *redis.Client
	db            *gorm.DB
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	// 1. Logging
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c.Logger = sysLogger
	c.captureLogger = logger.NewIsolatedLogger(cfg.App.CaptureLogPath)

	// 2. Event Bus
	c.pubSub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)

	// 3. Vector store backend
	backend, err := c.newBackend(ctx)
	if err != nil {
		return nil, err
	}
	c.Stores, err = vectorstore.NewManager(backend, cfg.Storage.CacheSize, sysLogger)
	if err != nil {
		return nil, err
	}

	// 4. AI providers
	mode, err := embedding.ParseMode(cfg.Ai.EmbeddingMode)
	if err != nil {
		return nil, err
	}
	embedSvc, err := embedding.NewService(embedding.Config{
		Provider:  cfg.Ai.EmbeddingProvider,
		BaseURL:   cfg.Ai.EmbeddingBaseURL,
		APIKey:    cfg.Ai.EmbeddingAPIKey,
		Model:     cfg.Ai.EmbeddingModel,
		Timeout:   cfg.Ai.RequestTimeout,
		Normalize: cfg.Ai.EmbeddingNormalize,
	})
	if err != nil {
		return nil, err
	}
	c.Embedder = embedding.NewStrategy(mode, embedSvc)
	sysLogger.Info("Bootstrap", "Using Embedding Provider", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    cfg.Ai.EmbeddingModel,
		"mode":     string(mode),
	})

	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     cfg.Ai.LLMBaseURL,
		APIKey:      cfg.Ai.LLMAPIKey,
		Timeout:     cfg.Ai.RequestTimeout,
		Temperature: cfg.Ai.LLMTemperature,
		MaxTokens:   cfg.Ai.LLMMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "Using LLM Provider", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// 5. Retrieval session
	c.Extractor = extractor.New(sysLogger)
	c.Session = session.New(
		c.Embedder,
		c.Stores,
		llmProvider,
		memory.NewConversationRepository(cfg.Rag.SessionTTL),
		session.Config{
			TopK:              cfg.Rag.TopK,
			HistoryWindow:     cfg.Rag.HistoryWindow,
			SystemPrompt:      cfg.Rag.SystemPrompt,
			FallbackAnswer:    cfg.Rag.FallbackAnswer,
			NativeContextRole: cfg.Rag.ContextRole == "native",
		},
		sysLogger,
	)

	// 6. Listening
	c.Listener = listening.NewController(
		listening.NewWatermillSink(c.pubSub, cfg.Listening.Topic),
		listening.Config{Interval: cfg.Listening.Interval, StopTimeout: cfg.Listening.StopTimeout},
		sysLogger,
	)

	// 7. Optional infrastructure
	publisher := events.MultiPublisher{events.NewWatermillPublisher(c.pubSub)}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsPub = natsPub
			publisher = append(publisher, natsPub)
		}
	}
	if cfg.App.RedisURL != "" {
		c.rdb = newRedis(ctx, cfg.App.RedisURL, sysLogger)
	}
	c.WebSocketHub = websocket.NewHub(c.rdb, sysLogger)

	// 8. Services
	split, err := utils.ParseSplitPolicy(cfg.Rag.SplitPolicy)
	if err != nil {
		return nil, err
	}
	c.DocumentService = service.NewDocumentService(
		c.Extractor,
		c.Embedder,
		c.Stores,
		publisher,
		service.SplitConfig{Policy: split, ChunkSize: cfg.Rag.ChunkSize, ChunkOverlap: cfg.Rag.ChunkOverlap},
		sysLogger,
	)
	c.ChatService = service.NewChatService(c.Session)
	c.ConversationService = service.NewConversationService(c.Listener, publisher, sysLogger)
	c.ConsumerService = service.NewConsumerService(c.pubSub, cfg.Listening.Topic, c.WebSocketHub, c.captureLogger, sysLogger)

	// 9. HTTP
	c.Auth = serverutils.JwtMiddleware(cfg.Auth.JWTSecret)
	c.DocumentController = controller.NewDocumentController(c.DocumentService)
	c.ChatController = controller.NewChatController(c.ChatService)
	c.ConversationController = controller.NewConversationController(c.ConversationService)
	c.CaptureHandler = handler.NewCaptureHandler(c.WebSocketHub, cfg.Auth.JWTSecret, sysLogger)

	return c, nil
}

func (c *Container) newBackend(ctx context.Context) (vectorstore.Backend, error) {
	switch c.Config.Storage.Backend {
	case "postgres":
		db, err := database.NewGormDBFromDSN(c.Config.Storage.DatabaseDSN, !c.Config.IsProduction())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to GORM DB: %w", err)
		}
		c.db = db
		backend := pgstore.New(db)
		if err := backend.Migrate(ctx); err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return sqlitestore.New(c.Config.Storage.VectorStoreDir)
	}
}

func newRedis(ctx context.Context, url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Bootstrap", "Failed to connect to Redis, websocket fan-out stays local", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		return nil
	}
	return rdb
}

// Start launches the background consumers. They stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.WebSocketHub.SubscribeCluster(ctx); err != nil {
		c.Logger.Warn("Bootstrap", "Redis subscription failed", map[string]interface{}{"error": err.Error()})
	}

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start capture consumer: %w", err)
	}
	return nil
}

// Close stops every capture loop and releases connections.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if err := c.Listener.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.pubSub.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	c.Logger.Sync()
	c.captureLogger.Sync()

	return errors.Join(errs...)
}
