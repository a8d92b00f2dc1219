package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aloqachat/aloqa/agent"
	agentdomain "github.com/aloqachat/aloqa/agent/domain"
	"github.com/aloqachat/aloqa/agent/providers"
	"github.com/aloqachat/aloqa/automation"
	automationRepo "github.com/aloqachat/aloqa/automation/repository"
	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/channels/meta"
	"github.com/aloqachat/aloqa/channels/telegram"
	"github.com/aloqachat/aloqa/conversation"
	conversationRepo "github.com/aloqachat/aloqa/conversation/repository"
	coreconfig "github.com/aloqachat/aloqa/core/config"
	coreDB "github.com/aloqachat/aloqa/core/database"
	"github.com/aloqachat/aloqa/handoff"
	"github.com/aloqachat/aloqa/infrastructure/valkey"
	"github.com/aloqachat/aloqa/knowledge"
	"github.com/aloqachat/aloqa/notify"
	"github.com/aloqachat/aloqa/pipeline"
	"github.com/aloqachat/aloqa/pkg/crypto"
	"github.com/aloqachat/aloqa/pkg/msgworker"
	"github.com/aloqachat/aloqa/registry"
	tenantsApp "github.com/aloqachat/aloqa/tenants/application"
	tenantsRepo "github.com/aloqachat/aloqa/tenants/repository"
	"github.com/aloqachat/aloqa/ui/rest"
	"github.com/aloqachat/aloqa/ui/rest/middleware"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the API server and channel listeners",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := crypto.SetEncryptionKey(cfg.Security.SecretKey); err != nil {
		logrus.Fatalln("Failed to set encryption key:", err)
	}

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalln("Failed to connect database:", err)
	}

	// Repositories and schema
	tenantRepo := tenantsRepo.NewTenantGormRepository(db)
	accountRepo := tenantsRepo.NewAccountGormRepository(db)
	questionRepo := tenantsRepo.NewQuestionGormRepository(db)
	archiveRepo := conversationRepo.NewArchiveGormRepository(db)
	flowRepo := automationRepo.NewFlowGormRepository(db)

	type schemaIniter interface {
		InitSchema(ctx context.Context) error
	}
	for _, r := range []schemaIniter{tenantRepo, accountRepo, questionRepo, archiveRepo, flowRepo} {
		if err := r.InitSchema(ctx); err != nil {
			logrus.Fatalln("Failed to migrate schema:", err)
		}
	}

	// Conversation store: Valkey with an in-memory fallback, memory only
	// when Valkey is disabled.
	storeOpts := conversation.Options{
		ContextLimit: cfg.AI.ContextLimit,
		ContextTTL:   cfg.AI.ContextTTL,
		HandoffTTL:   cfg.AI.HandoffTTL,
		DedupTTL:     cfg.AI.DedupTTL,
	}
	var store conversation.Store = conversationRepo.NewMemoryStore(storeOpts)
	if cfg.Database.ValkeyEnabled {
		valkeyClient, err := valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalln("Failed to connect Valkey:", err)
		}
		defer valkeyClient.Close()
		store = conversationRepo.NewFailoverStore(
			conversationRepo.NewValkeyStore(valkeyClient, storeOpts),
			conversationRepo.NewMemoryStore(storeOpts),
		)
	}

	// Accounts registry and tenant service
	accountRegistry := registry.NewAccountRegistry()
	tenantService := tenantsApp.NewService(tenantRepo, accountRepo, accountRegistry)
	if err := tenantService.PopulateRegistry(ctx); err != nil {
		logrus.Fatalln("Failed to populate account registry:", err)
	}

	// Events
	var publisher notify.Publisher
	if cfg.Events.AMQPEnabled {
		amqpPub, err := notify.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPExchange)
		if err != nil {
			logrus.Fatalln("Failed to connect AMQP:", err)
		}
		publisher = amqpPub
	} else {
		publisher = notify.NewLogPublisher()
	}
	defer publisher.Close()

	// Knowledge retrieval
	var retriever knowledge.Retriever
	if cfg.APIKeys.OpenAI != "" && cfg.Knowledge.QdrantHost != "" {
		embedder := knowledge.NewOpenAIEmbedder(cfg.APIKeys.OpenAI, cfg.Knowledge.EmbeddingModel)
		retriever, err = knowledge.NewQdrantRetriever(ctx, knowledge.QdrantConfig{
			Host:           cfg.Knowledge.QdrantHost,
			Port:           cfg.Knowledge.QdrantPort,
			APIKey:         cfg.Knowledge.QdrantAPIKey,
			UseTLS:         cfg.Knowledge.QdrantUseTLS,
			Collection:     cfg.Knowledge.Collection,
			ScoreThreshold: float32(cfg.Knowledge.ScoreThreshold),
			SearchTimeout:  cfg.Knowledge.SearchTimeout,
		}, embedder)
		if err != nil {
			logrus.WithError(err).Warn("Qdrant unavailable, knowledge retrieval disabled")
			retriever = nil
		}
	}

	// AI providers
	provider := buildProviderChain(cfg)
	resolver := providers.NewMediaInterpreter(cfg.APIKeys.Gemini, cfg.AI.VisionModel, cfg.APIKeys.OpenAI, cfg.AI.TranscriptionModel, cfg.AI.MediaTimeout)

	// Telegram bots, used for both customer chats and owner alerts
	telegramManager := telegram.NewManager(accountRegistry, resolver, nil, cfg.Telegram.PollTimeout)
	alerter := telegram.NewAlerter(tenantService, accountRegistry, telegramManager)

	coordinator := handoff.NewCoordinator(store, archiveRepo, publisher, alerter)

	orchestratorOpts := []agent.OrchestratorOption{
		agent.WithEscalator(coordinator),
		agent.WithQuestionSink(questionRepo),
		agent.WithMaxTokens(cfg.AI.MaxTokens),
		agent.WithContextLimit(cfg.AI.ContextLimit),
		agent.WithRequestTimeout(cfg.AI.RequestTimeout),
	}
	if retriever != nil {
		orchestratorOpts = append(orchestratorOpts, agent.WithKnowledge(retriever, cfg.Knowledge.TopK))
	}
	orchestrator := agent.NewOrchestrator(provider, store, tenantRepo, orchestratorOpts...)

	// Outbound senders
	metaClient := meta.NewClient(cfg.Meta.GraphBaseURL, cfg.Meta.SendTimeout)
	senders := map[channels.Channel]channels.Sender{
		channels.ChannelInstagram: meta.NewInstagramSender(accountRegistry, metaClient),
		channels.ChannelFacebook:  meta.NewFacebookSender(accountRegistry, metaClient),
		channels.ChannelTelegram:  telegram.NewSender(accountRegistry, telegramManager),
	}

	// Worker pool and pipeline
	pool := msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start(ctx)
	defer pool.Stop()

	flowEngine := automation.NewEngine(flowRepo)
	pipe := pipeline.New(pool, store, orchestrator, senders,
		pipeline.WithArchive(archiveRepo),
		pipeline.WithAutomation(flowEngine),
		pipeline.WithPublisher(publisher),
	)

	// Inbound adapters
	telegramManager.SetIngestor(pipe)
	go telegramManager.Run(ctx)

	igAdapter := meta.NewInstagramAdapter(accountRegistry, metaClient, resolver, pipe, orchestrator, publisher)
	fbAdapter := meta.NewFacebookAdapter(accountRegistry, metaClient, resolver, pipe, orchestrator, publisher)

	// HTTP surface
	fiberConfig := fiber.Config{
		AppName:      "Aloqa Engine",
		ServerHeader: "Hidden",
		Network:      "tcp",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}
	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(middleware.Recovery())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	api := app.Group(cfg.App.BasePath)
	rest.InitRestWebhook(api, cfg.Meta.VerifyToken, cfg.Meta.AppSecret, igAdapter, fbAdapter)
	rest.InitRestTenant(api, tenantService)
	rest.InitRestConversation(api, archiveRepo, coordinator)
	rest.InitRestQuestion(api, questionRepo)
	rest.InitRestAutomation(api, flowRepo)
	rest.InitRestMonitoring(api, pool)
	if retriever != nil {
		rest.InitRestKnowledge(api, retriever)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logrus.Info("Shutdown signal received")
		cancel()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	logrus.Infof("Server running on port %s", cfg.App.Port)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Server stopped:", err)
	}
}

// buildProviderChain maps AI_PROVIDER to one provider or the fallback
// chain, OpenAI first.
func buildProviderChain(cfg *coreconfig.Config) agentdomain.ChatProvider {
	openAI := providers.NewOpenAIProvider(cfg.APIKeys.OpenAI, cfg.AI.OpenAIModel)
	gemini := providers.NewGeminiProvider(cfg.APIKeys.Gemini, cfg.AI.GeminiModel)

	switch cfg.AI.Provider {
	case "openai":
		return openAI
	case "gemini":
		return gemini
	default:
		return agent.NewChain(openAI, gemini)
	}
}
