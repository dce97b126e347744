package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/api"
	"chat-trigger-engine/internal/automation"
	"chat-trigger-engine/internal/config"
	"chat-trigger-engine/internal/conversation"
	"chat-trigger-engine/internal/database"
	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/logger"
	"chat-trigger-engine/internal/reply"
	"chat-trigger-engine/internal/rules"
	"chat-trigger-engine/internal/template"
	"chat-trigger-engine/internal/webhook"
	"chat-trigger-engine/internal/whatsapp"
	"chat-trigger-engine/internal/ws"
)

var log = logger.Get("server")

func main() {
	cfg := config.LoadConfig()

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.JSON = cfg.LogJSON
	logCfg.Dir = cfg.LogDir
	logCfg.Service = "trigger-engine"
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}

	database.InitGorm(cfg)
	db := database.GormDB
	database.SyncConfig(db, cfg)

	engineFile := &automation.EngineFile{}
	if cfg.EngineFile != "" {
		f, err := automation.LoadEngineFile(cfg.EngineFile)
		if err != nil {
			log.Fatalf("Failed to load engine file: %v", err)
		}
		engineFile = f
	}
	directory := engineFile.Directory()

	configs := automation.NewConfigSource(db)
	if err := configs.Reload(); err != nil {
		log.Fatalf("Failed to load trigger configs: %v", err)
	}
	if sum, err := automation.ImportEngineFile(db, configs, engineFile, false); err != nil {
		log.Fatalf("Failed to import engine file: %v", err)
	} else if sum.Rules > 0 || sum.Global || sum.Groups > 0 {
		log.Printf("Imported %d rules, %d group configs (global: %v) from %s", sum.Rules, sum.Groups, sum.Global, cfg.EngineFile)
	}

	pool := rules.NewPool(nil)
	if err := automation.LoadRules(db, pool); err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	log.Printf("Loaded %d smart rules", pool.Len())

	var chat ai.ChatClient
	if cfg.OpenAIAPIKey != "" {
		client, err := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			log.Fatalf("Failed to create OpenAI client: %v", err)
		}
		chat = client
	} else {
		log.Warn("OPENAI_API_KEY not set, using keyword classification and canned replies")
	}

	store := conversation.NewStore()

	intentCfg := intent.DefaultConfig()
	intentCfg.Timeout = cfg.IntentTimeout
	classifier := intent.NewClassifier(chat, store, intentCfg)

	replyCfg := reply.DefaultConfig()
	replyCfg.Timeout = cfg.ReplyTimeout
	composer := reply.NewComposer(chat, &engineFile.Knowledge, replyCfg)

	expander := template.NewExpander(time.Now().UnixNano())
	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Classifier: classifier,
		Store:      store,
		Composer:   composer,
		Rules:      pool,
		Directory:  directory,
		Selector:   accounts.NewDefaultSelector(),
		Expander:   expander,
	})

	hub := ws.NewHub()
	go hub.Run()

	whatsappClient := whatsapp.NewClient(cfg)
	executor := automation.NewExecutor(db, whatsappClient, hub, directory, cfg.SendRatePerMinute)
	engine := automation.NewEngine(dispatcher, configs, executor, db)

	var broadcastLimiter *rate.Limiter
	if cfg.SendRatePerMinute > 0 {
		broadcastLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.SendRatePerMinute)), 1)
	}

	webhookHandler := webhook.NewHandler(cfg, db, engine)
	dashboardHandler := api.NewDashboardHandler(db, store, classifier, whatsappClient)
	leadHandler := api.NewLeadHandler(db)
	broadcastHandler := api.NewBroadcastHandler(db, expander, whatsappClient, directory, broadcastLimiter)
	automationHandler := api.NewAutomationHandler(db, pool, configs)
	triggerHandler := api.NewTriggerHandler(configs, hub)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rules": pool.Len(), "ws_clients": hub.ClientCount()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/messages", dashboardHandler.GetMessages)
		apiGroup.POST("/send", dashboardHandler.SendMessage)
		apiGroup.POST("/intent/classify", dashboardHandler.Classify)

		// Conversation Routes
		apiGroup.GET("/conversations", dashboardHandler.ListConversations)
		apiGroup.GET("/conversations/:userId", dashboardHandler.GetConversation)
		apiGroup.DELETE("/conversations/:userId", dashboardHandler.ClearConversation)

		// Lead Routes
		apiGroup.GET("/leads", leadHandler.GetLeads)
		apiGroup.GET("/leads/export", leadHandler.ExportLeads)
		apiGroup.PUT("/leads/:waId", leadHandler.UpdateLead)
		apiGroup.DELETE("/leads/:waId", leadHandler.DeleteLead)

		// Template Routes
		apiGroup.POST("/templates/preview", broadcastHandler.PreviewTemplate)
		apiGroup.POST("/broadcast", broadcastHandler.SendBroadcast)

		// Rule Routes
		apiGroup.GET("/rules", automationHandler.GetRules)
		apiGroup.POST("/rules", automationHandler.CreateRule)
		apiGroup.PUT("/rules/:id", automationHandler.UpdateRule)
		apiGroup.DELETE("/rules/:id", automationHandler.DeleteRule)
		apiGroup.POST("/rules/:id/toggle", automationHandler.ToggleRule)
		apiGroup.GET("/actions/logs", automationHandler.GetLogs)
		apiGroup.GET("/actions/analytics", automationHandler.GetAnalytics)
		apiGroup.GET("/settings", automationHandler.GetSettings)
		apiGroup.PUT("/settings", automationHandler.UpdateSetting)

		// Trigger Config Routes
		apiGroup.GET("/trigger", triggerHandler.GetGlobal)
		apiGroup.PUT("/trigger", triggerHandler.PutGlobal)
		apiGroup.GET("/trigger/groups", triggerHandler.ListGroups)
		apiGroup.GET("/trigger/groups/:groupId", triggerHandler.GetGroup)
		apiGroup.PUT("/trigger/groups/:groupId", triggerHandler.PutGroup)
		apiGroup.DELETE("/trigger/groups/:groupId", triggerHandler.DeleteGroup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statsDone := make(chan struct{})
	go func() {
		configs.Run(ctx, cfg.StatsFlushInterval)
		close(statsDone)
	}()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	<-statsDone
}
