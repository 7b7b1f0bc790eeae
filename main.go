package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"harambee/config"
	"harambee/cron"
	"harambee/database"
	contributionRepo "harambee/database/repository/contribution"
	memberRepo "harambee/database/repository/member"
	projectRepo "harambee/database/repository/project"
	rechargeRepo "harambee/database/repository/recharge"
	sessionRepo "harambee/database/repository/session"
	ticketRepo "harambee/database/repository/ticket"
	"harambee/handlers"
	"harambee/middleware"
	"harambee/routes"
	"harambee/services/ledger"
	"harambee/services/member"
	"harambee/services/notification"
	"harambee/services/payment"
	"harambee/services/recharge"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database.InitDB()
	utils.InitRedis()

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// repositories.
	members := memberRepo.NewMongoMemberRepo()
	projects := projectRepo.NewMongoProjectRepo()
	contributions := contributionRepo.NewMongoContributionRepo()
	tickets := ticketRepo.NewMongoTicketRepo()
	rechargeTokens := rechargeRepo.NewMongoRechargeTokenRepo()
	sessions := sessionRepo.NewRedisSessionRepo(utils.GetCacheClient(), cfg.PaymentSessionTTL, cfg.PaymentIntentTTL)

	// services.
	memberService, err := member.NewDefaultMemberService(members, member.FeeSchedule{
		Term:   cfg.MandatoryFeeTerm,
		Amount: cfg.MandatoryFeeAmount,
	})
	if err != nil {
		logger.Fatal("main: member service", zap.Error(err))
	}
	rechargeService, err := recharge.NewDefaultRechargeService(rechargeTokens, cfg.RechargeLinkMaxTTL)
	if err != nil {
		logger.Fatal("main: recharge service", zap.Error(err))
	}

	ledgerService, err := ledger.NewDefaultLedgerService(tickets, contributions, projects, memberService)
	if err != nil {
		logger.Fatal("main: ledger service", zap.Error(err))
	}

	var publisher notification.Publisher = notification.NopPublisher{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		hostname, _ := os.Hostname()
		publisher = notification.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey, "harambee-"+hostname)
	} else {
		logger.Warn("main: PubNub keys not configured, realtime notifications disabled")
	}
	notifier, err := notification.NewDefaultNotificationService(publisher, logger)
	if err != nil {
		logger.Fatal("main: notification service", zap.Error(err))
	}

	// gateway.
	mpesa := payment.NewMpesaClient(payment.MpesaConfigFromApp(), sessions, logger)
	gateway := payment.NewBreakerGateway(mpesa, utils.NewCircuitBreaker("mpesa", utils.DefaultBreakerSettings()))

	queue := asynq.NewClient(cron.QueueRedisOpt())
	defer queue.Close()

	engine, err := payment.NewEngine(payment.EngineDeps{
		Gateway:        gateway,
		Sessions:       sessions,
		Notifier:       notifier,
		Tasks:          queue,
		Poller:         payment.PollerConfigFromApp(),
		ReconcileDelay: cfg.PaymentReconcileDelay,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("main: payment engine", zap.Error(err))
	}
	flows, err := payment.NewFlows(payment.FlowDeps{
		Engine:        engine,
		Members:       memberService,
		Recharge:      rechargeService,
		Projects:      projects,
		Contributions: contributions,
		Tickets:       tickets,
		Notifier:      notifier,
		Limits:        payment.LimitsFromApp(),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("main: payment flows", zap.Error(err))
	}

	worker := cron.InitReconcileWorker(rootCtx, engine, func(err error) bool {
		return errors.Is(err, payment.ErrStillPending)
	})

	utils.StartHealthMonitor(rootCtx,
		[]*redis.Client{utils.GetCacheClient(), utils.GetQueueClient()},
		database.MongoClient,
		utils.HealthProbe{
			Gateway:       gateway.State,
			ActivePollers: engine.ActiveTrackings,
		})

	// handlers.
	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewPaymentHandler(flows, engine),
		handlers.NewRechargeHandler(rechargeService, flows.RechargeLink, engine),
		handlers.NewMemberHandler(memberService),
		handlers.NewLedgerHandler(ledgerService),
		handlers.NewCallbackHandler(sessions),
	)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Pending sessions are handed to the reconcile queue before the queue client closes.
	engine.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	worker.Shutdown()
	stopBackground()
	if err := database.CloseDB(ctx); err != nil {
		logger.Warn("main: mongo disconnect", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
