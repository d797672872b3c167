// File: vendra/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendra/config"
	"vendra/cron"
	"vendra/database"
	orderRepo "vendra/database/repository/order"
	proofRepo "vendra/database/repository/proof"
	transactionRepo "vendra/database/repository/transaction"
	"vendra/handlers"
	"vendra/middleware"
	"vendra/routes"
	"vendra/services/escrow"
	"vendra/services/events"
	"vendra/services/fees"
	"vendra/services/notification"
	"vendra/services/payment"
	"vendra/utils"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitIdempotencyCache()
	stripe.Key = config.AppConfig.StripeKey

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	orders := orderRepo.NewMongoOrderRepo()
	proofs := proofRepo.NewMongoProofRepo()
	txns := transactionRepo.NewMongoTransactionRepo()

	// payment gateways.
	idemStore := payment.NewRedisIdempotencyStore(utils.GetIdempotencyClient())
	gateways := payment.NewRegistry()
	gateways.Register("card", payment.NewCardGateway(idemStore, logger))
	gateways.Register("mobile_money", payment.NewMobileMoneyGateway(payment.MobileMoneyConfig{
		BaseURL:      config.AppConfig.MomoBaseURL,
		APIKey:       config.AppConfig.MomoAPIKey,
		PollInterval: time.Duration(config.AppConfig.MomoPollSeconds) * time.Second,
		PollMaxWait:  time.Duration(config.AppConfig.MomoPollMaxWait) * time.Second,
	}, idemStore, logger))

	// event bus and notification sink.
	asynqClient := cron.NewAsynqClient()
	defer asynqClient.Close()

	bus := events.NewBus()
	bus.Subscribe(&notification.DefaultNotificationService{
		Client: asynqClient,
		Logger: logger,
	})

	// settlement engine.
	engine := &escrow.DefaultSettlementEngine{
		Orders:   orders,
		Proofs:   proofs,
		Txns:     txns,
		Gateways: gateways,
		Fees:     fees.FromConfig(),
		Bus:      bus,
		Queue:    &cron.AsynqSettlementQueuer{Client: asynqClient},
		Config: escrow.EngineConfig{
			Currency:           config.AppConfig.DefaultCurrency,
			CommissionBps:      config.AppConfig.CommissionBps,
			AutoValidateWindow: config.AutoValidateWindow(),
			DisputeWindow:      config.DisputeWindow(),
		},
		Logger: logger,
	}

	// background workers: settlement releases and notification fan-out,
	// plus the auto-validation sweep.
	cron.InitEscrowWorker(engine, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go cron.NewAutoValidationSweeper(orders, engine, logger).Run(sweepCtx)

	utils.StartHealthMonitor(sweepCtx, database.MongoClient,
		utils.GetCacheClient(), utils.GetIdempotencyClient(), time.Minute)

	orderHandler := handlers.NewOrderHandler(engine, logger)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		QuoteHandler:          orderHandler.QuoteHandler,
		CreateOrderHandler:    orderHandler.CreateOrderHandler,
		GetOrderHandler:       orderHandler.GetOrderHandler,
		SubmitProofHandler:    orderHandler.SubmitProofHandler,
		OpenDisputeHandler:    orderHandler.OpenDisputeHandler,
		ResolveDisputeHandler: orderHandler.ResolveDisputeHandler,
		CancelOrderHandler:    orderHandler.CancelOrderHandler,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
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

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
