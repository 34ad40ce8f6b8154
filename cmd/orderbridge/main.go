package main

import (
	"context"
	"fmt"
	"log"
	"os"

	router "github.com/Renal37/orderbridge/internal/app"
	"github.com/Renal37/orderbridge/internal/database"
	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/marketplace"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/services"
	"github.com/Renal37/orderbridge/internal/utils"
	"github.com/Renal37/orderbridge/internal/vault"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	jobQueueCapacity = 100
	jobQueueWorkers  = 2
)

func main() {
	config := NewConfig()

	if err := logger.Initialize(config.logLevel, config.env); err != nil {
		log.Fatalf("Logger wasn't initialized due to %s", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	secrets, err := vault.New(vault.Config{Key: config.encryptionKey, Salt: config.encryptionSalt}, logger.Log)
	if err != nil {
		log.Fatalf("Vault wasn't initialized due to %s", err)
	}

	if config.encryptSecret != "" {
		ciphertext, err := secrets.Encrypt(config.encryptSecret)
		if err != nil {
			log.Fatalf("Secret wasn't encrypted due to %s", err)
		}
		fmt.Fprintln(os.Stdout, ciphertext)
		return
	}

	if config.merchant.ClientSecret == "" {
		log.Fatal("Merchant client secret is not configured, set client_secret in the merchant config or CLIENT_SECRET")
	}

	clientSecret, err := secrets.Decrypt(config.merchant.ClientSecret)
	if err != nil {
		log.Fatalf("Client secret wasn't decrypted due to %s", err)
	}

	client, err := marketplace.New(marketplace.Config{
		BaseURL:           config.merchant.BaseURL,
		MerchantID:        config.merchant.MerchantID,
		ClientID:          config.merchant.ClientID,
		ClientSecret:      clientSecret,
		RequestsPerSecond: config.merchant.RequestsPerSecond,
	}, marketplace.DefaultRetrier())
	if err != nil {
		log.Fatalf("Marketplace client wasn't initialized due to %s", err)
	}

	metrics.Register()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.New(ctx, config.dsn)
	if err != nil {
		log.Fatalf("Database wasn't initialized due to %s", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Migrations weren't run due to %s", err)
	}

	jobQueueService := services.NewJobQueueService(ctx, jobQueueCapacity, jobQueueWorkers)

	ctx = utils.HandleTerminationProcess(ctx, func() {
		logger.Log.Info("termination signal received, shutting down")
	})

	reconciler := services.NewReconciler(db, client, config.merchant.AutoConfirm)

	svc := middlewares.Services{
		Auth:    services.NewAuthService(db),
		JWT:     services.NewJWTService(config.authSecretKey),
		Order:   services.NewOrderService(db, client, jobQueueService),
		Webhook: services.NewWebhookService(reconciler, client, config.merchant.WebhookSecret),
	}

	var scheduler *services.Scheduler
	if config.merchant.Active {
		cycle := services.NewPollingCycle(
			client,
			reconciler,
			services.NewStatusSync(reconciler, services.DefaultSyncConcurrency),
		)
		scheduler = services.NewScheduler(cycle.Run, config.merchant.PollingInterval(), logger.Log)
		svc.Sync = scheduler
	} else {
		logger.Log.Info("polling is not active for the merchant, only webhooks are served",
			zap.String("merchant_id", config.merchant.MerchantID))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return router.New(router.Config{Endpoint: config.endpoint}, svc).Run(groupCtx)
	})

	if scheduler != nil {
		group.Go(func() error {
			return scheduler.Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		logger.Log.Error("orderbridge stopped with error", zap.Error(err))
	}

	jobQueueService.Shutdown()
}
