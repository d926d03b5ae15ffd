package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"

	"schoolku_backend/internals/configs"
	database "schoolku_backend/internals/databases"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
	"schoolku_backend/internals/features/finance/payment_flows/service"
	helper "schoolku_backend/internals/helpers"
	middlewares "schoolku_backend/internals/middlewares"
	routes "schoolku_backend/internals/route"
)

func main() {
	configs.LoadEnv()
	cfg := configs.LoadPaymentConfig()

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB()
	database.TunePool()
	database.WarmUpQueries()
	if err := repository.Migrate(database.DB); err != nil {
		log.Fatalf("❌ migrate payment tables: %v", err)
	}

	// 💳 adapter provider (kredensial kosong → adapter tetap terdaftar, call gagal ErrNotConfigured)
	adapters := provider.NewRegistry(
		provider.NewHosted(provider.HostedConfig{
			BaseURL:       cfg.HostedBaseURL,
			APIKey:        cfg.HostedAPIKey,
			APISecret:     cfg.HostedAPISecret,
			WebhookSecret: cfg.HostedWebhookSecret,
			AllowUnsigned: cfg.AllowUnsignedWebhooks,
			Timeout:       cfg.HTTPTimeout,
			MaxRetries:    cfg.InitiateMaxRetries,
		}),
		provider.NewMidtrans(provider.MidtransConfig{
			ServerKey:     cfg.MidtransServerKey,
			Production:    cfg.MidtransProduction,
			AllowUnsigned: cfg.AllowUnsignedWebhooks,
		}),
		provider.NewCash(),
		provider.NewBankTransfer(),
	)
	log.Printf("✅ Payment providers: %s (online: %s)",
		strings.Join(adapters.Names(), ", "), strings.Join(adapters.Online(), ", "))

	auditor := service.NewAsyncAuditor(service.LogAuditSink{}, 0)

	flowRepo := repository.NewFlowRepository(database.DB)
	callbackRepo := repository.NewCallbackRepository(database.DB)
	accountRepo := repository.NewPayoutAccountRepository(database.DB)

	registry := service.NewPayoutRegistry(accountRepo, adapters, auditor)
	flows := service.NewFlowManager(flowRepo, callbackRepo, registry, adapters,
		service.StaticPricing(cfg.CommissionRates), auditor,
		service.FlowManagerConfig{DefaultCurrency: cfg.DefaultCurrency, FlowTTL: cfg.FlowTTL})
	reconciler := service.NewReconciler(flowRepo, callbackRepo, adapters, auditor)

	// ⏱ sweeper setelah DB siap
	sweeper := service.NewSweeper(flowRepo, adapters, reconciler, service.SweeperConfig{
		Schedule: cfg.SweepCron,
		MinAge:   cfg.SweepMinAge,
		Batch:    cfg.SweepBatch,
	})
	if err := sweeper.Start(); err != nil {
		log.Fatalf("❌ sweeper: %v", err)
	}

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		ErrorHandler:            helper.FiberErrorHandler,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	middlewares.SetupMiddlewares(app, splitCSV(configs.GetEnv("CORS_ALLOW_ORIGINS")), cfg.RequestTimeout)

	routes.SetupRoutes(app, routes.Deps{
		DB:               database.DB,
		Flows:            flows,
		Registry:         registry,
		Reconciler:       reconciler,
		Validate:         validator.New(),
		WebhookRateLimit: cfg.WebhookRateLimit,
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := configs.GetEnv("PORT", "3000")

	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: HTTP → sweeper → audit → DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	sweeper.Stop()
	auditor.Close()
	database.Close()
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
