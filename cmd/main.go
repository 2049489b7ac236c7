package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"condoledger/internal/clients"
	"condoledger/internal/config"
	"condoledger/internal/notify"
	"condoledger/internal/repository"
	"condoledger/internal/scheduler"
	"condoledger/internal/service"
	"condoledger/internal/transport/auth"
	"condoledger/internal/transport/rest"
	"condoledger/internal/transport/websocket"
	"condoledger/pkg/database/postgres"
	"condoledger/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	// absent .env means system env or defaults
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := mustInitPostgres(cfg.Postgres, log)
	defer postgres.Close(db)

	if err := repository.RunMigrations(db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	redisClient := mustInitRedis(cfg.Redis, log)
	defer redisClient.Close()

	var storageClient *clients.StorageClient
	var s3Client *clients.S3Client
	switch cfg.Storage.Backend {
	case "s3":
		c, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Error("s3 init failed", "err", err)
			os.Exit(1)
		}
		s3Client = c
	default:
		c, err := clients.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicPrefix, cfg.Storage.BaseURL)
		if err != nil {
			log.Error("storage init failed", "err", err)
			os.Exit(1)
		}
		storageClient = c
	}

	// nil publisher is valid: notifications are dropped
	var publisher *notify.Publisher
	if cfg.AMQP.URL != "" {
		p, err := notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			log.Error("amqp init failed", "err", err)
			os.Exit(1)
		}
		publisher = p
		defer publisher.Close()
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	ownerRepo := repository.NewOwnerRepository(db)
	buildingRepo := repository.NewBuildingRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	rateRepo := repository.NewRateRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	billingSvc := service.NewBillingService(
		unitRepo, ownerRepo, receiptRepo, service.NewReceiptTx(db, receiptRepo),
		movementRepo, expenseRepo, settingsRepo,
		publisher, cfg.Billing.AnnualInterestRate, log,
	)
	paymentSvc := service.NewPaymentService(
		db, paymentRepo, receiptRepo, historyRepo, creditRepo, redisClient, log,
	)
	reportSvc := service.NewReportService(
		receiptRepo, paymentRepo, movementRepo, unitRepo, buildingRepo, ownerRepo,
		creditRepo, historyRepo, settingsRepo, redisClient, log,
	)
	documentSvc := service.NewDocumentService(receiptRepo, reportSvc, redisClient, storageClient, s3Client, wsClient, log)

	authMiddleware := auth.Middleware(tokenRepo, log)

	handler := rest.NewHandler(rest.Deps{
		Owners:    ownerRepo,
		Buildings: buildingRepo,
		Units:     unitRepo,
		Catalog:   catalogRepo,
		Expenses:  expenseRepo,
		Movements: movementRepo,
		Receipts:  receiptRepo,
		Payments:  paymentRepo,
		Rates:     rateRepo,
		Settings:  settingsRepo,
		Billing:   billingSvc,
		Processor: paymentSvc,
		Reports:   reportSvc,
		Documents: documentSvc,
		Hub:       wsHub,
	})
	router := handler.InitRouterWithAuth(authMiddleware)

	// public root: generated documents stay downloadable without a token,
	// everything else goes through auth
	root := chi.NewRouter()
	if storageClient != nil {
		root.Get(cfg.Storage.PublicPrefix+"/{file}", serveDocument(storageClient))

		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := storageClient.CleanupOlderThan(48 * time.Hour); err != nil {
						log.Error("storage cleanup", "err", err)
					}
				}
			}
		}()
	}
	root.Mount("/", router)

	billingScheduler := scheduler.New(billingSvc, settingsRepo, log)
	go billingScheduler.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Error("http server", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown", "err", err)
		}

		// stop the hub, scheduler and cleanup goroutines
		cancel()

		log.Info("shutdown complete")
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func serveDocument(storage *clients.StorageClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		path := filepath.Join(storage.BaseDir, filepath.Base(file))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		// strip the random prefix for the download name
		orig := file
		if idx := strings.IndexByte(file, '_'); idx >= 0 {
			orig = file[idx+1:]
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", orig))

		http.ServeFile(w, r, path)
	}
}

func mustInitPostgres(cfg config.PostgresConfig, log *slog.Logger) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig, log *slog.Logger) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	return client
}
