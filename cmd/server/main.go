package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/linkledger-backend/internal/adapter/grpc"
	"github.com/simaogato/linkledger-backend/internal/adapter/cache"
	"github.com/simaogato/linkledger-backend/internal/adapter/repository/memory"
	"github.com/simaogato/linkledger-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/linkledger-backend/internal/config"
	"github.com/simaogato/linkledger-backend/internal/domain"
	"github.com/simaogato/linkledger-backend/internal/logging"
	"github.com/simaogato/linkledger-backend/internal/metrics"
	"github.com/simaogato/linkledger-backend/internal/usecase/distribution"
	"github.com/simaogato/linkledger-backend/internal/usecase/seeder"
	"github.com/simaogato/linkledger-backend/internal/usecase/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := logging.New(cfg.Logging)
	ctx := context.Background()

	// 1. Setup storage
	uow, closeStore := openStore(ctx, cfg.Store, logger)
	defer closeStore()

	index, closeIndex := openEligibilityIndex(ctx, cfg.Eligibility, logger)
	defer closeIndex()

	// 2. Initialize Services (Use Cases)
	engine := distribution.NewEngine(uow, index, logger.WithField("component", "distribution"))
	transferService := transfer.NewTransferService(uow, engine, cfg.Intermediary.ID, logger.WithField("component", "transfer"))

	// Initialize System Seeder and run it
	systemSeeder := seeder.NewSystemSeeder(uow, seeder.SystemAccount{
		ID:            cfg.Intermediary.ID,
		AccountNumber: cfg.Intermediary.AccountNumber,
		Name:          cfg.Intermediary.Name,
		Trigger:       cfg.Intermediary.Trigger,
	})
	if err := systemSeeder.Seed(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to seed system accounts")
	}
	logger.WithField("intermediary_id", cfg.Intermediary.ID).Info("System accounts seeded successfully")

	marked, err := engine.RebuildIndex(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to rebuild eligibility index")
	}
	logger.WithField("eligible_accounts", marked).Info("Eligibility index rebuilt")

	// 3. Start metrics listener
	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.WithField("addr", cfg.Server.MetricsAddr).Info("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	// 4. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger.WithField("component", "grpc")),
			grpcadapter.AuthInterceptor(cfg.Server.APIToken),
		),
	)

	grpcadapter.RegisterLedgerServer(grpcServer, grpcadapter.NewServer(transferService, engine))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.WithError(err).Fatalf("Failed to listen on %s", cfg.Server.GRPCAddr)
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("addr", cfg.Server.GRPCAddr).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Fatal("Failed to serve gRPC server")
		}
	}()

	// Graceful shutdown
	waitForShutdown(logger, grpcServer, metricsServer)
}

// openStore selects the persistence backend and returns its unit of work with a cleanup func
func openStore(ctx context.Context, cfg config.StoreConfig, logger *logrus.Logger) (domain.UnitOfWork, func()) {
	if cfg.Driver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store; ledger state is lost on restart")
		return memory.NewStore(), func() {}
	}

	// Simple retry while Postgres comes up
	var db *postgres.DB
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		db, err = postgres.NewDB(cfg.ConnStr)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("Database not ready, retrying")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database schema")
	}
	logger.Info("Database schema up to date")

	return postgres.NewStore(db), func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}
}

// openEligibilityIndex selects the eligibility index backend and returns it with a cleanup func
func openEligibilityIndex(ctx context.Context, cfg config.EligibilityConfig, logger *logrus.Logger) (domain.EligibilityIndex, func()) {
	if cfg.Backend == config.EligibilityBackendMemory {
		return memory.NewEligibilityIndex(), func() {}
	}

	index := cache.NewRedisEligibilityIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	if err := index.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to eligibility index")
	}
	logger.WithFields(logrus.Fields{
		"addr": cfg.RedisAddr,
		"key":  cfg.RedisKey,
	}).Info("Using redis eligibility index")

	return index, func() {
		if err := index.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close eligibility index")
		}
	}
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(logger *logrus.Logger, grpcServer *grpclib.Server, metricsServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Shutting down gracefully")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Failed to stop metrics server")
		}
	}
}
