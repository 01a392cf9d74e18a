package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"khata/internal/amqp"
	"khata/internal/cli"
	"khata/internal/engine"
	apphttp "khata/internal/http"
	applog "khata/internal/log"
	"khata/internal/services"
)

func main() {
	cli.LoadEnvFile()
	slogger := cli.SetupLogger()
	logger := applog.New(applog.Config{Component: applog.ComponentApp, Handler: slogger.Handler()})

	cfg := cli.LoadAndValidateConfig(slogger)

	sqliteRepo := cli.InitSQLite(slogger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// AMQP is optional at startup; without it the worker's periodic sweep
	// still mirrors entries to the ledger.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger mirroring falls back to the periodic sweep", "error", err)
		} else {
			amqpClient = client
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	expenseService := services.NewExpenseService(sqliteRepo, amqpClient)
	messageEngine := engine.New(sqliteRepo)

	srv := apphttp.NewServer(":"+cfg.Port, logger, messageEngine, expenseService, sqliteRepo)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(slogger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting khata server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
