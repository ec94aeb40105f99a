package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/events"
	"github.com/Dan9191/retail-banking/internal/handler"
	"github.com/Dan9191/retail-banking/internal/integrations/cbr"
	"github.com/Dan9191/retail-banking/internal/middleware"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/Dan9191/retail-banking/internal/scheduler"
	"github.com/Dan9191/retail-banking/internal/service"
	"github.com/Dan9191/retail-banking/internal/utils/email"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, dialect, err := repository.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewRepository(db, dialect)
	if err := repo.Migrate(context.Background()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize integrations
	cbrClient := cbr.NewCBRClient(cfg, logger)
	opts := []service.Option{service.WithConverter(cbrClient)}

	var mailer *email.Sender
	if cfg.EmailEnabled() {
		mailer = email.NewSender(cfg, logger)
		opts = append(opts, service.WithNotifier(mailer))
	} else {
		logger.Info("SMTP_HOST not set, email notifications disabled")
	}

	if cfg.EventsEnabled() {
		publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		opts = append(opts, service.WithEventPublisher(publisher))
	} else {
		logger.Info("RABBITMQ_URL not set, domain events disabled")
	}

	// Initialize layers
	svc := service.NewService(repo, repository.NewTxManager(db, logger), logger, cfg, opts...)
	h := handler.NewHandler(svc, cbrClient, logger)
	router := handler.NewRouter(h, middleware.AuthMiddleware(cfg))

	// Payment reminders need a mailbox to send from
	var jobs *scheduler.Scheduler
	if mailer != nil {
		jobs, err = scheduler.New(svc, mailer, cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to create scheduler: %v", err)
		}
		jobs.Start()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if jobs != nil {
		select {
		case <-jobs.Stop().Done():
		case <-ctx.Done():
		}
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
