package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/config"
	"github.com/anatoly-dev/go-chatpay/pkg/handlers"
	"github.com/anatoly-dev/go-chatpay/pkg/kafka"
	"github.com/anatoly-dev/go-chatpay/pkg/metrics"
)

type Server struct {
	server          *http.Server
	chatWSHandler   *handlers.WebSocketHandler
	walletWSHandler *handlers.WebSocketHandler
	ledgerHandler   *handlers.LedgerHandler
	healthHandler   *handlers.HealthCheckHandler
	metricsHandler  *metrics.MetricsHandler
	kafkaConsumer   *kafka.Consumer
	logger          *zap.Logger
	cfg             *config.ServerConfig
}

func NewServer(
	chatWSHandler *handlers.WebSocketHandler,
	walletWSHandler *handlers.WebSocketHandler,
	ledgerHandler *handlers.LedgerHandler,
	healthHandler *handlers.HealthCheckHandler,
	metricsHandler *metrics.MetricsHandler,
	kafkaConsumer *kafka.Consumer,
	logger *zap.Logger,
	cfg *config.ServerConfig,
) *Server {
	return &Server{
		chatWSHandler:   chatWSHandler,
		walletWSHandler: walletWSHandler,
		ledgerHandler:   ledgerHandler,
		healthHandler:   healthHandler,
		metricsHandler:  metricsHandler,
		kafkaConsumer:   kafkaConsumer,
		logger:          logger,
		cfg:             cfg,
	}
}

func (s *Server) Start() error {
	router := chi.NewRouter()
	router.Use(s.metricsMiddleware)

	router.Get("/ws/chat", s.chatWSHandler.HandleConnection)
	router.Get("/ws/ledger", s.walletWSHandler.HandleConnection)
	router.Get("/health", s.healthHandler.HandleHealthCheck)

	if s.metricsHandler != nil {
		router.Handle("/metrics", s.metricsHandler.Handler())
	}

	router.Route("/api", s.ledgerHandler.RegisterRoutes)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Start(); err != nil {
			return fmt.Errorf("failed to start Kafka consumer: %w", err)
		}
	}

	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.cfg.Port))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	return s.waitForShutdown()
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsHandler == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.metricsHandler.RecordHTTPRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	s.logger.Info("Received shutdown signal")

	shutdownTimeout := 30 * time.Second
	if s.cfg.ShutdownTimeout > 0 {
		shutdownTimeout = s.cfg.ShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.shutdown(ctx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Performing controlled shutdown")
	return s.shutdown(ctx)
}

func (s *Server) shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down services")

	if s.kafkaConsumer != nil {
		s.kafkaConsumer.Stop()
	}

	if err := s.chatWSHandler.CloseConnections(ctx); err != nil {
		s.logger.Error("Error closing chat WebSocket connections", zap.Error(err))
	}
	if err := s.walletWSHandler.CloseConnections(ctx); err != nil {
		s.logger.Error("Error closing wallet WebSocket connections", zap.Error(err))
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped gracefully")
	return nil
}
