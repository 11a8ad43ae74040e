package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/internal/service"
	"github.com/anatoly-dev/go-chatpay/pkg/chatstore"
	"github.com/anatoly-dev/go-chatpay/pkg/config"
	"github.com/anatoly-dev/go-chatpay/pkg/handlers"
	"github.com/anatoly-dev/go-chatpay/pkg/kafka"
	"github.com/anatoly-dev/go-chatpay/pkg/ledger"
	"github.com/anatoly-dev/go-chatpay/pkg/metrics"
	"github.com/anatoly-dev/go-chatpay/pkg/notify"
	"github.com/anatoly-dev/go-chatpay/pkg/presence"
	"github.com/anatoly-dev/go-chatpay/pkg/registry"
	"github.com/anatoly-dev/go-chatpay/pkg/websocket"
)

type Application struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	instanceID string

	chatRegistry   *registry.Registry
	walletRegistry *registry.Registry
	directory      *presence.Directory
	chatStore      *chatstore.Store
	ledgerStore    *ledger.Store
	router         *notify.Router

	chatManager   *websocket.Manager
	walletManager *websocket.Manager
	kafkaConsumer *kafka.Consumer

	chatService   *service.ChatService
	ledgerService *service.LedgerService

	metrics        *metrics.Metrics
	metricsHandler *metrics.MetricsHandler

	chatWSHandler   *handlers.WebSocketHandler
	walletWSHandler *handlers.WebSocketHandler
	ledgerHandler   *handlers.LedgerHandler
	healthHandler   *handlers.HealthCheckHandler
	server          *service.Server
}

func NewApplication(configPath string) *Application {
	return &Application{
		configPath: configPath,
		instanceID: uuid.New().String(),
	}
}

func (a *Application) Init() error {
	if err := a.initConfig(); err != nil {
		return err
	}

	if err := a.initLogger(); err != nil {
		return err
	}

	a.logger.Info("Starting chatpay server",
		zap.String("instanceID", a.instanceID),
		zap.String("version", "1.0.0"))

	a.initCore()
	a.initWebsocket()

	if err := a.initKafka(); err != nil {
		return err
	}

	a.initServices()
	a.initMetrics()
	a.initHandlers()
	a.initServer()

	return nil
}

func (a *Application) initConfig() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *Application) initLogger() error {
	logger, err := config.NewLogger(&a.cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *Application) initCore() {
	a.chatRegistry = registry.New()
	a.walletRegistry = registry.New()
	a.directory = presence.NewDirectory()
	a.chatStore = chatstore.New()
	a.ledgerStore = ledger.New(ledger.Limits{
		MinAmount:         a.cfg.Ledger.MinAmount,
		MaxAmount:         a.cfg.Ledger.MaxAmount,
		TransactionsLimit: a.cfg.Ledger.TransactionsLimit,
	})
	a.router = notify.NewRouter(a.chatRegistry, a.walletRegistry, a.logger)
}

func (a *Application) initWebsocket() {
	a.chatManager = websocket.NewManager(a.logger, a.cfg.Websocket.PingInterval, a.cfg.Websocket.SendBufferSize)
	a.walletManager = websocket.NewManager(a.logger, a.cfg.Websocket.PingInterval, a.cfg.Websocket.SendBufferSize)
}

func (a *Application) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		a.logger.Info("Kafka consumer disabled")
		return nil
	}

	kafkaConsumer, err := kafka.NewConsumer(&a.cfg.Kafka, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	a.kafkaConsumer = kafkaConsumer
	return nil
}

func (a *Application) initServices() {
	a.chatService = service.NewChatService(a.chatStore, a.directory, a.chatRegistry, a.router, a.logger)
	a.ledgerService = service.NewLedgerService(a.ledgerStore, a.directory, a.walletRegistry, a.router, a.kafkaConsumer, a.logger)
}

func (a *Application) initMetrics() {
	a.metrics = metrics.NewMetrics("chatpay")
	a.metricsHandler = metrics.NewMetricsHandler(a.metrics, a.logger)

	a.chatManager.SetMetrics(&a.metrics.WebSocket)
	a.walletManager.SetMetrics(&a.metrics.WebSocket)
	a.chatService.SetMetrics(&a.metrics.Chat)
	a.ledgerService.SetMetrics(&a.metrics.Ledger)

	if a.kafkaConsumer != nil {
		a.kafkaConsumer.SetMetrics(&a.metrics.Kafka)
	}
}

func (a *Application) initHandlers() {
	a.chatWSHandler = handlers.NewWebSocketHandler(a.chatManager, a.chatService, a.logger)
	a.walletWSHandler = handlers.NewWebSocketHandler(a.walletManager, a.ledgerService, a.logger)
	a.ledgerHandler = handlers.NewLedgerHandler(a.ledgerService, a.logger)
	a.healthHandler = handlers.NewHealthCheckHandler(a.chatManager, a.logger)
}

func (a *Application) initServer() {
	a.server = service.NewServer(
		a.chatWSHandler,
		a.walletWSHandler,
		a.ledgerHandler,
		a.healthHandler,
		a.metricsHandler,
		a.kafkaConsumer,
		a.logger,
		&a.cfg.Server,
	)
}

func (a *Application) Run() error {
	return a.server.Start()
}

func (a *Application) Stop() {
	if a.logger != nil {
		a.logger.Sync()
	}
}

func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatpay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := NewApplication(configPath)
			if err := app.Init(); err != nil {
				return err
			}
			defer app.Stop()
			return app.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}
