package service

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/kafka"
	"github.com/anatoly-dev/go-chatpay/pkg/ledger"
	"github.com/anatoly-dev/go-chatpay/pkg/metrics"
	"github.com/anatoly-dev/go-chatpay/pkg/models"
	"github.com/anatoly-dev/go-chatpay/pkg/notify"
	"github.com/anatoly-dev/go-chatpay/pkg/presence"
	"github.com/anatoly-dev/go-chatpay/pkg/registry"
	"github.com/anatoly-dev/go-chatpay/pkg/websocket"
)

// topupConfirmationType is the event type the payment provider uses on
// the confirmation topic.
const topupConfirmationType = "topup_confirmed"

// LedgerService fronts the ledger store for the HTTP surface, binds
// wallet push channels, and feeds external top-up confirmations from
// Kafka into the same path.
type LedgerService struct {
	store    *ledger.Store
	presence *presence.Directory
	registry *registry.Registry
	router   *notify.Router
	consumer *kafka.Consumer
	logger   *zap.Logger
	metrics  *metrics.LedgerMetrics
	started  time.Time
}

func NewLedgerService(
	store *ledger.Store,
	directory *presence.Directory,
	walletRegistry *registry.Registry,
	router *notify.Router,
	consumer *kafka.Consumer,
	logger *zap.Logger,
) *LedgerService {
	service := &LedgerService{
		store:    store,
		presence: directory,
		registry: walletRegistry,
		router:   router,
		consumer: consumer,
		logger:   logger,
		started:  time.Now(),
	}

	// Balance changes push to the affected wallet channel in the order
	// they committed; the hook fires inside the account lock scope.
	store.SetOnChange(func(update *models.BalanceUpdate) {
		router.RouteBalance(update)
	})

	if consumer != nil {
		service.registerConfirmationHandlers()
	}

	return service
}

func (s *LedgerService) SetMetrics(metrics *metrics.LedgerMetrics) {
	s.metrics = metrics
}

func (s *LedgerService) registerConfirmationHandlers() {
	s.consumer.RegisterHandler(topupConfirmationType, func(confirmation *kafka.Confirmation) error {
		s.logger.Info("Handling external top-up confirmation",
			zap.String("userID", confirmation.UserID),
			zap.String("externalID", confirmation.ExternalID),
			zap.Int64("amount", confirmation.Amount))

		_, _, err := s.TopUp(confirmation.UserID, confirmation.Amount)
		return err
	})
}

// Balance returns the account snapshot, creating the account with a
// zero balance on first query.
func (s *LedgerService) Balance(userID string) models.Account {
	account := s.store.GetOrCreateAccount(userID)

	if s.metrics != nil {
		s.metrics.AccountsTotal.Set(float64(s.store.AccountCount()))
	}

	return account
}

func (s *LedgerService) TopUp(userID string, amount int64) (int64, *models.LedgerTransaction, error) {
	defer s.observeDuration(time.Now())

	balance, tx, err := s.store.TopUp(userID, amount)
	if err != nil {
		s.countRejection(err)
		return 0, nil, err
	}

	if s.metrics != nil {
		s.metrics.Topups.Inc()
		s.metrics.AccountsTotal.Set(float64(s.store.AccountCount()))
	}

	s.logger.Info("Balance topped up",
		zap.String("userID", userID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance))

	return balance, tx, nil
}

func (s *LedgerService) Transfer(fromID, toID string, amount int64, description string) (*ledger.TransferResult, error) {
	defer s.observeDuration(time.Now())

	result, err := s.store.Transfer(fromID, toID, amount, description)
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transfers.Inc()
		s.metrics.AccountsTotal.Set(float64(s.store.AccountCount()))
	}

	s.logger.Info("Transfer completed",
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.Int64("amount", amount))

	return result, nil
}

// Payment debits the payer and confirms to the till channel.
func (s *LedgerService) Payment(fromID, storeName string, amount int64, kassaID string) (int64, *models.LedgerTransaction, error) {
	defer s.observeDuration(time.Now())

	balance, tx, err := s.store.Payment(fromID, amount, "Payment: "+storeName)
	if err != nil {
		s.countRejection(err)
		return 0, nil, err
	}

	if s.metrics != nil {
		s.metrics.Payments.Inc()
	}

	s.router.RoutePaymentConfirmation(kassaID, &models.PaymentConfirmation{
		Status:        "success",
		Amount:        amount,
		UserID:        fromID,
		TransactionID: tx.ID,
	})

	s.logger.Info("Payment completed",
		zap.String("userID", fromID),
		zap.String("kassaID", kassaID),
		zap.String("store", storeName),
		zap.Int64("amount", amount))

	return balance, tx, nil
}

func (s *LedgerService) TransactionsFor(userID string, limit int) []*models.LedgerTransaction {
	return s.store.TransactionsFor(userID, limit)
}

func (s *LedgerService) OnlineUsers() []*models.User {
	return s.presence.Online()
}

func (s *LedgerService) Uptime() time.Duration {
	return time.Since(s.started)
}

func (s *LedgerService) UserCount() int {
	return s.presence.Count()
}

func (s *LedgerService) TransactionCount() int64 {
	return s.store.TransactionCount()
}

func (s *LedgerService) observeDuration(start time.Time) {
	if s.metrics != nil {
		s.metrics.OperationDuration.Observe(time.Since(start).Seconds())
	}
}

func (s *LedgerService) countRejection(err error) {
	if s.metrics == nil {
		return
	}

	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		s.metrics.RejectedOperations.WithLabelValues("invalid_amount").Inc()
	case errors.Is(err, ledger.ErrInsufficientFunds):
		s.metrics.RejectedOperations.WithLabelValues("insufficient_funds").Inc()
	case errors.Is(err, ledger.ErrSameAccount):
		s.metrics.RejectedOperations.WithLabelValues("same_account").Inc()
	default:
		s.metrics.RejectedOperations.WithLabelValues("other").Inc()
	}
}

// HandleEvent implements websocket.EventHandler for the wallet push
// endpoint. The only inbound event is join, which binds the socket to
// a user or kassa identity.
func (s *LedgerService) HandleEvent(client websocket.Session, event *models.InboundEvent) {
	if event.Type != models.EventTypeJoin {
		s.logger.Warn("Unknown wallet event type",
			zap.String("type", string(event.Type)),
			zap.String("clientID", client.SessionID()))
		return
	}

	var join models.JoinPayload
	if err := json.Unmarshal(event.Payload, &join); err != nil || join.ID == "" {
		client.Send(&models.Event{
			Type:    models.EventTypeError,
			Payload: &models.ErrorPayload{Message: "id is required"},
		})
		return
	}

	s.registry.Register(join.ID, client)
	client.SetIdentity(join.ID)

	s.logger.Info("Wallet channel joined", zap.String("id", join.ID))
}

func (s *LedgerService) HandleDisconnect(client websocket.Session) {
	id := client.Identity()
	if id == "" {
		return
	}
	s.registry.Unregister(id, client)
}
