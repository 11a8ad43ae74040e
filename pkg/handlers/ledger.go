package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/ledger"
	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

// Ledger is the narrow interface the HTTP surface needs. Defined here
// to keep the handlers decoupled from the service implementation.
type Ledger interface {
	Balance(userID string) models.Account
	TopUp(userID string, amount int64) (int64, *models.LedgerTransaction, error)
	Transfer(fromID, toID string, amount int64, description string) (*ledger.TransferResult, error)
	Payment(fromID, storeName string, amount int64, kassaID string) (int64, *models.LedgerTransaction, error)
	TransactionsFor(userID string, limit int) []*models.LedgerTransaction
	OnlineUsers() []*models.User
	Uptime() time.Duration
	UserCount() int
	TransactionCount() int64
}

type LedgerHandler struct {
	ledger   Ledger
	validate *validator.Validate
	logger   *zap.Logger
}

func NewLedgerHandler(ledger Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/balance/{userId}", h.handleBalance)
	r.Post("/topup", h.handleTopup)
	r.Get("/transactions/{userId}", h.handleTransactions)
	r.Get("/status", h.handleStatus)
	r.Get("/users/online", h.handleOnlineUsers)
	r.Post("/transfer", h.handleTransfer)
	r.Post("/payment", h.handlePayment)
}

type topupRequest struct {
	UserID string `json:"userId" validate:"required"`
	Amount int64  `json:"amount" validate:"required"`
}

type transferRequest struct {
	FromUserID  string `json:"fromUserId" validate:"required"`
	ToUserID    string `json:"toUserId" validate:"required"`
	Amount      int64  `json:"amount" validate:"required"`
	Description string `json:"description"`
}

type paymentRequest struct {
	FromUserID string `json:"fromUserId" validate:"required"`
	StoreName  string `json:"storeName" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	KassaID    string `json:"kassaId" validate:"required"`
}

func (h *LedgerHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	account := h.ledger.Balance(userID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"balance": account.Balance,
		"userId":  account.UserID,
	})
}

func (h *LedgerHandler) handleTopup(w http.ResponseWriter, r *http.Request) {
	var req topupRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, tx, err := h.ledger.TopUp(req.UserID, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"balance":     balance,
		"transaction": tx,
	})
}

func (h *LedgerHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = parsed
	}

	transactions := h.ledger.TransactionsFor(userID, limit)
	if transactions == nil {
		transactions = []*models.LedgerTransaction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": transactions,
	})
}

func (h *LedgerHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"uptime":       int64(h.ledger.Uptime().Seconds()),
		"users":        h.ledger.UserCount(),
		"transactions": h.ledger.TransactionCount(),
		"timestamp":    time.Now(),
	})
}

func (h *LedgerHandler) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	users := h.ledger.OnlineUsers()
	if users == nil {
		users = []*models.User{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(users),
		"users":   users,
	})
}

func (h *LedgerHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.ledger.Transfer(req.FromUserID, req.ToUserID, req.Amount, req.Description)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"newBalanceFrom": result.NewBalanceFrom,
		"newBalanceTo":   result.NewBalanceTo,
	})
}

func (h *LedgerHandler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, tx, err := h.ledger.Payment(req.FromUserID, req.StoreName, req.Amount, req.KassaID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"newBalance":  balance,
		"transaction": tx,
	})
}

// decode parses and validates the request body. Validation failures
// answer 400 before any state is touched.
func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}

	if err := h.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			writeError(w, http.StatusBadRequest, requestFieldMessage(fieldErrors[0]))
		} else {
			writeError(w, http.StatusBadRequest, "invalid request")
		}
		return false
	}

	return true
}

func requestFieldMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	// JSON field names are lower camel case versions of the struct fields.
	switch field {
	case "UserID":
		field = "userId"
	case "FromUserID":
		field = "fromUserId"
	case "ToUserID":
		field = "toUserId"
	case "KassaID":
		field = "kassaId"
	case "StoreName":
		field = "storeName"
	case "Amount":
		field = "amount"
	}

	if fieldError.Tag() == "gt" {
		return field + " must be positive"
	}
	return field + " is required"
}

func (h *LedgerHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Ledger operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
