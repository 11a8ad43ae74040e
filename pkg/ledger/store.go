package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

var (
	ErrInvalidAmount     = errors.New("amount is outside the accepted range")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
)

const DefaultTransactionsLimit = 20

// Limits bounds a single topup or transfer, in integer currency units,
// and caps how many transactions a history query returns by default.
type Limits struct {
	MinAmount         int64
	MaxAmount         int64
	TransactionsLimit int
}

var DefaultLimits = Limits{
	MinAmount:         100,
	MaxAmount:         5000,
	TransactionsLimit: DefaultTransactionsLimit,
}

// ChangeFunc is invoked for every committed balance change, while the
// affected account lock is still held. Notifications therefore reach
// the router in commit order per account.
type ChangeFunc func(update *models.BalanceUpdate)

type account struct {
	mu           sync.Mutex
	state        models.Account
	transactions []*models.LedgerTransaction
}

// Store keeps per-user balances and an append-only transaction log.
// The accounts map has its own lock; every account serializes its own
// mutations, so operations on disjoint accounts run concurrently.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	limits   Limits
	onChange ChangeFunc

	txMu    sync.Mutex
	txCount int64
}

func New(limits Limits) *Store {
	if limits.MinAmount <= 0 || limits.MaxAmount < limits.MinAmount {
		limits.MinAmount = DefaultLimits.MinAmount
		limits.MaxAmount = DefaultLimits.MaxAmount
	}
	if limits.TransactionsLimit <= 0 {
		limits.TransactionsLimit = DefaultTransactionsLimit
	}
	return &Store{
		accounts: make(map[string]*account),
		limits:   limits,
	}
}

func (s *Store) SetOnChange(fn ChangeFunc) {
	s.onChange = fn
}

func (s *Store) getOrCreate(userID string) *account {
	s.mu.RLock()
	acc, ok := s.accounts[userID]
	s.mu.RUnlock()
	if ok {
		return acc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok = s.accounts[userID]; ok {
		return acc
	}
	acc = &account{
		state: models.Account{
			UserID:    userID,
			CreatedAt: time.Now(),
		},
	}
	s.accounts[userID] = acc
	return acc
}

// GetOrCreateAccount returns a snapshot of the account, creating it
// with a zero balance on first sight.
func (s *Store) GetOrCreateAccount(userID string) models.Account {
	acc := s.getOrCreate(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.state
}

// TopUp credits userID with amount. Amount must be inside the
// configured limits, bounds inclusive.
func (s *Store) TopUp(userID string, amount int64) (int64, *models.LedgerTransaction, error) {
	if amount < s.limits.MinAmount || amount > s.limits.MaxAmount {
		return 0, nil, fmt.Errorf("%w: got %d, accepted [%d, %d]",
			ErrInvalidAmount, amount, s.limits.MinAmount, s.limits.MaxAmount)
	}

	acc := s.getOrCreate(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	now := time.Now()
	acc.state.Balance += amount
	acc.state.LastTopupAt = now

	tx := &models.LedgerTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        models.TransactionKindTopup,
		Amount:      amount,
		Timestamp:   now,
		Description: "Balance top-up",
	}
	s.appendLocked(acc, tx)
	s.notifyLocked(acc, tx)

	return acc.state.Balance, tx, nil
}

// TransferResult reports both post-transfer balances and the pair of
// correlated transaction records.
type TransferResult struct {
	NewBalanceFrom int64
	NewBalanceTo   int64
	OutTx          *models.LedgerTransaction
	InTx           *models.LedgerTransaction
}

// Transfer atomically moves amount from one account to the other. Both
// account locks are taken in lexicographic id order, so concurrent
// transfers cannot deadlock, and no reader observes a debited sender
// next to an uncredited recipient.
func (s *Store) Transfer(fromID, toID string, amount int64, description string) (*TransferResult, error) {
	if fromID == toID {
		return nil, ErrSameAccount
	}
	if amount < s.limits.MinAmount || amount > s.limits.MaxAmount {
		return nil, fmt.Errorf("%w: got %d, accepted [%d, %d]",
			ErrInvalidAmount, amount, s.limits.MinAmount, s.limits.MaxAmount)
	}

	from := s.getOrCreate(fromID)
	to := s.getOrCreate(toID)

	first, second := from, to
	if toID < fromID {
		first, second = to, from
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if from.state.Balance < amount {
		return nil, fmt.Errorf("%w: balance %d, requested %d",
			ErrInsufficientFunds, from.state.Balance, amount)
	}

	now := time.Now()
	correlationID := uuid.New().String()
	if description == "" {
		description = "Transfer"
	}

	from.state.Balance -= amount
	to.state.Balance += amount

	outTx := &models.LedgerTransaction{
		ID:            correlationID + ":out",
		UserID:        fromID,
		RelatedUserID: toID,
		Kind:          models.TransactionKindTransferOut,
		Amount:        -amount,
		Timestamp:     now,
		Description:   description,
	}
	inTx := &models.LedgerTransaction{
		ID:            correlationID + ":in",
		UserID:        toID,
		RelatedUserID: fromID,
		Kind:          models.TransactionKindTransferIn,
		Amount:        amount,
		Timestamp:     now,
		Description:   description,
	}
	s.appendLocked(from, outTx)
	s.appendLocked(to, inTx)
	s.notifyLocked(from, outTx)
	s.notifyLocked(to, inTx)

	return &TransferResult{
		NewBalanceFrom: from.state.Balance,
		NewBalanceTo:   to.state.Balance,
		OutTx:          outTx,
		InTx:           inTx,
	}, nil
}

// Payment debits userID only; there is no receiving account, so any
// positive amount covered by the balance is accepted.
func (s *Store) Payment(userID string, amount int64, description string) (int64, *models.LedgerTransaction, error) {
	if amount <= 0 {
		return 0, nil, fmt.Errorf("%w: got %d, must be positive", ErrInvalidAmount, amount)
	}

	acc := s.getOrCreate(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.state.Balance < amount {
		return 0, nil, fmt.Errorf("%w: balance %d, requested %d",
			ErrInsufficientFunds, acc.state.Balance, amount)
	}

	acc.state.Balance -= amount

	tx := &models.LedgerTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        models.TransactionKindQRPayment,
		Amount:      -amount,
		Timestamp:   time.Now(),
		Description: description,
	}
	s.appendLocked(acc, tx)
	s.notifyLocked(acc, tx)

	return acc.state.Balance, tx, nil
}

// TransactionsFor lists the account's transactions, newest first,
// truncated to limit (the configured default when limit <= 0).
func (s *Store) TransactionsFor(userID string, limit int) []*models.LedgerTransaction {
	if limit <= 0 {
		limit = s.limits.TransactionsLimit
	}

	acc := s.getOrCreate(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	n := len(acc.transactions)
	if limit > n {
		limit = n
	}

	txs := make([]*models.LedgerTransaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		c := *acc.transactions[i]
		txs = append(txs, &c)
	}
	return txs
}

func (s *Store) AccountCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *Store) TransactionCount() int64 {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.txCount
}

func (s *Store) appendLocked(acc *account, tx *models.LedgerTransaction) {
	acc.transactions = append(acc.transactions, tx)
	s.txMu.Lock()
	s.txCount++
	s.txMu.Unlock()
}

func (s *Store) notifyLocked(acc *account, tx *models.LedgerTransaction) {
	if s.onChange == nil {
		return
	}
	txCopy := *tx
	s.onChange(&models.BalanceUpdate{
		UserID:      acc.state.UserID,
		Balance:     acc.state.Balance,
		Transaction: &txCopy,
	})
}
