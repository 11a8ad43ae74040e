package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

func newTestStore() *Store {
	return New(DefaultLimits)
}

func fund(t *testing.T, s *Store, userID string, amount int64) {
	t.Helper()
	_, _, err := s.TopUp(userID, amount)
	require.NoError(t, err)
}

func TestGetOrCreateAccount_StartsAtZero(t *testing.T) {
	s := newTestStore()

	account := s.GetOrCreateAccount("alice")
	assert.Equal(t, "alice", account.UserID)
	assert.Equal(t, int64(0), account.Balance)
	assert.False(t, account.CreatedAt.IsZero())

	again := s.GetOrCreateAccount("alice")
	assert.Equal(t, account.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1, s.AccountCount())
}

func TestTopUp_AmountBoundaries(t *testing.T) {
	s := newTestStore()

	_, _, err := s.TopUp("alice", 50)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = s.TopUp("alice", 6000)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	balance, tx, err := s.TopUp("alice", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Equal(t, models.TransactionKindTopup, tx.Kind)
	assert.Equal(t, int64(100), tx.Amount)

	balance, _, err = s.TopUp("alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5100), balance)
}

func TestTransfer_MovesFundsAtomically(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 200)

	result, err := s.Transfer("alice", "bob", 150, "")
	require.NoError(t, err)

	assert.Equal(t, int64(50), result.NewBalanceFrom)
	assert.Equal(t, int64(150), result.NewBalanceTo)

	assert.Equal(t, models.TransactionKindTransferOut, result.OutTx.Kind)
	assert.Equal(t, int64(-150), result.OutTx.Amount)
	assert.Equal(t, "bob", result.OutTx.RelatedUserID)

	assert.Equal(t, models.TransactionKindTransferIn, result.InTx.Kind)
	assert.Equal(t, int64(150), result.InTx.Amount)
	assert.Equal(t, "alice", result.InTx.RelatedUserID)

	// The two records are correlated: same timestamp, same id prefix.
	assert.Equal(t, result.OutTx.Timestamp, result.InTx.Timestamp)

	assert.Equal(t, int64(50), s.GetOrCreateAccount("alice").Balance)
	assert.Equal(t, int64(150), s.GetOrCreateAccount("bob").Balance)
}

func TestTransfer_SameAccount(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 5000)

	_, err := s.Transfer("alice", "alice", 100, "")
	assert.ErrorIs(t, err, ErrSameAccount)
}

func TestTransfer_InvalidAmount(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 5000)

	_, err := s.Transfer("alice", "bob", 99, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.Transfer("alice", "bob", 5001, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 100)

	_, err := s.Transfer("alice", "bob", 200, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing moved, nothing recorded for bob.
	assert.Equal(t, int64(100), s.GetOrCreateAccount("alice").Balance)
	assert.Equal(t, int64(0), s.GetOrCreateAccount("bob").Balance)
	assert.Empty(t, s.TransactionsFor("bob", 0))
}

func TestPayment_DebitsSingleSide(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 500)

	balance, tx, err := s.Payment("alice", 120, "Payment: coffee")
	require.NoError(t, err)
	assert.Equal(t, int64(380), balance)
	assert.Equal(t, models.TransactionKindQRPayment, tx.Kind)
	assert.Equal(t, int64(-120), tx.Amount)
}

func TestPayment_Rejections(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 100)

	_, _, err := s.Payment("alice", 0, "Payment: nothing")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = s.Payment("alice", -5, "Payment: refund")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = s.Payment("alice", 500, "Payment: too much")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, int64(100), s.GetOrCreateAccount("alice").Balance)
}

func TestTransactionsFor_NewestFirstAndLimited(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 25; i++ {
		fund(t, s, "alice", 100)
	}

	txs := s.TransactionsFor("alice", 0)
	assert.Len(t, txs, DefaultTransactionsLimit)

	txs = s.TransactionsFor("alice", 5)
	assert.Len(t, txs, 5)
	for i := 1; i < len(txs); i++ {
		assert.False(t, txs[i-1].Timestamp.Before(txs[i].Timestamp))
	}

	txs = s.TransactionsFor("alice", 100)
	assert.Len(t, txs, 25)
}

func TestOnChange_FiresInCommitOrder(t *testing.T) {
	s := newTestStore()

	var updates []*models.BalanceUpdate
	s.SetOnChange(func(update *models.BalanceUpdate) {
		updates = append(updates, update)
	})

	fund(t, s, "alice", 300)
	result, err := s.Transfer("alice", "bob", 200, "")
	require.NoError(t, err)

	require.Len(t, updates, 3)
	assert.Equal(t, "alice", updates[0].UserID)
	assert.Equal(t, int64(300), updates[0].Balance)
	assert.Equal(t, "alice", updates[1].UserID)
	assert.Equal(t, int64(100), updates[1].Balance)
	assert.Equal(t, "bob", updates[2].UserID)
	assert.Equal(t, int64(200), updates[2].Balance)
	assert.Equal(t, result.InTx.ID, updates[2].Transaction.ID)
}

func TestConcurrentOperations_NoLostUpdates(t *testing.T) {
	s := newTestStore()

	const workers = 20
	const iterations = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_, _, err := s.TopUp("alice", 100)
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*iterations*100), s.GetOrCreateAccount("alice").Balance)
	assert.Equal(t, int64(workers*iterations), s.TransactionCount())
}

func TestConcurrentTransfers_BalanceNeverNegative(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 1000)
	fund(t, s, "bob", 1000)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			from, to := "alice", "bob"
			if n%2 == 0 {
				from, to = to, from
			}
			for i := 0; i < 20; i++ {
				s.Transfer(from, to, 300, "")
				s.Payment(from, 100, "Payment: stress")
			}
		}(w)
	}
	wg.Wait()

	aliceBalance := s.GetOrCreateAccount("alice").Balance
	bobBalance := s.GetOrCreateAccount("bob").Balance
	assert.GreaterOrEqual(t, aliceBalance, int64(0))
	assert.GreaterOrEqual(t, bobBalance, int64(0))
}

func TestConcurrentTransfers_OpposingDirectionsNoDeadlock(t *testing.T) {
	s := newTestStore()
	fund(t, s, "alice", 5000)
	fund(t, s, "bob", 5000)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if n%2 == 0 {
					s.Transfer("alice", "bob", 100, "")
				} else {
					s.Transfer("bob", "alice", 100, "")
				}
			}
		}(w)
	}
	wg.Wait()

	total := s.GetOrCreateAccount("alice").Balance + s.GetOrCreateAccount("bob").Balance
	assert.Equal(t, int64(10000), total)
}

func TestDisjointAccounts_ProceedIndependently(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n)
			for i := 0; i < 50; i++ {
				s.TopUp(userID, 100)
			}
		}(w)
	}
	wg.Wait()

	for n := 0; n < 10; n++ {
		userID := fmt.Sprintf("user-%d", n)
		assert.Equal(t, int64(5000), s.GetOrCreateAccount(userID).Balance)
	}
}
