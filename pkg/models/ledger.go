package models

import "time"

type Account struct {
	UserID      string    `json:"userId"`
	Balance     int64     `json:"balance"`
	CreatedAt   time.Time `json:"createdAt"`
	LastTopupAt time.Time `json:"lastTopupAt,omitempty"`
}

type TransactionKind string

const (
	TransactionKindTopup       TransactionKind = "topup"
	TransactionKindTransferOut TransactionKind = "transfer_out"
	TransactionKindTransferIn  TransactionKind = "transfer_in"
	TransactionKindQRPayment   TransactionKind = "qr_payment"
)

type LedgerTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	RelatedUserID string          `json:"relatedUserId,omitempty"`
	Kind          TransactionKind `json:"kind"`
	Amount        int64           `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	Description   string          `json:"description,omitempty"`
}

type BalanceUpdate struct {
	UserID      string             `json:"userId"`
	Balance     int64              `json:"balance"`
	Transaction *LedgerTransaction `json:"transaction,omitempty"`
}

type PaymentConfirmation struct {
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	UserID        string `json:"userId"`
	TransactionID string `json:"transactionId"`
}
