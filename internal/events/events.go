package events

import (
	"context"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// TransactionPosted is published once per committed ledger entry.
type TransactionPosted struct {
	ReceiptId     string    `json:"receipt_id"`
	TransactionId int64     `json:"transaction_id"`
	CorrelationId string    `json:"correlation_id"`
	OwnerId       int64     `json:"owner_id"`
	AccountId     int64     `json:"account_id"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}
