package receipt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JhonesBR/go-bank-ledger/internal/events"
	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

// Emitter implements ledger.ReceiptEmitter.
type Emitter struct {
	storage   Storage
	publisher events.Publisher
	logger    *zap.Logger
}

var _ ledger.ReceiptEmitter = (*Emitter)(nil)

func NewEmitter(storage Storage, publisher events.Publisher, logger *zap.Logger) *Emitter {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{storage: storage, publisher: publisher, logger: logger}
}

// Emit writes both documents for the entry. A failed event publish is only
// logged: the receipt itself was written.
func (e *Emitter) Emit(ctx context.Context, entry ledger.Entry) (ledger.ReceiptRef, error) {
	r := FromEntry(entry)
	ref := ledger.ReceiptRef{EntryId: entry.Id, ReceiptId: r.ReceiptId}

	doc, err := RenderJSON(r)
	if err != nil {
		return ref, fmt.Errorf("render json receipt %s: %w", r.ReceiptId, err)
	}
	if ref.JSONLocation, err = e.storage.Store(ctx, fmt.Sprintf("transaction_%d.json", entry.Id), "application/json", doc); err != nil {
		return ref, err
	}

	pdf, err := RenderPDF(r)
	if err != nil {
		return ref, err
	}
	if ref.PDFLocation, err = e.storage.Store(ctx, fmt.Sprintf("transaction_%d.pdf", entry.Id), "application/pdf", pdf); err != nil {
		return ref, err
	}

	event := events.TransactionPosted{
		ReceiptId:     r.ReceiptId,
		TransactionId: entry.Id,
		CorrelationId: r.CorrelationId,
		OwnerId:       entry.OwnerId,
		AccountId:     entry.AccountId,
		Kind:          r.Kind,
		Amount:        r.Amount,
		OccurredAt:    entry.CreatedAt,
	}
	if err := e.publisher.Publish(ctx, r.CorrelationId, event); err != nil {
		e.logger.Warn("transaction event not published",
			zap.String("receipt_id", r.ReceiptId),
			zap.Error(err),
		)
	}

	return ref, nil
}
