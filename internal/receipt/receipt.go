// Package receipt renders committed ledger entries into a JSON document and a
// printable PDF, stores both and announces the posting on the event bus.
package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

type Receipt struct {
	ReceiptId     string `json:"receipt_id"`
	TransactionId int64  `json:"transaction_id"`
	OwnerId       int64  `json:"owner_id"`
	AccountId     int64  `json:"account_id"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	CorrelationId string `json:"correlation_id"`
	CreatedAt     string `json:"created_at"`
}

func Id(entryId int64) string {
	return "tx-" + strconv.FormatInt(entryId, 10)
}

func FromEntry(entry ledger.Entry) Receipt {
	return Receipt{
		ReceiptId:     Id(entry.Id),
		TransactionId: entry.Id,
		OwnerId:       entry.OwnerId,
		AccountId:     entry.AccountId,
		Kind:          string(entry.Kind),
		Amount:        ledger.FormatAmount(entry.Amount),
		CorrelationId: entry.CorrelationId.String(),
		CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func RenderJSON(r Receipt) ([]byte, error) {
	return json.MarshalIndent(r, "", "    ")
}

// RenderPDF lays the receipt out on Letter pages with a page footer.
func RenderPDF(r Receipt) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Transaction Receipt "+r.ReceiptId, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-36)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 12, fmt.Sprintf("%s - page %d of {nb}", r.ReceiptId, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 24, "Transaction Receipt")
	pdf.Ln(48)

	pdf.SetFont("Helvetica", "", 12)
	lines := [][2]string{
		{"Receipt ID", r.ReceiptId},
		{"Transaction ID", strconv.FormatInt(r.TransactionId, 10)},
		{"User ID", strconv.FormatInt(r.OwnerId, 10)},
		{"Account ID", strconv.FormatInt(r.AccountId, 10)},
		{"Type", r.Kind},
		{"Amount", "$" + r.Amount},
		{"Date", r.CreatedAt},
		{"Reference", r.CorrelationId},
	}
	for _, line := range lines {
		pdf.CellFormat(120, 20, line[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 20, line[1], "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf receipt %s: %w", r.ReceiptId, err)
	}
	return buf.Bytes(), nil
}
