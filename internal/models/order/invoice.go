package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CaptureOnline requests the payment to be captured when the invoice
// is registered.
const CaptureOnline = "online"

// Invoice covers the not-yet-invoiced remainder of an order.
type Invoice struct {
	CreatedAt   time.Time
	IncrementID string
	CaptureCase string
	Comments    []string
	GrandTotal  decimal.Decimal
	Qty         decimal.Decimal
	OrderID     int64
	ID          uuid.UUID
}

// PrepareInvoice builds an invoice for everything still invoiceable on the
// order. It does not mutate the order; call Register on the result.
func (o *Order) PrepareInvoice() (*Invoice, error) {
	if ok, reason := o.CanInvoice(); !ok {
		return nil, &TransitionError{Op: "invoice", Reason: reason}
	}

	return &Invoice{
		ID:          uuid.New(),
		IncrementID: o.IncrementID + "-" + uuid.NewString()[:8],
		OrderID:     o.ID,
		GrandTotal:  o.GrandTotal.Sub(o.TotalInvoiced),
		Qty:         o.QtyOrdered.Sub(o.QtyInvoiced),
		CaptureCase: CaptureOnline,
		CreatedAt:   time.Now(),
	}, nil
}

// AddComment appends a comment to the invoice.
func (i *Invoice) AddComment(comment string) {
	i.Comments = append(i.Comments, comment)
}

// Register applies the invoice to its order, advancing the invoiced
// totals and marking the order as in process.
func (i *Invoice) Register(o *Order) {
	o.TotalInvoiced = o.TotalInvoiced.Add(i.GrandTotal)
	o.QtyInvoiced = o.QtyInvoiced.Add(i.Qty)
	o.InProcess = true
}
