package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processing() *Order {
	return &Order{
		ID:            1,
		IncrementID:   "100000001",
		State:         StateProcessing,
		Status:        "processing",
		GrandTotal:    decimal.NewFromInt(100),
		QtyOrdered:    decimal.NewFromInt(2),
		PaymentMethod: "checkmo",
	}
}

func TestCanHold(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(o *Order)
		wantOK     bool
		wantReason Reason
	}{
		{"processing order", func(o *Order) {}, true, ReasonNone},
		{"canceled order", func(o *Order) { o.State = StateCanceled }, false, ReasonTerminalState},
		{"complete order", func(o *Order) { o.State = StateComplete }, false, ReasonTerminalState},
		{"closed order", func(o *Order) { o.State = StateClosed }, false, ReasonTerminalState},
		{"already holded", func(o *Order) { o.State = StateHolded }, false, ReasonAlreadyHolded},
		{"payment review", func(o *Order) { o.State = StatePaymentReview }, false, ReasonPaymentReview},
		{"hold disallowed", func(o *Order) { o.HoldDisallowed = true }, false, ReasonHoldNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := processing()
			tt.mutate(o)

			ok, reason := o.CanHold()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestHoldUnholdRestoresState(t *testing.T) {
	o := processing()

	require.NoError(t, o.Hold())
	assert.Equal(t, StateHolded, o.State)
	assert.Equal(t, StateProcessing, o.HoldBeforeState)

	require.NoError(t, o.Unhold())
	assert.Equal(t, StateProcessing, o.State)
	assert.Equal(t, "processing", o.Status)
	assert.Empty(t, o.HoldBeforeState)
}

func TestUnholdNotHolded(t *testing.T) {
	o := processing()

	err := o.Unhold()
	require.Error(t, err)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReasonNotHolded, te.Reason)
	assert.Equal(t, "cannot unhold order: order is not holded", err.Error())
}

func TestCanCancel(t *testing.T) {
	t.Run("fully invoiced", func(t *testing.T) {
		o := processing()
		o.QtyInvoiced = o.QtyOrdered

		ok, reason := o.CanCancel()
		assert.False(t, ok)
		assert.Equal(t, ReasonFullyInvoiced, reason)
	})

	t.Run("partially invoiced", func(t *testing.T) {
		o := processing()
		o.QtyInvoiced = decimal.NewFromInt(1)

		ok, reason := o.CanCancel()
		assert.True(t, ok)
		assert.Equal(t, ReasonNone, reason)
	})

	t.Run("holded order must be unheld first", func(t *testing.T) {
		o := processing()
		require.NoError(t, o.Hold())

		ok, reason := o.CanCancel()
		assert.False(t, ok)
		assert.Equal(t, ReasonAlreadyHolded, reason)
	})
}

func TestCancel(t *testing.T) {
	o := processing()

	require.NoError(t, o.Cancel())
	assert.Equal(t, StateCanceled, o.State)
	assert.True(t, o.State.Terminal())
}

func TestPrepareInvoice(t *testing.T) {
	t.Run("covers the remainder", func(t *testing.T) {
		o := processing()
		o.TotalInvoiced = decimal.NewFromInt(40)
		o.QtyInvoiced = decimal.NewFromInt(1)

		inv, err := o.PrepareInvoice()
		require.NoError(t, err)

		assert.True(t, inv.GrandTotal.Equal(decimal.NewFromInt(60)))
		assert.True(t, inv.Qty.Equal(decimal.NewFromInt(1)))
		assert.Equal(t, CaptureOnline, inv.CaptureCase)
		assert.Equal(t, o.ID, inv.OrderID)
		assert.Contains(t, inv.IncrementID, o.IncrementID)
	})

	t.Run("nothing to invoice", func(t *testing.T) {
		o := processing()
		o.QtyInvoiced = o.QtyOrdered

		_, err := o.PrepareInvoice()

		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ReasonNothingToInvoice, te.Reason)
	})
}

func TestInvoiceRegister(t *testing.T) {
	o := processing()

	inv, err := o.PrepareInvoice()
	require.NoError(t, err)

	inv.Register(o)

	assert.True(t, o.TotalInvoiced.Equal(o.GrandTotal))
	assert.True(t, o.QtyInvoiced.Equal(o.QtyOrdered))
	assert.True(t, o.InProcess)

	ok, reason := o.CanInvoice()
	assert.False(t, ok)
	assert.Equal(t, ReasonNothingToInvoice, reason)
}

func TestAddStatusHistoryComment(t *testing.T) {
	o := processing()
	o.AddStatusHistoryComment("Signifyd: guarantee approved")

	require.Len(t, o.History, 1)
	assert.Equal(t, "Signifyd: guarantee approved", o.History[0].Comment)
	assert.Equal(t, "processing", o.History[0].Status)
}
