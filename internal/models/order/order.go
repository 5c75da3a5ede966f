package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the workflow state of an order.
type State string

const (
	StateNew            State = "new"
	StatePendingPayment State = "pending_payment"
	StateProcessing     State = "processing"
	StateHolded         State = "holded"
	StatePaymentReview  State = "payment_review"
	StateCanceled       State = "canceled"
	StateComplete       State = "complete"
	StateClosed         State = "closed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	switch s {
	case StateCanceled, StateComplete, StateClosed:
		return true
	}
	return false
}

// Reason tells why a transition is not eligible. It replaces the loose
// reason strings of the legacy connector with a closed set the executor
// can branch on.
type Reason uint8

const (
	ReasonNone Reason = iota
	// ReasonTerminalState: the order is canceled, complete or closed.
	ReasonTerminalState
	// ReasonAlreadyHolded: the order is already on hold.
	ReasonAlreadyHolded
	// ReasonNotHolded: the order is not currently on hold.
	ReasonNotHolded
	// ReasonPaymentReview: the payment is under review.
	ReasonPaymentReview
	// ReasonHoldNotAllowed: holding was explicitly disabled for this order.
	ReasonHoldNotAllowed
	// ReasonFullyInvoiced: all order items are invoiced, cancel is pointless.
	ReasonFullyInvoiced
	// ReasonNothingToInvoice: no items remain to be invoiced.
	ReasonNothingToInvoice
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonTerminalState:
		return "order is on a terminal state"
	case ReasonAlreadyHolded:
		return "order is already holded"
	case ReasonNotHolded:
		return "order is not holded"
	case ReasonPaymentReview:
		return "order payment is under review"
	case ReasonHoldNotAllowed:
		return "order action flag is set to do not hold"
	case ReasonFullyInvoiced:
		return "all order items are invoiced"
	case ReasonNothingToInvoice:
		return "no items can be invoiced"
	}
	return "unknown reason"
}

// TransitionError reports an order transition refused by the aggregate.
type TransitionError struct {
	Op     string
	Reason Reason
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order: %s", e.Op, e.Reason)
}

// StatusComment is a single status history entry on an order.
type StatusComment struct {
	Comment   string
	Status    string
	CreatedAt time.Time
}

// Order is the commerce order aggregate. The fraud core requests
// transitions on it but the aggregate owns the eligibility rules.
type Order struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	IncrementID      string
	StoreCode        string
	PaymentMethod    string
	Status           string
	HoldBeforeStatus string
	State            State
	HoldBeforeState  State
	GrandTotal       decimal.Decimal
	TotalInvoiced    decimal.Decimal
	QtyOrdered       decimal.Decimal
	QtyInvoiced      decimal.Decimal
	History          []StatusComment
	CustomerEmail    string
	// Signifyd case fields mirrored on the order for reporting views.
	SignifydCode      string
	SignifydGuarantee string
	SignifydScore     int
	ID                int64
	// EmailSent is the order confirmation signal. Some payment methods
	// confirm asynchronously and stay unconfirmed for a while after
	// placement.
	EmailSent bool
	// HoldDisallowed is set when an external flow forbids holding.
	HoldDisallowed bool
	// InProcess marks the order as having active fulfillment work.
	InProcess bool
}

// CanHold reports whether the order may be put on hold and, if not, why.
func (o *Order) CanHold() (bool, Reason) {
	switch {
	case o.State.Terminal():
		return false, ReasonTerminalState
	case o.State == StateHolded:
		return false, ReasonAlreadyHolded
	case o.State == StatePaymentReview:
		return false, ReasonPaymentReview
	case o.HoldDisallowed:
		return false, ReasonHoldNotAllowed
	}
	return true, ReasonNone
}

// CanUnhold reports whether the order may be released from hold.
func (o *Order) CanUnhold() (bool, Reason) {
	if o.State != StateHolded {
		return false, ReasonNotHolded
	}
	return true, ReasonNone
}

// CanCancel reports whether the order may be canceled.
func (o *Order) CanCancel() (bool, Reason) {
	switch {
	case o.State.Terminal():
		return false, ReasonTerminalState
	case o.State == StateHolded:
		return false, ReasonAlreadyHolded
	case o.State == StatePaymentReview:
		return false, ReasonPaymentReview
	case o.QtyInvoiced.GreaterThanOrEqual(o.QtyOrdered):
		return false, ReasonFullyInvoiced
	}
	return true, ReasonNone
}

// CanInvoice reports whether the order has anything left to invoice.
func (o *Order) CanInvoice() (bool, Reason) {
	switch {
	case o.State.Terminal():
		return false, ReasonTerminalState
	case o.State == StateHolded:
		return false, ReasonAlreadyHolded
	case o.State == StatePaymentReview:
		return false, ReasonPaymentReview
	case o.QtyInvoiced.GreaterThanOrEqual(o.QtyOrdered):
		return false, ReasonNothingToInvoice
	}
	return true, ReasonNone
}

// Hold puts the order on hold, remembering the state to restore on unhold.
func (o *Order) Hold() error {
	if ok, reason := o.CanHold(); !ok {
		return &TransitionError{Op: "hold", Reason: reason}
	}

	o.HoldBeforeState = o.State
	o.HoldBeforeStatus = o.Status
	o.State = StateHolded
	o.Status = string(StateHolded)

	return nil
}

// Unhold releases the order from hold restoring its previous state.
func (o *Order) Unhold() error {
	if ok, reason := o.CanUnhold(); !ok {
		return &TransitionError{Op: "unhold", Reason: reason}
	}

	o.State = o.HoldBeforeState
	o.Status = o.HoldBeforeStatus
	o.HoldBeforeState = ""
	o.HoldBeforeStatus = ""

	return nil
}

// Cancel cancels the order.
func (o *Order) Cancel() error {
	if ok, reason := o.CanCancel(); !ok {
		return &TransitionError{Op: "cancel", Reason: reason}
	}

	o.State = StateCanceled
	o.Status = string(StateCanceled)

	return nil
}

// AddStatusHistoryComment records a comment on the order status history.
func (o *Order) AddStatusHistoryComment(comment string) {
	o.History = append(o.History, StatusComment{
		Comment:   comment,
		Status:    o.Status,
		CreatedAt: time.Now(),
	})
}
